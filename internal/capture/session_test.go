package capture

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/log"
	"firestige.xyz/dissect/internal/packettest"
)

type fakeHandle struct {
	linkType   layers.LinkType
	frames     [][]byte
	readErrs   []error
	installErr error
	installed  string
	closed     int
	stats      *pcap.Stats
}

func (h *fakeHandle) LinkType() layers.LinkType { return h.linkType }

func (h *fakeHandle) SetBPFFilter(expr string) error {
	h.installed = expr
	return h.installErr
}

func (h *fakeHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if len(h.readErrs) > 0 {
		err := h.readErrs[0]
		h.readErrs = h.readErrs[1:]
		return nil, gopacket.CaptureInfo{}, err
	}
	if h.closed > 0 || len(h.frames) == 0 {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	data := h.frames[0]
	h.frames = h.frames[1:]
	return data, gopacket.CaptureInfo{CaptureLength: len(data), Length: len(data)}, nil
}

func (h *fakeHandle) Close() { h.closed++ }

func (h *fakeHandle) Stats() (*pcap.Stats, error) {
	if h.closed > 0 {
		return nil, errors.New("handle closed")
	}
	return h.stats, nil
}

type fakeBackend struct {
	devices []Device
	listErr error
	openErr error
	handle  *fakeHandle
	opened  string
	opts    Options
}

func (b *fakeBackend) Devices() ([]Device, error) { return b.devices, b.listErr }

func (b *fakeBackend) Open(device string, opts Options) (Handle, error) {
	b.opened = device
	b.opts = opts
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.handle, nil
}

func testDevices() []Device {
	return []Device{
		{Name: "lo", Loopback: true, Addresses: []net.IP{net.ParseIP("127.0.0.1")}},
		{Name: "eth0", Addresses: []net.IP{net.ParseIP("10.0.0.2")}},
		{Name: "eth1"},
	}
}

func testLogger(t *testing.T) (log.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	l, err := log.New(config.LogConfig{Level: "info", Pattern: "%msg\n"}, buf)
	require.NoError(t, err)
	return l, buf
}

func TestResolveDevice(t *testing.T) {
	tests := []struct {
		name    string
		devices []Device
		want    string
		wantErr error
	}{
		{name: "eth1", devices: testDevices(), want: "eth1"},
		{name: "lo", devices: testDevices(), want: "lo"},
		{name: "", devices: testDevices(), want: "eth0"},
		{name: "wlan0", devices: testDevices(), wantErr: core.ErrInterfaceNotFound},
		{name: "eth", devices: testDevices(), wantErr: core.ErrInterfaceNotFound},
		{name: "", devices: []Device{{Name: "lo", Loopback: true}}, wantErr: core.ErrNoDefaultDevice},
		{name: "", devices: nil, wantErr: core.ErrNoDefaultDevice},
	}

	for _, tt := range tests {
		got, err := ResolveDevice(tt.devices, tt.name)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "name %q", tt.name)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestResolveDeviceNamesMissingInterface(t *testing.T) {
	_, err := ResolveDevice(testDevices(), "wlan0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wlan0")
}

func TestOpenInstallsDefaultFilter(t *testing.T) {
	logger, buf := testLogger(t)
	h := &fakeHandle{linkType: layers.LinkTypeEthernet}
	b := &fakeBackend{devices: testDevices(), handle: h}

	s, err := Open(b, config.CaptureConfig{Port: 5060, SnapLen: 65535, Promiscuous: true}, logger)
	require.NoError(t, err)

	assert.Equal(t, "eth0", b.opened)
	assert.Equal(t, Options{SnapLen: 65535, Promiscuous: true}, b.opts)
	assert.Equal(t, "udp port 5060", h.installed)
	assert.Equal(t, "eth0", s.Device())
	assert.Equal(t, "udp port 5060", s.Filter().Expression)
	assert.Equal(t, layers.LinkTypeEthernet, s.LinkType())
	assert.Equal(t, "Listening to device 'eth0' with filter 'udp port 5060'\n", buf.String())
}

func TestOpenCustomFilterOnNamedInterface(t *testing.T) {
	logger, buf := testLogger(t)
	h := &fakeHandle{linkType: layers.LinkTypeEthernet}
	b := &fakeBackend{devices: testDevices(), handle: h}

	_, err := Open(b, config.CaptureConfig{Interface: "eth1", Port: 12345, Filter: "udp port 9999", SnapLen: 65535}, logger)
	require.NoError(t, err)

	assert.Equal(t, "eth1", b.opened)
	assert.Equal(t, "udp port 9999", h.installed)
	assert.Contains(t, buf.String(), "'eth1' with filter 'udp port 9999'")
}

func TestOpenDeviceListFailure(t *testing.T) {
	logger, _ := testLogger(t)
	b := &fakeBackend{listErr: core.ErrDeviceList}

	_, err := Open(b, config.CaptureConfig{Port: 5060}, logger)
	assert.ErrorIs(t, err, core.ErrDeviceList)
	assert.Empty(t, b.opened)
}

func TestOpenUnknownInterface(t *testing.T) {
	logger, buf := testLogger(t)
	b := &fakeBackend{devices: testDevices(), handle: &fakeHandle{}}

	_, err := Open(b, config.CaptureConfig{Interface: "wlan0", Port: 5060}, logger)
	assert.ErrorIs(t, err, core.ErrInterfaceNotFound)
	assert.Empty(t, b.opened)
	assert.Empty(t, buf.String())
}

func TestOpenDeviceFailure(t *testing.T) {
	logger, _ := testLogger(t)
	b := &fakeBackend{devices: testDevices(), openErr: core.ErrDeviceOpen}

	_, err := Open(b, config.CaptureConfig{Port: 5060}, logger)
	assert.ErrorIs(t, err, core.ErrDeviceOpen)
}

func TestOpenInvalidFilterClosesHandle(t *testing.T) {
	logger, buf := testLogger(t)
	h := &fakeHandle{linkType: layers.LinkTypeEthernet}
	b := &fakeBackend{devices: testDevices(), handle: h}

	_, err := Open(b, config.CaptureConfig{Port: 5060, Filter: "udp port banana", SnapLen: 65535}, logger)
	require.ErrorIs(t, err, core.ErrFilterInvalid)
	assert.Contains(t, err.Error(), "udp port banana")
	assert.Empty(t, h.installed)
	assert.Equal(t, 1, h.closed)
	assert.Empty(t, buf.String())
}

func TestOpenFilterInstallFailureClosesHandle(t *testing.T) {
	logger, _ := testLogger(t)
	h := &fakeHandle{linkType: layers.LinkTypeEthernet, installErr: errors.New("permission denied")}
	b := &fakeBackend{devices: testDevices(), handle: h}

	_, err := Open(b, config.CaptureConfig{Port: 5060, SnapLen: 65535}, logger)
	require.ErrorIs(t, err, core.ErrFilterInstall)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, 1, h.closed)
}

func openFake(t *testing.T, h *fakeHandle) *Session {
	t.Helper()
	logger, _ := testLogger(t)
	if h.linkType == 0 {
		h.linkType = layers.LinkTypeEthernet
	}
	s, err := Open(&fakeBackend{devices: testDevices(), handle: h}, config.CaptureConfig{Port: 5060, SnapLen: 65535}, logger)
	require.NoError(t, err)
	return s
}

func TestNextRetriesTimeouts(t *testing.T) {
	frame := packettest.UDP4("10.0.0.1", "10.0.0.2", 5060, 5060, []byte("x"))
	h := &fakeHandle{
		frames:   [][]byte{frame},
		readErrs: []error{pcap.NextErrorTimeoutExpired, pcap.NextErrorTimeoutExpired},
	}
	s := openFake(t, h)

	got, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, frame, got.Data)
	assert.Equal(t, uint32(len(frame)), got.CaptureLen)
	assert.Equal(t, uint32(len(frame)), got.OrigLen)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNextTerminalError(t *testing.T) {
	boom := errors.New("device went away")
	s := openFake(t, &fakeHandle{readErrs: []error{boom}})

	_, err := s.Next()
	assert.ErrorIs(t, err, boom)
}

func TestCloseEndsSession(t *testing.T) {
	h := &fakeHandle{
		frames: [][]byte{packettest.UDP4("10.0.0.1", "10.0.0.2", 5060, 5060, nil)},
		stats:  &pcap.Stats{PacketsReceived: 7, PacketsDropped: 2, PacketsIfDropped: 1},
	}
	s := openFake(t, h)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Received: 7, Dropped: 2, IfDropped: 1}, st)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, h.closed)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)

	st, err = s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 7, st.Received)
}
