package cmd

import (
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/dissect/internal/capture"
	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/core"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Devices() ([]capture.Device, error) {
	args := m.Called()
	devices, _ := args.Get(0).([]capture.Device)
	return devices, args.Error(1)
}

func (m *MockBackend) Open(device string, opts capture.Options) (capture.Handle, error) {
	args := m.Called(device, opts)
	h, _ := args.Get(0).(capture.Handle)
	return h, args.Error(1)
}

func TestRunDevices(t *testing.T) {
	b := new(MockBackend)
	b.On("Devices").Return([]capture.Device{
		{Name: "lo", Loopback: true, Addresses: []net.IP{net.ParseIP("127.0.0.1")}},
		{Name: "eth0", Description: "uplink", Addresses: []net.IP{net.ParseIP("10.0.0.2"), net.ParseIP("fe80::1")}},
	}, nil)

	var buf bytes.Buffer
	require.NoError(t, runDevices(b, &buf))

	out := buf.String()
	assert.Contains(t, out, "lo (loopback)")
	assert.Contains(t, out, "127.0.0.1")
	assert.Contains(t, out, "10.0.0.2,fe80::1")
	assert.Contains(t, out, "uplink")
	assert.Regexp(t, `(?m)^\*\s+eth0`, out)
	b.AssertExpectations(t)
}

func TestRunDevicesListFailure(t *testing.T) {
	b := new(MockBackend)
	b.On("Devices").Return(nil, core.ErrDeviceList)

	var buf bytes.Buffer
	err := runDevices(b, &buf)

	assert.ErrorIs(t, err, core.ErrDeviceList)
	assert.Empty(t, buf.String())
	b.AssertExpectations(t)
}

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"config", "--protocol", "dns", "--color", "none", "-v"})

	require.NoError(t, root.Execute())

	var got config.Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "dns", got.Capture.Protocol)
	assert.Equal(t, uint16(53), got.Capture.Port)
	assert.Equal(t, config.ColorDisabled, got.Capture.Color)
	assert.True(t, got.Capture.Verbose)
}

func TestConfigCommandRejectsUnknownProtocol(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--protocol", "netwayste"})

	err := root.Execute()
	assert.ErrorIs(t, err, core.ErrUnknownProtocol)
}

func TestRootCommandUnknownInterface(t *testing.T) {
	b := new(MockBackend)
	b.On("Devices").Return([]capture.Device{{Name: "eth0"}}, nil)
	saved := newBackend
	newBackend = func(config.CaptureConfig) (capture.Backend, error) { return b, nil }
	defer func() { newBackend = saved }()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"-i", "wlan0", "--log-file", filepath.Join(t.TempDir(), "dissect.log")})

	err := root.Execute()
	require.ErrorIs(t, err, core.ErrInterfaceNotFound)
	assert.Contains(t, err.Error(), "wlan0")
	b.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestRootCommandReadsEmptyCaptureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pcap")
	// classic pcap header, Ethernet link type, no records
	header := []byte{
		0xd4, 0xc3, 0xb2, 0xa1, 0x02, 0x00, 0x04, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xff, 0xff, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
	}
	require.NoError(t, os.WriteFile(path, header, 0o644))

	root := newRootCmd()
	root.SetArgs([]string{"-r", path, "--log-level", "error"})

	assert.NoError(t, root.Execute())
}

func TestRootCommandRejectsArgs(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"eth0"})

	assert.Error(t, root.Execute())
}

func TestRootCommandBadConfigFile(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"config", "-c", filepath.Join(t.TempDir(), "missing.yml")})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestDevicesCommandUsesSelectedBackend(t *testing.T) {
	b := new(MockBackend)
	b.On("Devices").Return([]capture.Device{{Name: "eth0"}}, nil)
	var selected string
	saved := newBackend
	newBackend = func(cfg config.CaptureConfig) (capture.Backend, error) {
		selected = cfg.Backend
		return b, nil
	}
	defer func() { newBackend = saved }()

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"devices", "--backend", "afpacket"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "afpacket", selected)
	assert.Contains(t, buf.String(), "eth0")
	b.AssertExpectations(t)
}
