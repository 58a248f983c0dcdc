//go:build linux

package capture

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/filter"
)

// Bounds how long Close waits for a blocked read.
const afpacketPollTimeout = 100 * time.Millisecond

// AFPacketBackend captures through a TPACKET_V3 memory-mapped ring.
type AFPacketBackend struct {
	BufferMB int
}

func newAFPacketBackend(bufferMB int) (Backend, error) {
	return AFPacketBackend{BufferMB: bufferMB}, nil
}

func (AFPacketBackend) Devices() ([]Device, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceList, err)
	}

	devices := make([]Device, 0, len(ifaces))
	for _, iface := range ifaces {
		d := Device{
			Name:        iface.Name,
			Description: iface.Flags.String(),
			Loopback:    iface.Flags&net.FlagLoopback != 0,
		}
		addrs, err := iface.Addrs()
		if err == nil {
			for _, addr := range addrs {
				if ipnet, ok := addr.(*net.IPNet); ok {
					d.Addresses = append(d.Addresses, ipnet.IP)
				}
			}
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (b AFPacketBackend) Open(device string, opts Options) (Handle, error) {
	frameSize, blockSize, numBlocks, err := ringSize(b.BufferMB, opts.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", core.ErrDeviceOpen, device, err)
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(device),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(afpacketPollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", core.ErrDeviceOpen, device, err)
	}
	// AF_PACKET sockets see every frame addressed to the host; promiscuous
	// mode is left to the interface configuration.
	return &afpacketHandle{tp: tp, snapLen: opts.SnapLen}, nil
}

// afpacketHandle serializes Close against reads, which TPacket does not.
type afpacketHandle struct {
	mu      sync.Mutex
	tp      *afpacket.TPacket
	snapLen int
	closed  atomic.Bool
}

var _ statser = (*afpacketHandle)(nil)

func (h *afpacketHandle) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func (h *afpacketHandle) SetBPFFilter(expr string) error {
	compiled, err := filter.Compile(expr, 0, layers.LinkTypeEthernet, h.snapLen)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tp == nil {
		return io.EOF
	}
	return h.tp.SetBPF(compiled.Program)
}

func (h *afpacketHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if h.closed.Load() {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tp == nil {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	data, ci, err := h.tp.ReadPacketData()
	if errors.Is(err, afpacket.ErrTimeout) {
		return nil, ci, pcap.NextErrorTimeoutExpired
	}
	return data, ci, err
}

func (h *afpacketHandle) Stats() (*pcap.Stats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tp == nil {
		return nil, io.EOF
	}
	_, v3, err := h.tp.SocketStats()
	if err != nil {
		return nil, err
	}
	return &pcap.Stats{
		PacketsReceived: int(v3.Packets()),
		PacketsDropped:  int(v3.Drops()),
	}, nil
}

func (h *afpacketHandle) Close() {
	h.closed.Store(true)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tp != nil {
		h.tp.Close()
		h.tp = nil
	}
}
