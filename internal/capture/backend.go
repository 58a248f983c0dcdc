// Package capture opens live capture sessions and offline capture files and
// hands out raw link-layer frames one at a time.
package capture

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/core"
)

// PCAP_IF_LOOPBACK from pcap/pcap.h
const pcapIfLoopback = 0x00000001

// Device is a capture device as enumerated by the backend.
type Device struct {
	Name        string
	Description string
	Addresses   []net.IP
	Loopback    bool
}

// Options are applied to a device before activation.
type Options struct {
	SnapLen     int
	Promiscuous bool
	Timeout     time.Duration
}

// Handle is an activated capture handle. *pcap.Handle satisfies it.
type Handle interface {
	LinkType() layers.LinkType
	SetBPFFilter(expr string) error
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	Close()
}

type statser interface {
	Stats() (*pcap.Stats, error)
}

// Backend enumerates and opens capture devices.
type Backend interface {
	Devices() ([]Device, error)
	Open(device string, opts Options) (Handle, error)
}

// PcapBackend is the libpcap backend.
type PcapBackend struct{}

func (PcapBackend) Devices() ([]Device, error) {
	ifaces, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceList, err)
	}

	devices := make([]Device, 0, len(ifaces))
	for _, iface := range ifaces {
		d := Device{
			Name:        iface.Name,
			Description: iface.Description,
			Loopback:    iface.Flags&pcapIfLoopback != 0,
		}
		for _, addr := range iface.Addresses {
			d.Addresses = append(d.Addresses, addr.IP)
		}
		if !d.Loopback && len(d.Addresses) > 0 {
			d.Loopback = allLoopback(d.Addresses)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func allLoopback(addrs []net.IP) bool {
	for _, ip := range addrs {
		if !ip.IsLoopback() {
			return false
		}
	}
	return true
}

func (PcapBackend) Open(device string, opts Options) (Handle, error) {
	inactive, err := pcap.NewInactiveHandle(device)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", core.ErrDeviceOpen, device, err)
	}
	defer inactive.CleanUp()

	if err = inactive.SetSnapLen(opts.SnapLen); err != nil {
		return nil, fmt.Errorf("%w %s: snaplen: %v", core.ErrDeviceOpen, device, err)
	}
	if err = inactive.SetPromisc(opts.Promiscuous); err != nil {
		return nil, fmt.Errorf("%w %s: promisc: %v", core.ErrDeviceOpen, device, err)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = pcap.BlockForever
	}
	if err = inactive.SetTimeout(timeout); err != nil {
		return nil, fmt.Errorf("%w %s: timeout: %v", core.ErrDeviceOpen, device, err)
	}
	// deliver frames as they arrive instead of batching
	if err = inactive.SetImmediateMode(true); err != nil {
		return nil, fmt.Errorf("%w %s: immediate mode: %v", core.ErrDeviceOpen, device, err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", core.ErrDeviceOpen, device, err)
	}
	return handle, nil
}

// NewBackend picks the capture backend named by cfg.Backend.
func NewBackend(cfg config.CaptureConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "pcap":
		return PcapBackend{}, nil
	case "afpacket":
		return newAFPacketBackend(cfg.BufferMB)
	default:
		return nil, fmt.Errorf("%w: unknown capture backend %q", core.ErrConfigInvalid, cfg.Backend)
	}
}

// ListDevices returns every capture device the backend can see.
func ListDevices(backend Backend) ([]Device, error) {
	return backend.Devices()
}

// ResolveDevice picks the capture device. A named device must exist
// exactly; otherwise the first non-loopback device wins.
func ResolveDevice(devices []Device, name string) (string, error) {
	if name != "" {
		for _, d := range devices {
			if d.Name == name {
				return d.Name, nil
			}
		}
		return "", fmt.Errorf("%w: %s", core.ErrInterfaceNotFound, name)
	}

	for _, d := range devices {
		if !d.Loopback {
			return d.Name, nil
		}
	}
	return "", core.ErrNoDefaultDevice
}
