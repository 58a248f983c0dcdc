// Package decoder decapsulates captured frames down to the UDP payload.
package decoder

import (
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/dissect/internal/core"
)

// Decoder slices link, network and transport headers out of raw frames.
// Layer structs are reused between calls, so a Decoder is not safe for
// concurrent use and Headers.Payload aliases the frame.
type Decoder struct {
	parser *gopacket.DecodingLayerParser

	eth   layers.Ethernet
	sll   layers.LinuxSLL
	lo    layers.Loopback
	dot1q layers.Dot1Q
	ip4   layers.IPv4
	ip6   layers.IPv6
	udp   layers.UDP
	tcp   layers.TCP

	decoded []gopacket.LayerType
}

// FirstLayer maps a capture link type to the layer its frames start with.
func FirstLayer(linkType layers.LinkType) (gopacket.LayerType, error) {
	switch linkType {
	case layers.LinkTypeEthernet:
		return layers.LayerTypeEthernet, nil
	case layers.LinkTypeLinuxSLL:
		return layers.LayerTypeLinuxSLL, nil
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		return layers.LayerTypeLoopback, nil
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		return layers.LayerTypeIPv4, nil
	default:
		return 0, fmt.Errorf("%w: %s", core.ErrUnsupportedLinkType, linkType)
	}
}

// New returns a Decoder for frames of the given link type.
func New(linkType layers.LinkType) (*Decoder, error) {
	first, err := FirstLayer(linkType)
	if err != nil {
		return nil, err
	}

	d := &Decoder{decoded: make([]gopacket.LayerType, 0, 8)}
	d.parser = gopacket.NewDecodingLayerParser(
		first,
		&d.eth,
		&d.sll,
		&d.lo,
		&d.dot1q,
		&d.ip4,
		&d.ip6,
		&d.udp,
		&d.tcp,
	)
	// ARP, ICMP, application layers and the like simply end decoding.
	d.parser.IgnoreUnsupported = true
	return d, nil
}

// Decode returns the headers found in frame. An error means the frame is
// structurally malformed; missing IPv4 or UDP layers are not errors.
func (d *Decoder) Decode(frame core.RawFrame) (core.Headers, error) {
	var h core.Headers

	if err := d.parser.DecodeLayers(frame.Data, &d.decoded); err != nil {
		return h, err
	}

	for _, layerType := range d.decoded {
		switch layerType {
		case layers.LayerTypeIPv4:
			src, srcOK := netip.AddrFromSlice(d.ip4.SrcIP)
			dst, dstOK := netip.AddrFromSlice(d.ip4.DstIP)
			if srcOK && dstOK {
				h.HasIPv4 = true
				h.SrcIP = src.Unmap()
				h.DstIP = dst.Unmap()
			}
		case layers.LayerTypeUDP:
			h.HasUDP = true
			h.SrcPort = uint16(d.udp.SrcPort)
			h.DstPort = uint16(d.udp.DstPort)
			h.Payload = d.udp.Payload
		}
	}
	return h, nil
}
