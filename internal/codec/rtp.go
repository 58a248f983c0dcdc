package codec

import (
	"encoding/binary"
	"fmt"
)

const (
	rtpName = "rtp"

	// RTCP packet types per RFC 3550 / RFC 5761.
	rtcpPayloadTypeMin = 200
	rtcpPayloadTypeMax = 209

	rtpMinLength  = 12 // Fixed RTP header
	rtcpMinLength = 8  // RTCP common header + sender SSRC
)

func init() {
	Register(rtpName, func() Codec { return RTP{} })
}

// RTP decodes RTP media and RTCP control headers. RTCP is told apart by
// packet types 200-209 in the second byte.
type RTP struct{}

func (RTP) Name() string        { return rtpName }
func (RTP) DefaultPort() uint16 { return 5004 }

func (RTP) Decode(b []byte) (fmt.Stringer, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("rtp: payload too short (%d bytes)", len(b))
	}
	if version := b[0] >> 6; version != 2 {
		return nil, fmt.Errorf("rtp: unexpected version %d", version)
	}
	if pt := b[1]; pt >= rtcpPayloadTypeMin && pt <= rtcpPayloadTypeMax {
		return decodeRTCP(b)
	}
	return decodeRTP(b)
}

// RTPHeader is the fixed RTP header.
type RTPHeader struct {
	PayloadType uint8
	Marker      bool
	Extension   bool
	CSRCCount   uint8
	Seq         uint16
	Timestamp   uint32
	SSRC        uint32
}

func (h RTPHeader) String() string {
	return fmt.Sprintf("RTP pt=%d seq=%d ts=%d ssrc=0x%08X marker=%t ext=%t",
		h.PayloadType, h.Seq, h.Timestamp, h.SSRC, h.Marker, h.Extension)
}

func decodeRTP(b []byte) (fmt.Stringer, error) {
	if len(b) < rtpMinLength {
		return nil, fmt.Errorf("rtp: payload too short for RTP header (%d bytes)", len(b))
	}
	h := RTPHeader{
		Extension:   (b[0]>>4)&0x1 == 1,
		CSRCCount:   b[0] & 0x0F,
		Marker:      (b[1]>>7)&0x1 == 1,
		PayloadType: b[1] & 0x7F,
		Seq:         binary.BigEndian.Uint16(b[2:4]),
		Timestamp:   binary.BigEndian.Uint32(b[4:8]),
		SSRC:        binary.BigEndian.Uint32(b[8:12]),
	}
	if need := rtpMinLength + 4*int(h.CSRCCount); len(b) < need {
		return nil, fmt.Errorf("rtp: %d CSRC entries need %d bytes, have %d", h.CSRCCount, need, len(b))
	}
	return h, nil
}

// RTCPHeader is the RTCP common header plus the first SSRC.
type RTCPHeader struct {
	PacketType uint8
	Count      uint8
	Length     uint16 // in 32-bit words minus one
	SSRC       uint32
}

func (h RTCPHeader) String() string {
	return fmt.Sprintf("RTCP pt=%d count=%d len=%d ssrc=0x%08X", h.PacketType, h.Count, h.Length, h.SSRC)
}

func decodeRTCP(b []byte) (fmt.Stringer, error) {
	if len(b) < rtcpMinLength {
		return nil, fmt.Errorf("rtp: payload too short for RTCP header (%d bytes)", len(b))
	}
	return RTCPHeader{
		PacketType: b[1],
		Count:      b[0] & 0x1F,
		Length:     binary.BigEndian.Uint16(b[2:4]),
		SSRC:       binary.BigEndian.Uint32(b[4:8]),
	}, nil
}
