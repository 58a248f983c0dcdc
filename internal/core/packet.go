// Package core defines core data structures shared by the capture pipeline.
package core

import (
	"fmt"
	"net/netip"
	"time"
)

// RawFrame is one link-layer frame handed out by a capture source.
// Data is only valid until the next read from the same source.
type RawFrame struct {
	Data       []byte
	Timestamp  time.Time
	CaptureLen uint32
	OrigLen    uint32
}

// Headers is the per-frame view produced by the frame decoder.
// Absent layers are a normal outcome, not an error.
type Headers struct {
	HasUDP  bool
	SrcPort uint16
	DstPort uint16
	Payload []byte // UDP payload, zero-copy

	HasIPv4 bool
	SrcIP   netip.Addr
	DstIP   netip.Addr
}

// OutcomeKind tags the result of pushing one frame through decode and match.
type OutcomeKind uint8

const (
	// Skipped covers frames of no interest: not IPv4/UDP or wrong port.
	Skipped OutcomeKind = iota
	Matched
	Malformed
	DecodeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Skipped:
		return "skipped"
	case Matched:
		return "matched"
	case Malformed:
		return "malformed"
	case DecodeFailed:
		return "decode_failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", uint8(k))
	}
}

// Outcome is the tagged result for one frame.
type Outcome struct {
	Kind    OutcomeKind
	Message fmt.Stringer // Matched only
	SrcIP   netip.Addr   // Matched, DecodeFailed
	SrcPort uint16       // Matched, DecodeFailed
	Payload []byte       // DecodeFailed only
	Err     error        // Malformed, DecodeFailed
}
