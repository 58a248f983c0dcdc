// Package matcher decides whether a decoded frame belongs to the target
// protocol and runs the protocol codec on it.
package matcher

import (
	"fmt"

	"firestige.xyz/dissect/internal/codec"
	"firestige.xyz/dissect/internal/core"
)

// Matcher keeps IPv4/UDP frames where either port is the target port.
// Both directions are accepted because the tool cannot know in advance
// which side of an exchange is the server.
type Matcher struct {
	port  uint16
	codec codec.Codec
}

func New(port uint16, c codec.Codec) *Matcher {
	return &Matcher{port: port, codec: c}
}

func (m *Matcher) Port() uint16 { return m.port }

func (m *Matcher) Codec() codec.Codec { return m.codec }

// Match returns Skipped, Matched or DecodeFailed for h.
func (m *Matcher) Match(h core.Headers) core.Outcome {
	if !h.HasUDP || (h.SrcPort != m.port && h.DstPort != m.port) {
		return core.Outcome{Kind: core.Skipped}
	}
	if !h.HasIPv4 {
		return core.Outcome{Kind: core.Skipped}
	}

	msg, err := m.decode(h.Payload)
	if err != nil {
		return core.Outcome{
			Kind:    core.DecodeFailed,
			SrcIP:   h.SrcIP,
			SrcPort: h.SrcPort,
			Payload: h.Payload,
			Err:     err,
		}
	}
	return core.Outcome{
		Kind:    core.Matched,
		Message: msg,
		SrcIP:   h.SrcIP,
		SrcPort: h.SrcPort,
	}
}

// decode turns a codec panic into a decode failure for this frame.
func (m *Matcher) decode(payload []byte) (msg fmt.Stringer, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg, err = nil, fmt.Errorf("%s: panic while decoding: %v", m.codec.Name(), r)
		}
	}()
	return m.codec.Decode(payload)
}
