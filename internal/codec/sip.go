package codec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"

	"firestige.xyz/dissect/internal/log"
)

const sipName = "sip"

var sipVersion = []byte("SIP/2.0")

func init() {
	Register(sipName, func() Codec { return NewSIP(log.GetLogger()) })
}

// SIP decodes SIP requests and responses carried in a single datagram.
type SIP struct {
	delegate *parser.PacketParser
}

func NewSIP(logger log.Logger) *SIP {
	return &SIP{delegate: parser.NewPacketParser(log.NewGosipAdapter(logger))}
}

func (c *SIP) Name() string        { return sipName }
func (c *SIP) DefaultPort() uint16 { return 5060 }

func (c *SIP) Decode(payload []byte) (fmt.Stringer, error) {
	// Keep-alive CRLFs and other noise that cannot hold a start line.
	if !bytes.Contains(payload, sipVersion) {
		return nil, fmt.Errorf("sip: no %s marker in %d byte payload", sipVersion, len(payload))
	}
	msg, err := c.delegate.ParseMessage(payload)
	if err != nil {
		return nil, fmt.Errorf("sip: %w", err)
	}
	return SIPMessage{msg: msg}, nil
}

// SIPMessage renders a parsed SIP message on one line.
type SIPMessage struct {
	msg sip.Message
}

func (m SIPMessage) Message() sip.Message { return m.msg }

func (m SIPMessage) String() string {
	var b strings.Builder
	b.WriteString(m.msg.StartLine())
	if id, ok := m.msg.CallID(); ok {
		fmt.Fprintf(&b, " call-id=%s", id.Value())
	}
	if cseq, ok := m.msg.CSeq(); ok {
		fmt.Fprintf(&b, " cseq=%q", cseq.Value())
	}
	if body := m.msg.Body(); body != "" {
		fmt.Fprintf(&b, " body=%dB", len(body))
	}
	return b.String()
}
