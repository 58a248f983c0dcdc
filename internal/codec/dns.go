package codec

import (
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const dnsName = "dns"

func init() {
	Register(dnsName, func() Codec { return DNS{} })
}

// DNS decodes DNS messages with gopacket's DNS layer.
type DNS struct{}

func (DNS) Name() string        { return dnsName }
func (DNS) DefaultPort() uint16 { return 53 }

// Decode goes through gopacket.NewPacket, which turns panics inside the
// DNS layer decoder into a DecodeFailure layer.
func (DNS) Decode(payload []byte) (fmt.Stringer, error) {
	pkt := gopacket.NewPacket(payload, layers.LayerTypeDNS, gopacket.Default)
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		return nil, fmt.Errorf("dns: %w", errLayer.Error())
	}
	msg, ok := pkt.Layer(layers.LayerTypeDNS).(*layers.DNS)
	if !ok {
		return nil, fmt.Errorf("dns: no DNS layer in %d byte payload", len(payload))
	}
	return DNSMessage{msg: msg}, nil
}

// DNSMessage renders the header, questions and answers of a DNS message.
type DNSMessage struct {
	msg *layers.DNS
}

func (m DNSMessage) Message() *layers.DNS { return m.msg }

func (m DNSMessage) String() string {
	var b strings.Builder
	kind := "query"
	if m.msg.QR {
		kind = "response"
	}
	fmt.Fprintf(&b, "%s id=%d op=%s rcode=%s", kind, m.msg.ID, m.msg.OpCode, m.msg.ResponseCode)
	for _, q := range m.msg.Questions {
		fmt.Fprintf(&b, " q=%s/%s", q.Name, q.Type)
	}
	for _, a := range m.msg.Answers {
		fmt.Fprintf(&b, " a=%s/%s", a.Name, a.Type)
		switch {
		case a.IP != nil:
			fmt.Fprintf(&b, "=%s", a.IP)
		case len(a.CNAME) > 0:
			fmt.Fprintf(&b, "=%s", a.CNAME)
		}
	}
	return b.String()
}
