package codec

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"firestige.xyz/dissect/internal/core"
)

const (
	protobufName = "protobuf"

	// Nested length-delimited fields are rendered as messages up to this depth.
	maxProtobufDepth = 8
)

func init() {
	Register(protobufName, func() Codec { return Protobuf{} })
}

// Protobuf decodes a datagram as one schemaless protobuf message and prints
// it in the style of `protoc --decode_raw`.
type Protobuf struct{}

func (Protobuf) Name() string        { return protobufName }
func (Protobuf) DefaultPort() uint16 { return 0 }

func (Protobuf) Decode(payload []byte) (fmt.Stringer, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("protobuf: %w", core.ErrPayloadEmpty)
	}
	fields, err := parseFields(payload, 0)
	if err != nil {
		return nil, fmt.Errorf("protobuf: %w", err)
	}
	return RawMessage(fields), nil
}

// RawField is one decoded field. Exactly one of Value or Nested is set.
type RawField struct {
	Number protowire.Number
	Type   protowire.Type
	Value  string
	Nested RawMessage
}

// RawMessage is a schemaless message in wire order.
type RawMessage []RawField

func (m RawMessage) String() string {
	parts := make([]string, 0, len(m))
	for _, f := range m {
		if f.Nested != nil {
			parts = append(parts, fmt.Sprintf("%d:{%s}", f.Number, f.Nested))
			continue
		}
		parts = append(parts, fmt.Sprintf("%d:%s", f.Number, f.Value))
	}
	return strings.Join(parts, " ")
}

func parseFields(b []byte, depth int) (RawMessage, error) {
	var msg RawMessage
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		field := RawField{Number: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			field.Value = strconv.FormatUint(v, 10)
			b = b[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			field.Value = fmt.Sprintf("0x%08x", v)
			b = b[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			field.Value = fmt.Sprintf("0x%016x", v)
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			field.Value, field.Nested = renderBytes(v, depth)
			b = b[n:]
		case protowire.StartGroupType:
			v, n := protowire.ConsumeGroup(num, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			nested, err := parseFields(v, depth+1)
			if err != nil {
				return nil, err
			}
			field.Nested = nested
			if field.Nested == nil {
				field.Nested = RawMessage{}
			}
			b = b[n:]
		default:
			return nil, fmt.Errorf("field %d: unexpected wire type %d", num, typ)
		}
		msg = append(msg, field)
	}
	return msg, nil
}

// renderBytes prefers a nested message, then a printable string, then hex.
func renderBytes(v []byte, depth int) (string, RawMessage) {
	if len(v) > 0 && depth < maxProtobufDepth && !isPrintable(v) {
		if nested, err := parseFields(v, depth+1); err == nil {
			return "", nested
		}
	}
	if isPrintable(v) {
		return strconv.Quote(string(v)), nil
	}
	return fmt.Sprintf("0x%x", v), nil
}

func isPrintable(v []byte) bool {
	if !utf8.Valid(v) {
		return false
	}
	for _, r := range string(v) {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
