// Package codec holds the protocol wire-format decoders dissect can match.
//
// A Codec is a pure function from payload bytes to a printable message; it
// performs no I/O and keeps no state between calls.
package codec

import (
	"fmt"
	"sort"

	"firestige.xyz/dissect/internal/core"
)

// Codec decodes one application protocol.
type Codec interface {
	Name() string
	// DefaultPort is the protocol's well-known UDP port, or 0 if it has none.
	DefaultPort() uint16
	Decode(payload []byte) (fmt.Stringer, error)
}

var registry = make(map[string]func() Codec)

// Register makes a codec constructor available under name.
func Register(name string, constructor func() Codec) {
	registry[name] = constructor
}

// Lookup constructs the codec registered under name.
func Lookup(name string) (Codec, error) {
	constructor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", core.ErrUnknownProtocol, name, Names())
	}
	return constructor(), nil
}

// DefaultPort returns the well-known port of the named protocol.
func DefaultPort(name string) (uint16, error) {
	c, err := Lookup(name)
	if err != nil {
		return 0, err
	}
	return c.DefaultPort(), nil
}

// Names lists registered protocols in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
