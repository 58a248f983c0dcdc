package core

import (
	"fmt"
	"net/netip"
)

// SourceKey identifies a traffic source for colorization.
// Port is zero when sources are keyed by address only.
type SourceKey struct {
	Addr netip.Addr
	Port uint16
}

func (k SourceKey) String() string {
	if k.Port == 0 {
		return k.Addr.String()
	}
	return fmt.Sprintf("%s:%d", k.Addr, k.Port)
}
