//go:build !linux

package capture

import (
	"fmt"

	"firestige.xyz/dissect/internal/core"
)

func newAFPacketBackend(int) (Backend, error) {
	return nil, fmt.Errorf("%w: the afpacket backend is only available on linux", core.ErrConfigInvalid)
}
