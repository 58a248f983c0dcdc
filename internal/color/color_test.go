package color

import (
	"fmt"
	"net/netip"
	"strings"
	"testing"

	"github.com/mgutz/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/core"
)

var (
	cyan   = New("cyan")
	yellow = New("yellow")
	red    = New("red")
)

func key(addr string, port uint16) core.SourceKey {
	return core.SourceKey{Addr: netip.MustParseAddr(addr), Port: port}
}

func TestAssignScenario(t *testing.T) {
	a := NewAssigner(Palette{cyan, yellow, red})

	A, B, C, D := key("10.0.0.1", 12345), key("10.0.0.2", 12345), key("10.0.0.3", 12345), key("10.0.0.4", 12345)

	assert.Equal(t, cyan, a.Assign(A))
	assert.Equal(t, yellow, a.Assign(B))
	assert.Equal(t, cyan, a.Assign(A))
	assert.Equal(t, red, a.Assign(C))
	assert.Equal(t, cyan, a.Assign(D))
	assert.Equal(t, 4, a.Len())
}

func TestAssignOrderIgnoresRepeats(t *testing.T) {
	a := NewAssigner(Palette{cyan, yellow, red})

	k1, k2, k3 := key("10.0.0.1", 1), key("10.0.0.2", 2), key("10.0.0.3", 3)

	assert.Equal(t, cyan, a.Assign(k1))
	for i := 0; i < 10; i++ {
		a.Assign(k1)
	}
	assert.Equal(t, yellow, a.Assign(k2))
	a.Assign(k1)
	a.Assign(k2)
	assert.Equal(t, red, a.Assign(k3))
}

func TestAssignWrapsAfterPaletteSize(t *testing.T) {
	a := NewAssigner(DefaultPalette)

	n := len(DefaultPalette)
	for i := 0; i < n; i++ {
		assert.Equal(t, DefaultPalette[i], a.Assign(key("10.0.0.1", uint16(i+1))))
	}
	assert.Equal(t, DefaultPalette[0], a.Assign(key("10.0.0.1", uint16(n+1))))
}

func TestAssignIdempotentAndReproducible(t *testing.T) {
	keys := make([]core.SourceKey, 0, 40)
	for i := 0; i < 40; i++ {
		keys = append(keys, key(fmt.Sprintf("192.168.0.%d", i%17), uint16(5000+i%5)))
	}

	run := func() map[core.SourceKey]Color {
		a := NewAssigner(DefaultPalette)
		got := make(map[core.SourceKey]Color)
		for _, k := range keys {
			c := a.Assign(k)
			if prev, ok := got[k]; ok {
				require.Equal(t, prev, c, "key %s changed color", k)
			}
			got[k] = c
		}
		return got
	}

	assert.Equal(t, run(), run())
}

func TestKeyFor(t *testing.T) {
	addr := netip.MustParseAddr("10.0.0.9")

	assert.Equal(t, core.SourceKey{Addr: addr, Port: 5060}, KeyFor(config.ColorByAddressAndPort, addr, 5060))
	assert.Equal(t, core.SourceKey{Addr: addr}, KeyFor(config.ColorByAddress, addr, 5060))
}

func TestAddressModeSharesColorAcrossPorts(t *testing.T) {
	a := NewAssigner(Palette{cyan, yellow, red})
	addr := netip.MustParseAddr("10.0.0.9")

	first := a.Assign(KeyFor(config.ColorByAddress, addr, 5060))
	second := a.Assign(KeyFor(config.ColorByAddress, addr, 5061))
	assert.Equal(t, first, second)

	b := NewAssigner(Palette{cyan, yellow, red})
	assert.NotEqual(t,
		b.Assign(KeyFor(config.ColorByAddressAndPort, addr, 5060)),
		b.Assign(KeyFor(config.ColorByAddressAndPort, addr, 5061)))
}

func TestWrap(t *testing.T) {
	s := cyan.Wrap("hello")
	assert.True(t, strings.HasPrefix(s, "\x1b["), s)
	assert.Contains(t, s, "36mhello")
	assert.True(t, strings.HasSuffix(s, ansi.Reset), s)
}

func TestNewAssignerEmptyPalettePanics(t *testing.T) {
	assert.Panics(t, func() { NewAssigner(nil) })
}
