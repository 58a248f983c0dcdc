// Package color assigns stable terminal colors to traffic sources.
package color

import (
	"net/netip"

	"github.com/mgutz/ansi"

	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/core"
)

// Color is one ANSI foreground style, e.g. "cyan" or "red+h".
type Color struct {
	Name string
	code string
}

func New(name string) Color {
	return Color{Name: name, code: ansi.ColorCode(name)}
}

// Wrap surrounds s with the color's escape codes.
func (c Color) Wrap(s string) string {
	return c.code + s + ansi.Reset
}

func (c Color) String() string { return c.Name }

// Palette is the fixed, ordered set of colors handed out round-robin.
type Palette []Color

// DefaultPalette orders colors so consecutive sources look different.
var DefaultPalette = Palette{
	New("cyan"),
	New("yellow"),
	New("red"),
	New("green"),
	New("magenta"),
	New("blue+h"),
	New("cyan+h"),
	New("yellow+h"),
	New("red+h"),
	New("green+h"),
	New("magenta+h"),
}

// Assigner maps source keys to colors in first-seen order. Assignments are
// never evicted, so the table grows by one entry per distinct source.
// Not safe for concurrent use.
type Assigner struct {
	palette Palette
	cursor  int
	table   map[core.SourceKey]int
}

// NewAssigner panics on an empty palette.
func NewAssigner(palette Palette) *Assigner {
	if len(palette) == 0 {
		panic("color: empty palette")
	}
	return &Assigner{
		palette: palette,
		table:   make(map[core.SourceKey]int),
	}
}

// Assign returns the color recorded for key, assigning the next palette
// color if key is new.
func (a *Assigner) Assign(key core.SourceKey) Color {
	if idx, ok := a.table[key]; ok {
		return a.palette[idx]
	}
	idx := a.cursor
	a.table[key] = idx
	a.cursor = (a.cursor + 1) % len(a.palette)
	return a.palette[idx]
}

// Len reports how many sources have a color.
func (a *Assigner) Len() int { return len(a.table) }

// KeyFor derives the source key for mode. The port is dropped when
// coloring by address only.
func KeyFor(mode config.ColorMode, addr netip.Addr, port uint16) core.SourceKey {
	if mode == config.ColorByAddress {
		return core.SourceKey{Addr: addr}
	}
	return core.SourceKey{Addr: addr, Port: port}
}
