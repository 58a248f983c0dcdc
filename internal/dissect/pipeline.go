// Package dissect runs the single-threaded capture loop: read a frame,
// decode it, match it against the target protocol and report the outcome.
package dissect

import (
	"errors"
	"io"

	"firestige.xyz/dissect/internal/color"
	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/decoder"
	"firestige.xyz/dissect/internal/matcher"
	"firestige.xyz/dissect/internal/reporter"
)

// Source is the part of a capture source the loop needs.
type Source interface {
	Next() (core.RawFrame, error)
}

// Stats counts frames by outcome.
type Stats struct {
	Frames         uint64
	Matched        uint64
	Skipped        uint64
	Malformed      uint64
	DecodeFailures uint64
}

// Observer is told about every outcome, e.g. to export counters.
type Observer interface {
	ObserveOutcome(kind core.OutcomeKind)
	ObserveColors(n int)
}

// Config contains pipeline configuration.
type Config struct {
	Source    Source
	Decoder   *decoder.Decoder
	Matcher   *matcher.Matcher
	Reporter  *reporter.Reporter
	ColorMode config.ColorMode
	Palette   color.Palette // DefaultPalette when empty
	Observer  Observer      // Optional
}

// Pipeline owns the only long-lived mutable state of a run: the color
// table and the counters.
type Pipeline struct {
	source   Source
	decoder  *decoder.Decoder
	matcher  *matcher.Matcher
	reporter *reporter.Reporter
	mode     config.ColorMode
	colors   *color.Assigner
	observer Observer
	stats    Stats
}

func New(cfg Config) *Pipeline {
	p := &Pipeline{
		source:   cfg.Source,
		decoder:  cfg.Decoder,
		matcher:  cfg.Matcher,
		reporter: cfg.Reporter,
		mode:     cfg.ColorMode,
		observer: cfg.Observer,
	}
	if cfg.ColorMode != config.ColorDisabled {
		palette := cfg.Palette
		if len(palette) == 0 {
			palette = color.DefaultPalette
		}
		p.colors = color.NewAssigner(palette)
	}
	return p
}

// Run processes frames until the source fails. io.EOF ends the run
// without error.
func (p *Pipeline) Run() error {
	for {
		frame, err := p.source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		p.Process(frame)
	}
}

// Process handles one frame and reports its outcome.
func (p *Pipeline) Process(frame core.RawFrame) core.Outcome {
	p.stats.Frames++

	out := p.classify(frame)

	var c *color.Color
	switch out.Kind {
	case core.Matched:
		p.stats.Matched++
		if p.colors != nil {
			assigned := p.colors.Assign(color.KeyFor(p.mode, out.SrcIP, out.SrcPort))
			c = &assigned
		}
	case core.Skipped:
		p.stats.Skipped++
	case core.Malformed:
		p.stats.Malformed++
	case core.DecodeFailed:
		p.stats.DecodeFailures++
	}

	if p.observer != nil {
		p.observer.ObserveOutcome(out.Kind)
		if c != nil {
			p.observer.ObserveColors(p.colors.Len())
		}
	}

	p.reporter.Report(out, c)
	return out
}

func (p *Pipeline) classify(frame core.RawFrame) core.Outcome {
	headers, err := p.decoder.Decode(frame)
	if err != nil {
		return core.Outcome{Kind: core.Malformed, Err: err}
	}
	return p.matcher.Match(headers)
}

// Stats returns the counters. Call it after Run has returned.
func (p *Pipeline) Stats() Stats { return p.stats }

// Colors returns the color table, nil when coloring is disabled.
func (p *Pipeline) Colors() *color.Assigner { return p.colors }
