// Package reporter turns frame outcomes into log lines.
package reporter

import (
	"fmt"

	"firestige.xyz/dissect/internal/color"
	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/log"
)

// Reporter is the only writer of per-frame output. Matches are always
// reported at info level; failures only in verbose mode, at error level.
type Reporter struct {
	logger  log.Logger
	verbose bool
}

func New(logger log.Logger, verbose bool) *Reporter {
	return &Reporter{logger: logger, verbose: verbose}
}

// Report emits at most one line for out. c is nil when coloring is off.
func (r *Reporter) Report(out core.Outcome, c *color.Color) {
	switch out.Kind {
	case core.Matched:
		line := FormatMatch(out)
		if c != nil {
			line = c.Wrap(line)
		}
		r.logger.Info(line)
	case core.DecodeFailed:
		if r.verbose {
			r.logger.Error(FormatDecodeFailure(out))
		}
	case core.Malformed:
		if r.verbose {
			r.logger.Error(FormatMalformed(out))
		}
	}
}

// FormatMatch right-aligns the address and left-aligns the port so that
// decoded messages line up in a column.
func FormatMatch(out core.Outcome) string {
	return fmt.Sprintf("%15s:%-5d %s", out.SrcIP, out.SrcPort, out.Message)
}

func FormatDecodeFailure(out core.Outcome) string {
	return fmt.Sprintf("Failed de-serialization from %s:%d: '%v', packet contents: [% x]",
		out.SrcIP, out.SrcPort, out.Err, out.Payload)
}

func FormatMalformed(out core.Outcome) string {
	return fmt.Sprintf("Failed link-layer frame de-serialization: '%v'", out.Err)
}
