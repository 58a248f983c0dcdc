// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/dissect/internal/capture"
	"firestige.xyz/dissect/internal/core"
)

const namespace = "dissect"

// Metrics holds the collectors of one capture run.
type Metrics struct {
	// FramesTotal counts frames by outcome
	FramesTotal *prometheus.CounterVec

	// ColorTableSize tracks how many sources have been assigned a color
	ColorTableSize prometheus.Gauge

	reg prometheus.Registerer
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Total number of captured frames by outcome",
			},
			[]string{"outcome"},
		),
		ColorTableSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "color_table_size",
				Help:      "Number of traffic sources with an assigned color",
			},
		),
		reg: reg,
	}
}

func (m *Metrics) ObserveOutcome(kind core.OutcomeKind) {
	m.FramesTotal.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) ObserveColors(n int) {
	m.ColorTableSize.Set(float64(n))
}

// WatchCapture exports the kernel counters of a live session. stats is
// called on every scrape; a failing call reports the last value as zero.
func (m *Metrics) WatchCapture(device string, stats func() (capture.Stats, error)) {
	factory := promauto.With(m.reg)
	labels := prometheus.Labels{"device": device}
	gauge := func(name, help string, pick func(capture.Stats) int) {
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "capture",
				Name:        name,
				Help:        help,
				ConstLabels: labels,
			},
			func() float64 {
				st, err := stats()
				if err != nil {
					return 0
				}
				return float64(pick(st))
			},
		)
	}
	gauge("received_packets", "Packets received by the capture device", func(s capture.Stats) int { return s.Received })
	gauge("dropped_packets", "Packets dropped by the capture buffer", func(s capture.Stats) int { return s.Dropped })
	gauge("interface_dropped_packets", "Packets dropped by the network interface", func(s capture.Stats) int { return s.IfDropped })
}
