package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/vidindex/internal/ir"
)

// Skip reasons reported by vidindex_events_skipped_total.
const (
	SkipDuplicate = "duplicate"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	applied    *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	stale      *prometheus.CounterVec
	duration   prometheus.Histogram
	checkpoint prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests and replays want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidindex",
			Name:      "events_applied_total",
			Help:      "Events applied to the store, by kind.",
		}, []string{"kind"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidindex",
			Name:      "events_skipped_total",
			Help:      "Events delivered but not applied, by reason.",
		}, []string{"reason"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidindex",
			Name:      "stale_references_total",
			Help:      "Events that referenced a video not in the store, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vidindex",
			Name:      "apply_duration_seconds",
			Help:      "Time spent applying one event, including the commit.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		checkpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidindex",
			Name:      "checkpoint_block",
			Help:      "Block of the last applied event.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.applied, m.skipped, m.stale, m.duration, m.checkpoint)
	}
	return m
}

func (m *Metrics) observeApplied(ev ir.Event, seconds float64) {
	m.applied.WithLabelValues(string(ev.Kind)).Inc()
	m.duration.Observe(seconds)
	m.checkpoint.Set(float64(ev.Position.Block))
}

func (m *Metrics) observeSkipped(reason string) {
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeStale(kind ir.Kind) {
	m.stale.WithLabelValues(string(kind)).Inc()
}
