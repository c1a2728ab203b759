package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Item outcome labels.
const (
	OutcomeShared  = "shared"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

type Metrics struct {
	items    *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	inFlight prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_release_items_total",
			Help: "Content/recipient pairs processed by release runs, by outcome",
		}, []string{"outcome"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_release_runs_total",
			Help: "Release runs by result (complete, partial, error)",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heirloom_release_run_duration_seconds",
			Help:    "Wall time of one release run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "heirloom_release_shares_in_flight",
			Help: "External share calls currently in progress",
		}),
	}
}

func (m *Metrics) IncItem(outcome string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRun(result string, start time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

// TrackShare marks one external call in flight; call the returned func when it ends.
func (m *Metrics) TrackShare() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}
