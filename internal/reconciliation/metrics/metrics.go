package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	records  *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_reconciliation_records_total",
			Help: "Contact records visited by reconciliation, by outcome",
		}, []string{"outcome"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_reconciliation_runs_total",
			Help: "Reconciliation runs by result (ok, errors, cancelled)",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heirloom_reconciliation_run_duration_seconds",
			Help:    "Wall time of one reconciliation run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}
}

func (m *Metrics) AddRecords(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.records.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) ObserveRun(result string, start time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}
