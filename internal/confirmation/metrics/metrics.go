package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for confirmation attempts.
const (
	OutcomeConfirmed        = "confirmed"
	OutcomeDenied           = "denied"
	OutcomeAlreadyConfirmed = "already_confirmed"
	OutcomeError            = "error"
)

type Metrics struct {
	attempts        *prometheus.CounterVec
	duration        prometheus.Histogram
	triggerFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_deceased_confirmations_total",
			Help: "Deceased confirmation attempts by outcome",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heirloom_deceased_confirmation_duration_seconds",
			Help:    "Latency of deceased confirmation attempts",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		triggerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_release_trigger_failures_total",
			Help: "Confirmations whose release trigger could not be delivered",
		}),
	}
}

func (m *Metrics) ObserveAttempt(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncTriggerFailure() {
	if m == nil {
		return
	}
	m.triggerFailures.Inc()
}
