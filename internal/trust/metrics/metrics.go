package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks how the reverse trust index cache is serving lookups.
type Metrics struct {
	lookups     *prometheus.CounterVec
	cacheErrors prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_trust_index_lookups_total",
			Help: "Reverse trust index lookups by cache outcome",
		}, []string{"outcome"}),
		cacheErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_trust_index_cache_errors_total",
			Help: "Reverse trust index cache operations that failed",
		}),
	}
}

func (m *Metrics) IncHit() {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) IncMiss() {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) IncCacheError() {
	if m == nil {
		return
	}
	m.cacheErrors.Inc()
}
