// Package publisher emits audit events to a store.
//
// Compliance events are always written synchronously and a failure is
// returned to the caller, which must abort its operation. Security and
// operations events go through an optional bounded buffer; when it is full
// the event is logged and dropped.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "heirloom/pkg/platform/audit"
)

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithAsyncBuffer enables buffered delivery for non-compliance events.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit fills in category and timestamp, then persists or enqueues the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	event.Category = audit.AuditEvent(event.Action).Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if event.Category == audit.CategoryCompliance || p.buffer == nil {
		return p.persist(ctx, event)
	}

	select {
	case p.buffer <- event:
	default:
		p.metrics.incDropped()
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
	}
	return nil
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.incFailed(event.Category)
		p.logger.ErrorContext(ctx, "audit persistence failed",
			"action", event.Action,
			"person_id", event.PersonID,
			"error", err,
		)
		return fmt.Errorf("audit persistence failed: %w", err)
	}
	p.metrics.incEmitted(event.Category)
	return nil
}

// drain persists buffered events detached from request contexts, which may
// already be cancelled by the time the event is written.
func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = p.persist(ctx, event)
		cancel()
	}
}

// Close flushes the buffer and stops the background writer.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

// Metrics counts audit outcomes by category.
type Metrics struct {
	emitted *prometheus.CounterVec
	failed  *prometheus.CounterVec
	dropped prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		emitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_audit_events_emitted_total",
			Help: "Audit events persisted, by category",
		}, []string{"category"}),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_audit_events_failed_total",
			Help: "Audit events that failed to persist, by category",
		}, []string{"category"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_audit_events_dropped_total",
			Help: "Non-compliance audit events dropped because the buffer was full",
		}),
	}
}

func (m *Metrics) incEmitted(c audit.EventCategory) {
	if m != nil {
		m.emitted.WithLabelValues(string(c)).Inc()
	}
}

func (m *Metrics) incFailed(c audit.EventCategory) {
	if m != nil {
		m.failed.WithLabelValues(string(c)).Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}
