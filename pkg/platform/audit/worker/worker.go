// Package worker relays committed audit outbox rows to the audit topic.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"heirloom/pkg/platform/audit/store/postgres"
)

// Outbox is the subset of the postgres audit store the relay needs.
type Outbox interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FetchPending(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer publishes one record to a topic.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls the outbox and publishes pending entries in creation order.
// Delivery is at-least-once: an entry is marked only after the broker acks it.
type Relay struct {
	outbox    Outbox
	producer  Producer
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewRelay(outbox Outbox, producer Producer, topic string, interval time.Duration, logger *slog.Logger) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{
		outbox:    outbox,
		producer:  producer,
		topic:     topic,
		interval:  interval,
		batchSize: 100,
		logger:    logger,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "audit relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were marked.
// Publishing stops at the first failure so ordering within the batch holds.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.outbox.WithTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.FetchPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		var ids []uuid.UUID
		var publishErr error
		for _, e := range entries {
			if publishErr = r.producer.Publish(ctx, r.topic, []byte(e.AggregateID), e.Payload); publishErr != nil {
				break
			}
			ids = append(ids, e.ID)
		}
		if err := r.outbox.MarkPublished(ctx, ids); err != nil {
			return err
		}
		published = len(ids)
		if publishErr != nil {
			r.logger.WarnContext(ctx, "audit relay stopped early",
				"published", published,
				"error", publishErr,
			)
		}
		return nil
	})
	return published, err
}
