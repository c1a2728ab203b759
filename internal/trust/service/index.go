// Package service answers "who has designated this email as trusted".
package service

import (
	"context"
	"errors"
	"log/slog"

	contactmodels "heirloom/internal/contacts/models"
	"heirloom/internal/trust/metrics"
	"heirloom/internal/trust/models"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/email"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/requestcontext"
)

// ContactSource is the source of truth: trusted contact records by email,
// merged across both physical shapes.
type ContactSource interface {
	ListTrustedByEmail(ctx context.Context, address string) ([]*contactmodels.Contact, error)
}

// Cache holds derived trustor lists keyed by normalized email.
type Cache interface {
	Get(ctx context.Context, address string) ([]models.Trustor, error)
	Set(ctx context.Context, address string, trustors []models.Trustor) error
	Delete(ctx context.Context, address string) error
}

// Index is the reverse trust index. Cache failures degrade to reading the
// source directly; they never fail a lookup.
type Index struct {
	source  ContactSource
	cache   Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Index)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) { i.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Index) { i.metrics = m }
}

func New(source ContactSource, cache Cache, opts ...Option) *Index {
	i := &Index{source: source, cache: cache, logger: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TrustorsOf serves from the cache and falls back to the source on a miss.
func (i *Index) TrustorsOf(ctx context.Context, address string) ([]models.Trustor, error) {
	address = email.Normalize(address)
	if address == "" {
		return nil, nil
	}
	if i.cache != nil {
		cached, err := i.cache.Get(ctx, address)
		switch {
		case err == nil:
			i.metrics.IncHit()
			return cached, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			i.metrics.IncCacheError()
			i.logger.WarnContext(ctx, "trust index cache read failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		i.metrics.IncMiss()
	}
	return i.Refresh(ctx, address)
}

// Refresh rebuilds the entry from the source of truth and stores it.
// Authorization decisions use this path so they never see a stale entry.
func (i *Index) Refresh(ctx context.Context, address string) ([]models.Trustor, error) {
	address = email.Normalize(address)
	if address == "" {
		return nil, nil
	}
	records, err := i.source.ListTrustedByEmail(ctx, address)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trusted relationships")
	}
	trustors := models.FromContacts(records)
	if i.cache != nil {
		if err := i.cache.Set(ctx, address, trustors); err != nil {
			i.metrics.IncCacheError()
			i.logger.WarnContext(ctx, "trust index cache write failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}
	return trustors, nil
}

// Invalidate drops the cached entry for an email after a contact write.
func (i *Index) Invalidate(ctx context.Context, address string) error {
	if i.cache == nil {
		return nil
	}
	address = email.Normalize(address)
	if address == "" {
		return nil
	}
	if err := i.cache.Delete(ctx, address); err != nil {
		i.metrics.IncCacheError()
		return err
	}
	return nil
}
