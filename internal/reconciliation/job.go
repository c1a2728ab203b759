// Package reconciliation repairs contact records whose target registered
// after the contact was created: it fills the missing link to the person and
// moves pending trusted records to registered.
//
// The job only ever adds links and upgrades status. It never deletes, never
// replaces an existing link and never downgrades, so any number of runs, or
// a run racing contact creation, converges on the same state.
package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	contactmodels "heirloom/internal/contacts/models"
	"heirloom/internal/reconciliation/metrics"
	trustmodels "heirloom/internal/trust/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/requestcontext"
)

const defaultBatchSize = 500

type ContactStore interface {
	ListPage(ctx context.Context, owner *id.PersonID, after id.ContactID, limit int) ([]*contactmodels.Contact, error)
	LinkIdentity(ctx context.Context, contactID id.ContactID, personID id.PersonID, now time.Time) (bool, error)
}

type IdentityResolver interface {
	Resolve(ctx context.Context, address string) (id.PersonID, bool, error)
}

// IndexRefresher rebuilds the reverse trust index entry for an email.
type IndexRefresher interface {
	Refresh(ctx context.Context, address string) ([]trustmodels.Trustor, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Scope narrows a run. A nil OwnerPersonID scans every record.
type Scope struct {
	OwnerPersonID *id.PersonID
}

// RecordError is one record the run could not repair.
type RecordError struct {
	ContactID id.ContactID `json:"contact_id"`
	Error     string       `json:"error"`
}

type Summary struct {
	Scanned       int           `json:"scanned"`
	Fixed         int           `json:"fixed"`
	AlreadyLinked int           `json:"already_linked"`
	NoMatch       int           `json:"no_match"`
	Errors        []RecordError `json:"errors,omitempty"`
}

type Job struct {
	contacts       ContactStore
	resolver       IdentityResolver
	index          IndexRefresher
	batchSize      int
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Job)

func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) { j.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(j *Job) { j.auditPublisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) { j.metrics = m }
}

func WithBatchSize(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.batchSize = n
		}
	}
}

func NewJob(contacts ContactStore, resolver IdentityResolver, index IndexRefresher, opts ...Option) *Job {
	j := &Job{
		contacts:  contacts,
		resolver:  resolver,
		index:     index,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
		tracer:    otel.Tracer("heirloom/reconciliation"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run scans the scope in ID order. Per-record failures are collected in the
// summary; cancellation stops the scan between records and returns the
// partial summary with a timeout error.
func (j *Job) Run(ctx context.Context, scope Scope) (summary Summary, err error) {
	start := time.Now()
	ctx, span := j.tracer.Start(ctx, "reconciliation.Run",
		trace.WithAttributes(attribute.Bool("scoped", scope.OwnerPersonID != nil)))
	defer func() {
		span.SetAttributes(
			attribute.Int("scanned", summary.Scanned),
			attribute.Int("fixed", summary.Fixed),
		)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	touched := make(map[string]struct{})

	var cursor id.ContactID
	for {
		page, err := j.contacts.ListPage(ctx, scope.OwnerPersonID, cursor, j.batchSize)
		if err != nil {
			j.metrics.ObserveRun("errors", start)
			return summary, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contacts")
		}
		for _, c := range page {
			if err := ctx.Err(); err != nil {
				j.finish(ctx, scope, &summary, touched, start, "cancelled")
				return summary, dErrors.Wrap(err, dErrors.CodeTimeout, "reconciliation interrupted")
			}
			summary.Scanned++
			switch fixed, matched, err := j.reconcile(ctx, c); {
			case err != nil:
				summary.Errors = append(summary.Errors, RecordError{ContactID: c.ID, Error: err.Error()})
				j.logger.WarnContext(ctx, "reconciliation failed for contact",
					"contact_id", c.ID.String(),
					"error", err,
				)
			case fixed:
				summary.Fixed++
				touched[c.TargetEmail] = struct{}{}
			case matched:
				summary.AlreadyLinked++
			default:
				summary.NoMatch++
			}
		}
		if len(page) < j.batchSize {
			break
		}
		cursor = page[len(page)-1].ID
	}

	result := "ok"
	if len(summary.Errors) > 0 {
		result = "errors"
	}
	j.finish(ctx, scope, &summary, touched, start, result)
	return summary, nil
}

// reconcile repairs one record. matched reports whether the record has (or
// now has) a person; fixed reports whether this call changed it.
func (j *Job) reconcile(ctx context.Context, c *contactmodels.Contact) (fixed, matched bool, err error) {
	if !c.NeedsLinkRepair() {
		return false, true, nil
	}

	personID := id.PersonID{}
	if c.IsLinked() {
		personID = *c.LinkedPersonID
	} else {
		resolved, found, err := j.resolver.Resolve(ctx, c.TargetEmail)
		if err != nil {
			return false, false, err
		}
		if !found {
			return false, false, nil
		}
		personID = resolved
	}

	changed, err := j.contacts.LinkIdentity(ctx, c.ID, personID, requestcontext.Now(ctx))
	if err != nil {
		return false, false, fmt.Errorf("link contact: %w", err)
	}
	if changed {
		j.emit(ctx, audit.EventContactLinked, c.OwnerPersonID, personID, c.ID.String())
	}
	return changed, true, nil
}

// finish refreshes the index for touched emails and records the run.
// Refresh failures are logged; authorization reads the source of truth, so a
// stale cache entry only delays the "who trusts me" view until TTL expiry.
func (j *Job) finish(ctx context.Context, scope Scope, summary *Summary, touched map[string]struct{}, start time.Time, result string) {
	refreshCtx := context.WithoutCancel(ctx)
	for address := range touched {
		if _, err := j.index.Refresh(refreshCtx, address); err != nil {
			j.logger.WarnContext(ctx, "failed to refresh trust index after reconciliation",
				"error", err,
			)
		}
	}

	j.metrics.AddRecords("fixed", summary.Fixed)
	j.metrics.AddRecords("already_linked", summary.AlreadyLinked)
	j.metrics.AddRecords("no_match", summary.NoMatch)
	j.metrics.AddRecords("error", len(summary.Errors))
	j.metrics.ObserveRun(result, start)

	owner := id.PersonID{}
	if scope.OwnerPersonID != nil {
		owner = *scope.OwnerPersonID
	}
	j.emit(refreshCtx, audit.EventReconciliationRun, owner, id.PersonID{},
		fmt.Sprintf("scanned=%d fixed=%d already_linked=%d no_match=%d errors=%d",
			summary.Scanned, summary.Fixed, summary.AlreadyLinked, summary.NoMatch, len(summary.Errors)))

	j.logger.InfoContext(ctx, "reconciliation finished",
		"result", result,
		"scanned", summary.Scanned,
		"fixed", summary.Fixed,
		"already_linked", summary.AlreadyLinked,
		"no_match", summary.NoMatch,
		"errors", len(summary.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (j *Job) emit(ctx context.Context, event audit.AuditEvent, personID, actorID id.PersonID, reason string) {
	if j.auditPublisher == nil {
		return
	}
	if err := j.auditPublisher.Emit(ctx, audit.Event{
		PersonID:  personID,
		ActorID:   actorID,
		Action:    string(event),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		j.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", string(event),
			"error", err,
		)
	}
}
