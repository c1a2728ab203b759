// Package service fans a deceased owner's private content out to its
// recipients once a confirmation exists.
//
// A release run is idempotent: pairs already recorded are skipped, so the
// same run can be re-invoked after a crash or a partial failure and only the
// missing pairs are attempted. Failed pairs never undo pairs that succeeded.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	confirmationmodels "heirloom/internal/confirmation/models"
	contactmodels "heirloom/internal/contacts/models"
	"heirloom/internal/release/metrics"
	"heirloom/internal/release/models"
	"heirloom/internal/release/ports"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/email"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/sentinel"
	pstrings "heirloom/pkg/platform/strings"
	"heirloom/pkg/requestcontext"
)

const defaultMaxParallel = 8

type ConfirmationSource interface {
	FindByTarget(ctx context.Context, target id.PersonID) (*confirmationmodels.Confirmation, error)
}

// ContactLookup resolves the relationship a content item is assigned to.
type ContactLookup interface {
	FindByID(ctx context.Context, contactID id.ContactID) (*contactmodels.Contact, error)
}

type Store interface {
	CreateIfAbsent(ctx context.Context, share *models.Share) (bool, error)
	ExistingPairs(ctx context.Context, contentIDs []id.ContentID) (map[models.Pair]struct{}, error)
	MarkViewed(ctx context.Context, shareID id.ShareID, recipient string, now time.Time) (*models.Share, error)
	ListForRecipient(ctx context.Context, recipient string) ([]*models.Share, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Orchestrator struct {
	confirmations  ConfirmationSource
	contacts       ContactLookup
	catalog        ports.ContentCatalog
	sharer         ports.ContentSharer
	store          Store
	maxParallel    int
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(o *Orchestrator) { o.auditPublisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithMaxParallel bounds concurrent external share calls per run.
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

func New(
	confirmations ConfirmationSource,
	contacts ContactLookup,
	catalog ports.ContentCatalog,
	sharer ports.ContentSharer,
	store Store,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		confirmations: confirmations,
		contacts:      contacts,
		catalog:       catalog,
		sharer:        sharer,
		store:         store,
		maxParallel:   defaultMaxParallel,
		logger:        slog.Default(),
		tracer:        otel.Tracer("heirloom/release"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnConfirmed releases every private content item of target to its
// recipients. It returns *models.PartialFailureError when some pairs failed;
// the Result is populated either way.
func (o *Orchestrator) OnConfirmed(ctx context.Context, target id.PersonID) (models.Result, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "release.OnConfirmed",
		trace.WithAttributes(attribute.String("target_person_id", target.String())))
	defer span.End()

	result := models.Result{TargetPersonID: target}

	if _, err := o.confirmations.FindByTarget(ctx, target); err != nil {
		o.metrics.ObserveRun("error", start)
		span.SetStatus(codes.Error, "no confirmation")
		if errors.Is(err, sentinel.ErrNotFound) {
			return result, dErrors.New(dErrors.CodeInvariantViolation, "release requires a deceased confirmation")
		}
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load confirmation")
	}

	pairs, err := o.plan(ctx, target)
	if err != nil {
		o.metrics.ObserveRun("error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan failed")
		return result, err
	}
	result.Planned = len(pairs)
	planIndex := make(map[models.Pair]struct{}, len(pairs))
	for _, p := range pairs {
		planIndex[p] = struct{}{}
	}

	existing, err := o.store.ExistingPairs(ctx, contentIDs(pairs))
	if err != nil {
		o.metrics.ObserveRun("error", start)
		span.RecordError(err)
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load existing shares")
	}

	var (
		mu       sync.Mutex
		failures []models.ItemFailure
	)
	for pair := range existing {
		if _, planned := planIndex[pair]; planned {
			result.Skipped++
			o.metrics.IncItem(metrics.OutcomeSkipped)
		}
	}
	g := new(errgroup.Group)
	g.SetLimit(o.maxParallel)
	for _, pair := range pairs {
		if _, done := existing[pair]; done {
			continue
		}
		g.Go(func() error {
			created, err := o.releaseOne(ctx, target, pair)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failures = append(failures, models.ItemFailure{ContentID: pair.ContentID, Recipient: pair.Recipient, Err: err})
				o.metrics.IncItem(metrics.OutcomeFailed)
			case created:
				result.Shared++
				o.metrics.IncItem(metrics.OutcomeShared)
			default:
				result.Skipped++
				o.metrics.IncItem(metrics.OutcomeSkipped)
			}
			// Failures are collected, never returned, so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	result.Failed = len(failures)
	span.SetAttributes(
		attribute.Int("release.planned", result.Planned),
		attribute.Int("release.shared", result.Shared),
		attribute.Int("release.skipped", result.Skipped),
		attribute.Int("release.failed", result.Failed),
	)

	if result.Shared > 0 {
		o.emit(ctx, audit.EventReleaseShared, target, fmt.Sprintf("shared=%d skipped=%d", result.Shared, result.Skipped))
	}
	if len(failures) > 0 {
		sortFailures(failures)
		o.emit(ctx, audit.EventReleasePartialFailure, target, fmt.Sprintf("failed=%d", len(failures)))
		o.logger.WarnContext(ctx, "release completed with failures",
			"target_person_id", target.String(),
			"planned", result.Planned,
			"shared", result.Shared,
			"failed", result.Failed,
		)
		o.metrics.ObserveRun("partial", start)
		span.SetStatus(codes.Error, "partial failure")
		return result, &models.PartialFailureError{Failures: failures}
	}

	o.logger.InfoContext(ctx, "release completed",
		"target_person_id", target.String(),
		"planned", result.Planned,
		"shared", result.Shared,
		"skipped", result.Skipped,
	)
	o.metrics.ObserveRun("complete", start)
	return result, nil
}

// releaseOne shares first and records second. A crash between the two leaves
// no row, so the next run shares again; ContentSharer is idempotent.
func (o *Orchestrator) releaseOne(ctx context.Context, owner id.PersonID, pair models.Pair) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	done := o.metrics.TrackShare()
	err := o.sharer.Share(ctx, pair.ContentID, pair.Recipient)
	done()
	if err != nil {
		return false, err
	}
	return o.store.CreateIfAbsent(ctx, models.NewShare(pair, owner, requestcontext.Now(ctx)))
}

// plan expands the catalog into (content, recipient) pairs. Content assigned
// to a relationship that is no longer a trusted legacy messenger of the
// owner falls back to the general recipients.
func (o *Orchestrator) plan(ctx context.Context, owner id.PersonID) ([]models.Pair, error) {
	contents, err := o.catalog.ListPrivateContent(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list private content")
	}

	var general []string
	generalLoaded := false
	loadGeneral := func() ([]string, error) {
		if generalLoaded {
			return general, nil
		}
		raw, err := o.catalog.GeneralRecipients(ctx, owner)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list general recipients")
		}
		general = pstrings.Dedupe(raw, email.Normalize)
		generalLoaded = true
		return general, nil
	}
	assigned := make(map[id.ContactID][]string)

	var pairs []models.Pair
	seen := make(map[models.Pair]struct{})
	for _, content := range contents {
		var recipients []string
		if content.IsAssigned() {
			contactID := *content.AssignedContactID
			cached, ok := assigned[contactID]
			if !ok {
				cached, err = o.assignedRecipients(ctx, owner, contactID)
				if err != nil {
					return nil, err
				}
				assigned[contactID] = cached
			}
			recipients = cached
		}
		if len(recipients) == 0 {
			if recipients, err = loadGeneral(); err != nil {
				return nil, err
			}
		}
		for _, r := range recipients {
			pair := models.Pair{ContentID: content.ID, Recipient: r}
			if _, dup := seen[pair]; dup {
				continue
			}
			seen[pair] = struct{}{}
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

// assignedRecipients returns nil when the assignment should fall back to
// the general recipients. An assignment with no recipients falls back too.
func (o *Orchestrator) assignedRecipients(ctx context.Context, owner id.PersonID, contactID id.ContactID) ([]string, error) {
	contact, err := o.contacts.FindByID(ctx, contactID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load assigned contact")
	}
	if contact == nil || contact.OwnerPersonID != owner ||
		!contact.IsTrusted() || contact.Role != contactmodels.RoleLegacyMessenger {
		o.logger.InfoContext(ctx, "assignment no longer held by a legacy messenger, using general recipients",
			"owner_person_id", owner.String(),
			"contact_id", contactID.String(),
		)
		return nil, nil
	}
	raw, err := o.catalog.AssignedRecipients(ctx, owner, contactID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assigned recipients")
	}
	return pstrings.Dedupe(raw, email.Normalize), nil
}

// MarkViewed records the recipient's first view of a share.
func (o *Orchestrator) MarkViewed(ctx context.Context, shareID id.ShareID, recipient string) (*models.Share, error) {
	recipient = email.Normalize(recipient)
	if recipient == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "recipient identity required")
	}
	share, err := o.store.MarkViewed(ctx, shareID, recipient, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "release not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark release viewed")
	}
	o.emit(ctx, audit.EventReleaseViewed, share.OwnerPersonID, share.ID.String())
	return share, nil
}

// ListForRecipient returns the shares released to recipient, newest first.
func (o *Orchestrator) ListForRecipient(ctx context.Context, recipient string) ([]*models.Share, error) {
	recipient = email.Normalize(recipient)
	if recipient == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "recipient identity required")
	}
	shares, err := o.store.ListForRecipient(ctx, recipient)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list releases")
	}
	return shares, nil
}

func (o *Orchestrator) emit(ctx context.Context, event audit.AuditEvent, owner id.PersonID, reason string) {
	requestID := requestcontext.RequestID(ctx)
	o.logger.InfoContext(ctx, string(event),
		"owner_person_id", owner.String(),
		"reason", reason,
		"request_id", requestID,
		"log_type", "audit",
	)
	if o.auditPublisher == nil {
		return
	}
	if err := o.auditPublisher.Emit(ctx, audit.Event{
		PersonID:  owner,
		ActorID:   requestcontext.PersonID(ctx),
		Action:    string(event),
		Reason:    reason,
		RequestID: requestID,
	}); err != nil {
		o.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", string(event),
			"request_id", requestID,
			"error", err,
		)
	}
}

func contentIDs(pairs []models.Pair) []id.ContentID {
	seen := make(map[id.ContentID]struct{})
	var out []id.ContentID
	for _, p := range pairs {
		if _, ok := seen[p.ContentID]; ok {
			continue
		}
		seen[p.ContentID] = struct{}{}
		out = append(out, p.ContentID)
	}
	return out
}

func sortFailures(f []models.ItemFailure) {
	sort.Slice(f, func(i, j int) bool {
		if f[i].ContentID != f[j].ContentID {
			return f[i].ContentID.String() < f[j].ContentID.String()
		}
		return f[i].Recipient < f[j].Recipient
	})
}
