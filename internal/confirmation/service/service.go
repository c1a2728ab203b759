// Package service implements the deceased confirmation flow: authorize,
// transition the target exactly once, audit, then hand off to release.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"heirloom/internal/authz"
	"heirloom/internal/confirmation/metrics"
	"heirloom/internal/confirmation/models"
	identitymodels "heirloom/internal/identity/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/requestcontext"
)

type Authorizer interface {
	Authorize(ctx context.Context, requesterEmail string, requester, target id.PersonID, action authz.Action) (authz.Decision, error)
}

type PersonStore interface {
	FindByID(ctx context.Context, personID id.PersonID) (*identitymodels.Person, error)
	MarkDeceased(ctx context.Context, personID id.PersonID, now time.Time) error
}

type Store interface {
	Append(ctx context.Context, c *models.Confirmation) error
	FindByTarget(ctx context.Context, target id.PersonID) (*models.Confirmation, error)
}

// ReleaseTrigger hands a committed confirmation to the release orchestrator.
// Implementations must not block on the fan-out itself.
type ReleaseTrigger interface {
	Trigger(ctx context.Context, target id.PersonID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// errLostRace marks a transaction that found the target already deceased.
var errLostRace = errors.New("deceased transition lost the race")

type Service struct {
	authorizer     Authorizer
	persons        PersonStore
	store          Store
	tx             TxRunner
	trigger        ReleaseTrigger
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithReleaseTrigger(t ReleaseTrigger) Option {
	return func(s *Service) { s.trigger = t }
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

func New(authorizer Authorizer, persons PersonStore, store Store, opts ...Option) *Service {
	s := &Service{
		authorizer: authorizer,
		persons:    persons,
		store:      store,
		logger:     slog.Default(),
		tracer:     otel.Tracer("heirloom/confirmation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx()
	}
	return s
}

// Confirm declares the target deceased on behalf of a trusted contact.
//
// Exactly one concurrent caller wins. Losers, and callers arriving after the
// fact, get an *models.AlreadyConfirmedError carrying the winning record.
func (s *Service) Confirm(ctx context.Context, cmd models.ConfirmCommand) (*models.Confirmation, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "confirmation.Confirm", trace.WithAttributes(
		attribute.String("target_person_id", cmd.TargetPersonID.String()),
	))
	defer span.End()

	confirmation, outcome, err := s.confirm(ctx, cmd)
	s.metrics.ObserveAttempt(outcome, start)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil && outcome == metrics.OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirmation failed")
	}
	return confirmation, err
}

func (s *Service) confirm(ctx context.Context, cmd models.ConfirmCommand) (*models.Confirmation, string, error) {
	cmd.ConfirmRequest.Normalize()
	if err := cmd.ConfirmRequest.Validate(); err != nil {
		return nil, metrics.OutcomeError, err
	}
	if cmd.RequesterPersonID.IsNil() {
		return nil, metrics.OutcomeError, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	decision, err := s.authorizer.Authorize(ctx, cmd.RequesterEmail, cmd.RequesterPersonID, cmd.TargetPersonID, authz.ActionMarkDeceased)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	if !decision.Allowed {
		s.emit(ctx, audit.EventConfirmationDenied, cmd, string(decision.Reason))
		return nil, metrics.OutcomeDenied, decision.Err()
	}

	target, err := s.persons.FindByID(ctx, cmd.TargetPersonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, metrics.OutcomeError, dErrors.New(dErrors.CodeNotFound, "person not found")
		}
		return nil, metrics.OutcomeError, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load person")
	}
	if target.IsDeceased() {
		return nil, metrics.OutcomeAlreadyConfirmed, s.alreadyConfirmed(ctx, cmd)
	}

	now := requestcontext.Now(ctx)
	confirmation := &models.Confirmation{
		ID:                  id.NewConfirmationID(),
		TargetPersonID:      cmd.TargetPersonID,
		ConfirmedByPersonID: cmd.RequesterPersonID,
		ConfirmerRole:       decision.Role,
		Notes:               cmd.Notes,
		VerificationMethod:  cmd.VerificationMethod,
		ClientIP:            requestcontext.ClientIP(ctx),
		UserAgent:           requestcontext.UserAgent(ctx),
		ConfirmedAt:         now,
	}

	err = s.tx.RunInTx(ctx, cmd.TargetPersonID, func(ctx context.Context) error {
		if err := s.persons.MarkDeceased(ctx, cmd.TargetPersonID, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return errLostRace
			}
			return err
		}
		if err := s.store.Append(ctx, confirmation); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return errLostRace
			}
			return err
		}
		// Compliance events are written synchronously; with a postgres outbox
		// the row joins this transaction.
		return s.emitRequired(ctx, confirmation)
	})
	switch {
	case errors.Is(err, errLostRace):
		return nil, metrics.OutcomeAlreadyConfirmed, s.alreadyConfirmed(ctx, cmd)
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, metrics.OutcomeError, dErrors.New(dErrors.CodeNotFound, "person not found")
	case err != nil:
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, metrics.OutcomeError, err
		}
		return nil, metrics.OutcomeError, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record confirmation")
	}

	s.logger.InfoContext(ctx, string(audit.EventDeceasedConfirmed),
		"target_person_id", cmd.TargetPersonID.String(),
		"confirmed_by_person_id", cmd.RequesterPersonID.String(),
		"confirmer_role", string(decision.Role),
		"verification_method", string(cmd.VerificationMethod),
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "audit",
	)
	s.notifyRelease(ctx, cmd.TargetPersonID)
	return confirmation, metrics.OutcomeConfirmed, nil
}

// Get returns the effective confirmation. Any active trusted contact of the
// target may read it, whatever their role.
func (s *Service) Get(ctx context.Context, requesterEmail string, requester, target id.PersonID) (*models.Confirmation, error) {
	decision, err := s.authorizer.Authorize(ctx, requesterEmail, requester, target, authz.ActionMarkDeceased)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed && decision.Reason == authz.ReasonNoRelationship {
		return nil, decision.Err()
	}
	c, err := s.store.FindByTarget(ctx, target)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no confirmation recorded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load confirmation")
	}
	return c, nil
}

// alreadyConfirmed reads the winning record under the target's transaction
// boundary, so it waits for an in-flight winner to commit its record.
func (s *Service) alreadyConfirmed(ctx context.Context, cmd models.ConfirmCommand) error {
	s.emit(ctx, audit.EventConfirmationDuplicate, cmd, "already_confirmed")
	var effective *models.Confirmation
	err := s.tx.RunInTx(ctx, cmd.TargetPersonID, func(ctx context.Context) error {
		c, err := s.store.FindByTarget(ctx, cmd.TargetPersonID)
		if err != nil {
			return err
		}
		effective = c
		return nil
	})
	switch {
	case err == nil, errors.Is(err, sentinel.ErrNotFound):
		return &models.AlreadyConfirmedError{Effective: effective}
	case dErrors.HasCode(err, dErrors.CodeTimeout):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load effective confirmation")
	}
}

// notifyRelease runs after commit. A failed hand-off does not undo the
// confirmation; the admin retry endpoint re-runs the idempotent fan-out.
func (s *Service) notifyRelease(ctx context.Context, target id.PersonID) {
	if s.trigger == nil {
		return
	}
	if err := s.trigger.Trigger(context.WithoutCancel(ctx), target); err != nil {
		s.metrics.IncTriggerFailure()
		s.logger.ErrorContext(ctx, "failed to trigger release",
			"target_person_id", target.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) emitRequired(ctx context.Context, c *models.Confirmation) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp: c.ConfirmedAt,
		PersonID:  c.TargetPersonID,
		ActorID:   c.ConfirmedByPersonID,
		Subject:   c.ID.String(),
		Action:    string(audit.EventDeceasedConfirmed),
		Decision:  string(c.ConfirmerRole),
		Reason:    string(c.VerificationMethod),
		RequestID: requestcontext.RequestID(ctx),
		IP:        c.ClientIP,
		UserAgent: c.UserAgent,
	})
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, cmd models.ConfirmCommand, reason string) {
	requestID := requestcontext.RequestID(ctx)
	s.logger.WarnContext(ctx, string(event),
		"target_person_id", cmd.TargetPersonID.String(),
		"requester_person_id", cmd.RequesterPersonID.String(),
		"reason", reason,
		"request_id", requestID,
		"log_type", "audit",
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		PersonID:  cmd.TargetPersonID,
		ActorID:   cmd.RequesterPersonID,
		Action:    string(event),
		Decision:  "denied",
		Reason:    reason,
		RequestID: requestID,
		IP:        requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", string(event),
			"request_id", requestID,
			"error", err,
		)
	}
}
