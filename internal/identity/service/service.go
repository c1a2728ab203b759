// Package service resolves email addresses to registered persons.
package service

import (
	"context"
	"errors"
	"log/slog"

	"heirloom/internal/identity/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/email"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/requestcontext"
)

type PersonStore interface {
	Create(ctx context.Context, p *models.Person) error
	FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error)
	FindByEmail(ctx context.Context, address string) (*models.Person, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service resolves and registers identities.
type Service struct {
	persons        PersonStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = p }
}

func New(persons PersonStore, opts ...Option) *Service {
	s := &Service{persons: persons, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve maps an email to a registered person. An unknown address is a
// normal outcome: found is false and err is nil.
func (s *Service) Resolve(ctx context.Context, address string) (id.PersonID, bool, error) {
	address = email.Normalize(address)
	if address == "" {
		return id.PersonID{}, false, nil
	}
	p, err := s.persons.FindByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.PersonID{}, false, nil
		}
		return id.PersonID{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve identity")
	}
	return p.ID, true, nil
}

// Register creates an active person for a new email.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.Person, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := models.NewPerson(id.NewPersonID(), req.Email, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.persons.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register person")
	}

	s.logger.InfoContext(ctx, string(audit.EventPersonRegistered),
		"person_id", p.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "audit",
	)
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.Event{
			PersonID:  p.ID,
			Action:    string(audit.EventPersonRegistered),
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to audit registration", "person_id", p.ID.String(), "error", err)
		}
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	p, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "person not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load person")
	}
	return p, nil
}
