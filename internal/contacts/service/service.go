// Package service implements the contact registry: the owner-scoped
// lifecycle of contacts and their promotion to trusted.
package service

import (
	"context"
	"errors"
	"log/slog"

	"heirloom/internal/contacts/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, c *models.Contact) error
	Update(ctx context.Context, c *models.Contact) error
	Delete(ctx context.Context, contactID id.ContactID) error
	FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error)
	ListByOwner(ctx context.Context, owner id.PersonID) ([]*models.Contact, error)
}

// IdentityResolver maps an email to a registered person.
type IdentityResolver interface {
	Resolve(ctx context.Context, address string) (id.PersonID, bool, error)
}

// IndexInvalidator drops the derived reverse-index entry for an email.
type IndexInvalidator interface {
	Invalidate(ctx context.Context, address string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Registry owns contact mutations. Every mutation is scoped to the owner:
// a contact belonging to someone else is reported as not found.
type Registry struct {
	store          Store
	resolver       IdentityResolver
	index          IndexInvalidator
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(r *Registry) { r.auditPublisher = p }
}

func WithIndexInvalidator(index IndexInvalidator) Option {
	return func(r *Registry) { r.index = index }
}

func New(store Store, resolver IdentityResolver, opts ...Option) *Registry {
	r := &Registry{store: store, resolver: resolver, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create adds a contact for owner. When the email already belongs to a
// registered person the contact is linked immediately; a trusted contact is
// then registered without any approval step.
func (r *Registry) Create(ctx context.Context, owner id.PersonID, req *models.CreateContactRequest) (*models.Contact, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	personID, found, err := r.resolver.Resolve(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	var resolved *id.PersonID
	if found {
		if personID == owner {
			return nil, dErrors.New(dErrors.CodeValidation, "cannot add yourself as a contact")
		}
		resolved = &personID
	}

	c, err := models.NewContact(id.NewContactID(), owner, req, resolved, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := r.store.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "contact already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create contact")
	}

	r.invalidate(ctx, c.TargetEmail)
	r.logAudit(ctx, audit.EventContactCreated, c)
	return c, nil
}

// Promote elevates a contact to trusted. A contact without a phone number is
// rejected and left unchanged.
func (r *Registry) Promote(ctx context.Context, owner id.PersonID, contactID id.ContactID, req *models.PromoteRequest) (*models.Contact, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c, err := r.Get(ctx, owner, contactID)
	if err != nil {
		return nil, err
	}
	if err := c.CanPromote(req.Role); err != nil {
		return nil, err
	}

	c.ApplyPromotion(req.Role, req.IsPrimary, requestcontext.Now(ctx))
	if err := r.update(ctx, c); err != nil {
		return nil, err
	}
	r.invalidate(ctx, c.TargetEmail)
	r.logAudit(ctx, audit.EventContactPromoted, c)
	return c, nil
}

// Demote returns a contact to regular and clears its role.
func (r *Registry) Demote(ctx context.Context, owner id.PersonID, contactID id.ContactID) (*models.Contact, error) {
	c, err := r.Get(ctx, owner, contactID)
	if err != nil {
		return nil, err
	}
	if !c.IsTrusted() {
		return c, nil
	}
	c.ApplyDemotion(requestcontext.Now(ctx))
	if err := r.update(ctx, c); err != nil {
		return nil, err
	}
	r.invalidate(ctx, c.TargetEmail)
	r.logAudit(ctx, audit.EventContactDemoted, c)
	return c, nil
}

// Delete removes the contact record only. Confirmations and release shares
// that reference the contact's person are kept.
func (r *Registry) Delete(ctx context.Context, owner id.PersonID, contactID id.ContactID) error {
	c, err := r.Get(ctx, owner, contactID)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, contactID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete contact")
	}
	r.invalidate(ctx, c.TargetEmail)
	r.logAudit(ctx, audit.EventContactDeleted, c)
	return nil
}

func (r *Registry) Get(ctx context.Context, owner id.PersonID, contactID id.ContactID) (*models.Contact, error) {
	c, err := r.store.FindByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contact")
	}
	if c.OwnerPersonID != owner {
		return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
	}
	return c, nil
}

func (r *Registry) List(ctx context.Context, owner id.PersonID) ([]*models.Contact, error) {
	contacts, err := r.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contacts")
	}
	return contacts, nil
}

func (r *Registry) update(ctx context.Context, c *models.Contact) error {
	if err := r.store.Update(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update contact")
	}
	return nil
}

// invalidate is best effort: authorization never reads the cached index,
// so a stale entry only affects the "who trusts me" listing until its TTL.
func (r *Registry) invalidate(ctx context.Context, address string) {
	if r.index == nil {
		return
	}
	if err := r.index.Invalidate(ctx, address); err != nil {
		r.logger.WarnContext(ctx, "failed to invalidate trust index",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (r *Registry) logAudit(ctx context.Context, event audit.AuditEvent, c *models.Contact) {
	requestID := requestcontext.RequestID(ctx)
	r.logger.InfoContext(ctx, string(event),
		"owner_person_id", c.OwnerPersonID.String(),
		"contact_id", c.ID.String(),
		"contact_type", string(c.ContactType),
		"role", string(c.Role),
		"request_id", requestID,
		"log_type", "audit",
	)
	if r.auditPublisher == nil {
		return
	}
	if err := r.auditPublisher.Emit(ctx, audit.Event{
		PersonID:  c.OwnerPersonID,
		ActorID:   c.OwnerPersonID,
		Subject:   c.ID.String(),
		Action:    string(event),
		Decision:  string(c.Role),
		RequestID: requestID,
	}); err != nil {
		r.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", string(event),
			"request_id", requestID,
			"error", err,
		)
	}
}
