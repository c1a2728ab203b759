package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/contacts/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/platform/httputil"
	request "heirloom/pkg/platform/middleware/request"
	"heirloom/pkg/requestcontext"
)

// Service defines the contact operations the handler exposes.
type Service interface {
	Create(ctx context.Context, owner id.PersonID, req *models.CreateContactRequest) (*models.Contact, error)
	Promote(ctx context.Context, owner id.PersonID, contactID id.ContactID, req *models.PromoteRequest) (*models.Contact, error)
	Demote(ctx context.Context, owner id.PersonID, contactID id.ContactID) (*models.Contact, error)
	Delete(ctx context.Context, owner id.PersonID, contactID id.ContactID) error
	Get(ctx context.Context, owner id.PersonID, contactID id.ContactID) (*models.Contact, error)
	List(ctx context.Context, owner id.PersonID) ([]*models.Contact, error)
}

// Handler serves the owner's contact list. The authenticated requester is
// always the owner.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type ContactResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FullName         string    `json:"full_name"`
	Phone            string    `json:"phone,omitempty"`
	ContactType      string    `json:"contact_type"`
	Role             string    `json:"role,omitempty"`
	IsPrimary        bool      `json:"is_primary"`
	LinkedPersonID   string    `json:"linked_person_id,omitempty"`
	InvitationStatus string    `json:"invitation_status"`
	CreatedAt        time.Time `json:"created_at"`
}

type ListResponse struct {
	Contacts []ContactResponse `json:"contacts"`
}

func toResponse(c *models.Contact) ContactResponse {
	resp := ContactResponse{
		ID:               c.ID.String(),
		Email:            c.TargetEmail,
		FullName:         c.FullName,
		Phone:            c.Phone,
		ContactType:      string(c.ContactType),
		Role:             string(c.Role),
		IsPrimary:        c.IsPrimary,
		InvitationStatus: string(c.InvitationStatus),
		CreatedAt:        c.CreatedAt,
	}
	if c.IsLinked() {
		resp.LinkedPersonID = c.LinkedPersonID.String()
	}
	return resp
}

// Register mounts the routes on r; callers apply RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Route("/contacts", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/promote", h.HandlePromote)
		r.Post("/{id}/demote", h.HandleDemote)
		r.Delete("/{id}", h.HandleDelete)
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	owner, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateContactRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.svc.Create(ctx, owner, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create contact",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}
	contacts, err := h.svc.List(ctx, owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{Contacts: make([]ContactResponse, 0, len(contacts))}
	for _, c := range contacts {
		resp.Contacts = append(resp.Contacts, toResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, contactID, ok := h.ownerAndContact(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(ctx, owner, contactID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	owner, contactID, ok := h.ownerAndContact(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.PromoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.svc.Promote(ctx, owner, contactID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to promote contact",
			"request_id", requestID,
			"contact_id", contactID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) HandleDemote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, contactID, ok := h.ownerAndContact(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Demote(ctx, owner, contactID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, contactID, ok := h.ownerAndContact(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(ctx, owner, contactID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireOwner(w http.ResponseWriter, ctx context.Context) (id.PersonID, bool) {
	owner := requestcontext.PersonID(ctx)
	if owner.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.PersonID{}, false
	}
	return owner, true
}

func (h *Handler) ownerAndContact(w http.ResponseWriter, r *http.Request) (id.PersonID, id.ContactID, bool) {
	owner, ok := h.requireOwner(w, r.Context())
	if !ok {
		return id.PersonID{}, id.ContactID{}, false
	}
	contactID, err := id.ParseContactID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PersonID{}, id.ContactID{}, false
	}
	return owner, contactID, true
}
