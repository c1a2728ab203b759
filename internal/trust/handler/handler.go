package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/trust/models"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/platform/httputil"
	"heirloom/pkg/requestcontext"
)

type Index interface {
	TrustorsOf(ctx context.Context, address string) ([]models.Trustor, error)
}

// Handler answers "who trusts me" for the authenticated requester's email.
type Handler struct {
	index  Index
	logger *slog.Logger
}

func New(index Index, logger *slog.Logger) *Handler {
	return &Handler{index: index, logger: logger}
}

type TrustorResponse struct {
	OwnerPersonID    string `json:"owner_person_id"`
	ContactID        string `json:"contact_id"`
	Role             string `json:"role"`
	IsPrimary        bool   `json:"is_primary"`
	InvitationStatus string `json:"invitation_status"`
}

type TrustorsResponse struct {
	Trustors []TrustorResponse `json:"trustors"`
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/trust/trustors", h.HandleTrustors)
}

func (h *Handler) HandleTrustors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := requestcontext.Email(ctx)
	if address == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	trustors, err := h.index.TrustorsOf(ctx, address)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to look up trustors",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	personID := requestcontext.PersonID(ctx)
	resp := TrustorsResponse{Trustors: make([]TrustorResponse, 0, len(trustors))}
	for _, t := range trustors {
		// An entry linked to a different account is not about this requester.
		if !t.LinkedTo(personID) {
			continue
		}
		resp.Trustors = append(resp.Trustors, TrustorResponse{
			OwnerPersonID:    t.OwnerPersonID.String(),
			ContactID:        t.ContactID.String(),
			Role:             string(t.Role),
			IsPrimary:        t.IsPrimary,
			InvitationStatus: string(t.InvitationStatus),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
