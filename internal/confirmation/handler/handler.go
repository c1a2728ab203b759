package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/confirmation/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/platform/httputil"
	request "heirloom/pkg/platform/middleware/request"
	"heirloom/pkg/requestcontext"
)

type Service interface {
	Confirm(ctx context.Context, cmd models.ConfirmCommand) (*models.Confirmation, error)
	Get(ctx context.Context, requesterEmail string, requester, target id.PersonID) (*models.Confirmation, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type ConfirmationResponse struct {
	Success            bool      `json:"success"`
	ConfirmationID     string    `json:"confirmation_id"`
	ConfirmedBy        string    `json:"confirmed_by"`
	ConfirmerRole      string    `json:"confirmer_role"`
	VerificationMethod string    `json:"verification_method"`
	ConfirmedAt        time.Time `json:"confirmed_at"`
}

// AlreadyConfirmedResponse is the 409 body; it names the effective
// confirmation so a losing caller learns who won.
type AlreadyConfirmedResponse struct {
	httputil.ErrorResponse
	ConfirmedBy string     `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

func toResponse(c *models.Confirmation) ConfirmationResponse {
	return ConfirmationResponse{
		Success:            true,
		ConfirmationID:     c.ID.String(),
		ConfirmedBy:        c.ConfirmedByPersonID.String(),
		ConfirmerRole:      string(c.ConfirmerRole),
		VerificationMethod: string(c.VerificationMethod),
		ConfirmedAt:        c.ConfirmedAt,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/persons/{id}/deceased-confirmation", h.HandleConfirm)
	r.Get("/persons/{id}/deceased-confirmation", h.HandleGet)
}

func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	requester := requestcontext.PersonID(ctx)
	if requester.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	target, err := id.ParsePersonID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ConfirmRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.svc.Confirm(ctx, models.ConfirmCommand{
		RequesterPersonID: requester,
		RequesterEmail:    requestcontext.Email(ctx),
		TargetPersonID:    target,
		ConfirmRequest:    *req,
	})
	if err != nil {
		var already *models.AlreadyConfirmedError
		if errors.As(err, &already) {
			writeAlreadyConfirmed(w, already)
			return
		}
		h.logger.WarnContext(ctx, "deceased confirmation rejected",
			"request_id", requestID,
			"target_person_id", target.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requester := requestcontext.PersonID(ctx)
	if requester.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	target, err := id.ParsePersonID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.svc.Get(ctx, requestcontext.Email(ctx), requester, target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(c))
}

func writeAlreadyConfirmed(w http.ResponseWriter, err *models.AlreadyConfirmedError) {
	resp := AlreadyConfirmedResponse{
		ErrorResponse: httputil.ErrorResponse{
			Error:            string(dErrors.CodeAlreadyConfirmed),
			ErrorDescription: dErrors.MessageOf(err),
		},
	}
	if err.Effective != nil {
		resp.ConfirmedBy = err.Effective.ConfirmedByPersonID.String()
		at := err.Effective.ConfirmedAt
		resp.ConfirmedAt = &at
	}
	httputil.WriteJSON(w, http.StatusConflict, resp)
}
