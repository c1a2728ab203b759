package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/release/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/platform/httputil"
	request "heirloom/pkg/platform/middleware/request"
	"heirloom/pkg/requestcontext"
)

type Service interface {
	OnConfirmed(ctx context.Context, target id.PersonID) (models.Result, error)
	MarkViewed(ctx context.Context, shareID id.ShareID, recipient string) (*models.Share, error)
	ListForRecipient(ctx context.Context, recipient string) ([]*models.Share, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type ShareResponse struct {
	ID            string     `json:"id"`
	ContentID     string     `json:"content_id"`
	OwnerPersonID string     `json:"owner_person_id"`
	ReleasedAt    time.Time  `json:"released_at"`
	ViewedAt      *time.Time `json:"viewed_at,omitempty"`
}

type ListResponse struct {
	Releases []ShareResponse `json:"releases"`
}

type FailureResponse struct {
	ContentID string `json:"content_id"`
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// RetryResponse carries the run summary; on partial failure it also carries
// the error code and the pairs still missing.
type RetryResponse struct {
	httputil.ErrorResponse
	Result   models.Result     `json:"result"`
	Failures []FailureResponse `json:"failures,omitempty"`
}

func toShareResponse(s *models.Share) ShareResponse {
	return ShareResponse{
		ID:            s.ID.String(),
		ContentID:     s.ContentID.String(),
		OwnerPersonID: s.OwnerPersonID.String(),
		ReleasedAt:    s.ReleasedAt,
		ViewedAt:      s.ViewedAt,
	}
}

// Register mounts the recipient-facing routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/releases", h.HandleList)
	r.Post("/releases/{id}/viewed", h.HandleMarkViewed)
}

// RegisterAdmin mounts operator routes; the caller guards them.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/releases/{personId}/retry", h.HandleRetry)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recipient := requestcontext.Email(ctx)
	if recipient == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	shares, err := h.svc.ListForRecipient(ctx, recipient)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{Releases: make([]ShareResponse, 0, len(shares))}
	for _, s := range shares {
		resp.Releases = append(resp.Releases, toShareResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleMarkViewed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recipient := requestcontext.Email(ctx)
	if recipient == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	shareID, err := id.ParseShareID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	share, err := h.svc.MarkViewed(ctx, shareID, recipient)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toShareResponse(share))
}

func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	target, err := id.ParsePersonID(chi.URLParam(r, "personId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.svc.OnConfirmed(ctx, target)
	if err == nil {
		httputil.WriteJSON(w, http.StatusOK, RetryResponse{Result: result})
		return
	}

	h.logger.WarnContext(ctx, "release retry incomplete",
		"request_id", requestID,
		"target_person_id", target.String(),
		"error", err,
	)
	var partial *models.PartialFailureError
	if !errors.As(err, &partial) {
		httputil.WriteError(w, err)
		return
	}
	resp := RetryResponse{
		ErrorResponse: httputil.ErrorResponse{
			Error:            string(dErrors.CodePartialFailure),
			ErrorDescription: dErrors.MessageOf(err),
		},
		Result: result,
	}
	for _, f := range partial.Failures {
		resp.Failures = append(resp.Failures, FailureResponse{
			ContentID: f.ContentID.String(),
			Recipient: f.Recipient,
			Error:     f.Err.Error(),
		})
	}
	httputil.WriteJSON(w, httputil.StatusFor(dErrors.CodePartialFailure), resp)
}
