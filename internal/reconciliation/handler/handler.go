package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/reconciliation"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/httputil"
	request "heirloom/pkg/platform/middleware/request"
)

type Service interface {
	Run(ctx context.Context, scope reconciliation.Scope) (reconciliation.Summary, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type RunRequest struct {
	OwnerPersonID string `json:"owner_person_id,omitempty"`
}

func (r *RunRequest) Normalize() {
	r.OwnerPersonID = strings.TrimSpace(r.OwnerPersonID)
}

// RegisterAdmin mounts the operator route; the caller guards it.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/reconciliation", h.HandleRun)
}

func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	var scope reconciliation.Scope
	if req.OwnerPersonID != "" {
		owner, err := id.ParsePersonID(req.OwnerPersonID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		scope.OwnerPersonID = &owner
	}

	summary, err := h.svc.Run(ctx, scope)
	if err != nil {
		h.logger.ErrorContext(ctx, "reconciliation run failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
