package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/identity/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/httputil"
	request "heirloom/pkg/platform/middleware/request"
)

// Service defines the identity operations the handler exposes.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Person, error)
	Get(ctx context.Context, personID id.PersonID) (*models.Person, error)
}

// Handler serves person registration. Identities are normally provisioned by
// the account service, so these routes sit behind the admin guard.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type PersonResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	AccountStatus string    `json:"account_status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toResponse(p *models.Person) PersonResponse {
	return PersonResponse{
		ID:            p.ID.String(),
		Email:         p.Email,
		AccountStatus: string(p.AccountStatus),
		CreatedAt:     p.CreatedAt,
	}
}

// Register mounts the routes on r; callers apply the admin middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/persons", h.HandleRegister)
	r.Get("/persons/{id}", h.HandleGet)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.svc.Register(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to register person",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(p))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personID, err := id.ParsePersonID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.svc.Get(ctx, personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}
