// Package httpapi composes the service routers behind the shared middleware
// stack. Handlers stay thin and delegate to domain services.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"heirloom/pkg/platform/httputil"
	adminmw "heirloom/pkg/platform/middleware/admin"
	authmw "heirloom/pkg/platform/middleware/auth"
	"heirloom/pkg/platform/middleware/metadata"
	request "heirloom/pkg/platform/middleware/request"
	"heirloom/pkg/platform/middleware/requesttime"
)

// Routes is implemented by handlers serving authenticated callers.
type Routes interface {
	Register(r chi.Router)
}

// AdminRoutes is implemented by handlers serving operators.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	AdminToken     string
	RequestTimeout time.Duration
	CORSOrigins    []string
	Validator      authmw.JWTValidator
	Observer       request.RequestObserver
	MetricsHandler http.Handler
	HealthChecks   map[string]HealthCheck
}

// Handlers groups the routers mounted on the API. Identity registration is
// operator-only; everything else under User requires a bearer token.
type Handlers struct {
	Identity Routes
	User     []Routes
	Admin    []AdminRoutes
}

func NewRouter(opts Options, h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	r.Use(request.Logger(logger))
	r.Use(request.Latency(opts.Observer))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", adminmw.HeaderAdminToken},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", healthz(opts.HealthChecks, logger))
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(request.Timeout(opts.RequestTimeout))
		}
		r.Use(request.ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(opts.AdminToken, logger))
			if h.Identity != nil {
				h.Identity.Register(r)
			}
			for _, routes := range h.Admin {
				routes.RegisterAdmin(r)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(opts.Validator, logger))
			for _, routes := range h.User {
				routes.Register(r)
			}
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
