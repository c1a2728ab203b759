// Package requesttime pins a single "now" per HTTP request so every timestamp
// written while serving it (confirmation, audit, release) agrees.
package requesttime

import (
	"net/http"
	"time"

	"heirloom/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
