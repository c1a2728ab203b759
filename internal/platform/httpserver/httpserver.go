// Package httpserver builds the API listener from the server config.
package httpserver

import (
	"net/http"
	"time"

	"heirloom/internal/platform/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	idleTimeout       = 2 * time.Minute

	defaultWriteTimeout = time.Minute
	// writeSlack lets a handler whose context hit the request timeout still
	// write its error body.
	writeSlack = 5 * time.Second
)

// New returns a server whose write deadline outlasts cfg.RequestTimeout.
func New(cfg config.Server, handler http.Handler) *http.Server {
	write := defaultWriteTimeout
	if cfg.RequestTimeout > 0 {
		write = cfg.RequestTimeout + writeSlack
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      write,
		IdleTimeout:       idleTimeout,
	}
}
