package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// New builds the API server. The write deadline is the per-request timeout
// plus headroom so the timeout middleware, not the connection, ends a slow
// submission and the client still receives a JSON error.
func New(addr string, handler http.Handler, requestTimeout time.Duration, logger *slog.Logger) *http.Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      requestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if logger != nil {
		srv.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
	}
	return srv
}
