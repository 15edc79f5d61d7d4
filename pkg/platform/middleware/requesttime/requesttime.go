// Package requesttime gives every operation within one HTTP request the same
// "now", so validation, snapshots, and audit events agree on the timestamp.
package requesttime

import (
	"net/http"
	"time"

	"entrypass/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
