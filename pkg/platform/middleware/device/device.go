// Package device derives a short, non-identifying device label ("Safari/iOS")
// from the User-Agent header. The label is stored on entry snapshots.
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"entrypass/pkg/requestcontext"
)

const unknown = "unknown"

// Label parses a User-Agent into "Browser/OS".
func Label(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return unknown
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	if browser == "" && os == "" {
		return unknown
	}
	if browser == "" {
		browser = unknown
	}
	if os == "" {
		os = unknown
	}
	return browser + "/" + os
}

// Middleware stores the device label in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithDevice(r.Context(), Label(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
