package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"entrypass/internal/destination"
	"entrypass/internal/photos"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/httputil"
	"entrypass/pkg/requestcontext"
)

// DestinationLister lists configured destinations.
type DestinationLister interface {
	List() []*destination.Destination
}

// PhotoUploader presigns photo uploads.
type PhotoUploader interface {
	UploadURL(ctx context.Context, userID id.UserID, kind photos.Kind, contentType string) (*photos.Upload, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler serves the endpoints that belong to no single bounded context.
type Handler struct {
	destinations DestinationLister
	photos       PhotoUploader
	checks       map[string]HealthCheck
	logger       *slog.Logger
}

// NewHandler builds the shared handler. photos may be nil when uploads are
// not configured.
func NewHandler(destinations DestinationLister, photos PhotoUploader, checks map[string]HealthCheck, logger *slog.Logger) *Handler {
	return &Handler{
		destinations: destinations,
		photos:       photos,
		checks:       checks,
		logger:       logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/destinations", h.HandleListDestinations)
	r.Post("/v1/photos/upload-url", h.HandleUploadURL)
}

// HandleHealth runs every dependency check concurrently.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(h.checks))
	failed := make(map[string]error, len(h.checks))
	type outcome struct {
		name string
		err  error
	}
	outcomes := make(chan outcome, len(h.checks))

	var g errgroup.Group
	for name, check := range h.checks {
		g.Go(func() error {
			outcomes <- outcome{name: name, err: check(r.Context())}
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)

	for o := range outcomes {
		if o.err != nil {
			results[o.name] = "unavailable"
			failed[o.name] = o.err
			continue
		}
		results[o.name] = "ok"
	}

	status := http.StatusOK
	overall := "ok"
	if len(failed) > 0 {
		status = http.StatusServiceUnavailable
		overall = "degraded"
		for name, err := range failed {
			h.logger.WarnContext(r.Context(), "health check failed", "check", name, "error", err)
		}
	}
	httputil.WriteJSON(w, status, &HealthResponse{Status: overall, Checks: results})
}

// HandleListDestinations handles GET /v1/destinations.
func (h *Handler) HandleListDestinations(w http.ResponseWriter, _ *http.Request) {
	list := h.destinations.List()
	resp := &DestinationsResponse{Destinations: make([]DestinationSummary, 0, len(list))}
	for _, d := range list {
		resp.Destinations = append(resp.Destinations, DestinationSummary{
			ID:       string(d.ID),
			Name:     d.Name,
			Country:  d.Country,
			Sections: d.Sections,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleUploadURL handles POST /v1/photos/upload-url.
func (h *Handler) HandleUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if h.photos == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "photo uploads are not configured"))
		return
	}
	var req UploadURLRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	upload, err := h.photos.UploadURL(ctx, userID, photos.Kind(req.Kind), req.ContentType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, upload)
}
