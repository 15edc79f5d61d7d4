package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"entrypass/internal/completion"
	"entrypass/internal/submission/service"
	"entrypass/internal/submission/snapshot"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/httputil"
	"entrypass/pkg/requestcontext"
)

// Service is the submission facade.
type Service interface {
	Submit(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (*snapshot.EntrySnapshot, error)
	Validate(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (*service.Report, error)
	Completion(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (completion.Completion, error)
	Snapshots(ctx context.Context, userID id.UserID, destinationID id.DestinationID) ([]*snapshot.EntrySnapshot, error)
}

// Handler wires the per-destination submission endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the endpoints on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/destinations/{destination}", func(r chi.Router) {
		r.Get("/completion", h.HandleCompletion)
		r.Get("/validation", h.HandleValidation)
		r.Post("/submissions", h.HandleSubmit)
		r.Get("/snapshots", h.HandleSnapshots)
	})
}

// HandleCompletion handles GET /v1/destinations/{destination}/completion.
func (h *Handler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	userID, destinationID, ok := h.params(w, r)
	if !ok {
		return
	}
	c, err := h.service.Completion(r.Context(), userID, destinationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleValidation handles GET /v1/destinations/{destination}/validation.
// A report with errors is still a 200; only the submission itself is blocked.
func (h *Handler) HandleValidation(w http.ResponseWriter, r *http.Request) {
	userID, destinationID, ok := h.params(w, r)
	if !ok {
		return
	}
	report, err := h.service.Validate(r.Context(), userID, destinationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleSubmit handles POST /v1/destinations/{destination}/submissions.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, destinationID, ok := h.params(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Submit(ctx, userID, destinationID)
	if err != nil {
		level := slog.LevelWarn
		if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "submission failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"destination", string(destinationID),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSnapshotResponse(snap))
}

// HandleSnapshots handles GET /v1/destinations/{destination}/snapshots.
func (h *Handler) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	userID, destinationID, ok := h.params(w, r)
	if !ok {
		return
	}
	snaps, err := h.service.Snapshots(r.Context(), userID, destinationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := &SnapshotsResponse{Snapshots: make([]*SnapshotResponse, 0, len(snaps))}
	for _, snap := range snaps {
		resp.Snapshots = append(resp.Snapshots, toSnapshotResponse(snap))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (id.UserID, id.DestinationID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, "", false
	}
	destinationID, err := id.ParseDestinationID(chi.URLParam(r, "destination"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.UserID{}, "", false
	}
	return userID, destinationID, true
}
