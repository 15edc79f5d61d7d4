// Package handler exposes the profile entity store over HTTP: load, debounced
// or immediate merge-save, flush, and delete.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"entrypass/internal/destination"
	"entrypass/internal/profile/debounce"
	"entrypass/internal/profile/models"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/httputil"
	"entrypass/pkg/requestcontext"
)

// Service is the entity store.
type Service interface {
	Load(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (*models.Entities, error)
	Save(ctx context.Context, userID id.UserID, patch models.Entity) (models.Entity, error)
	Delete(ctx context.Context, userID id.UserID, kind models.Kind, entityID id.EntityID) error
}

// Scheduler coalesces edits before they reach the store.
type Scheduler interface {
	Schedule(ctx context.Context, userID id.UserID, patch models.Entity) (debounce.Key, error)
	Flush(ctx context.Context, userID id.UserID) error
	Pending(userID id.UserID) int
}

// Destinations looks up destination configs.
type Destinations interface {
	Get(destinationID id.DestinationID) (*destination.Destination, error)
}

// PhotoOwnership reports whether a photo handle was issued to the user.
type PhotoOwnership interface {
	Owns(userID id.UserID, uri string) bool
}

type Handler struct {
	service      Service
	scheduler    Scheduler
	destinations Destinations
	photos       PhotoOwnership
	logger       *slog.Logger
}

// New constructs the profile handler. photos may be nil when uploads are
// disabled; photo handles are then accepted as given.
func New(service Service, scheduler Scheduler, destinations Destinations, photos PhotoOwnership, logger *slog.Logger) *Handler {
	return &Handler{
		service:      service,
		scheduler:    scheduler,
		destinations: destinations,
		photos:       photos,
		logger:       logger,
	}
}

// Register mounts the profile endpoints on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/destinations/{destination}/entities", h.HandleLoad)
	r.Patch("/v1/entities/{kind}", h.HandlePatch)
	r.Post("/v1/entities/flush", h.HandleFlush)
	r.Delete("/v1/entities/{kind}/{id}", h.HandleDelete)
}

// HandleLoad handles GET /v1/destinations/{destination}/entities. Pending
// edits are flushed first so the response reflects them.
func (h *Handler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	destinationID, err := h.destination(chi.URLParam(r, "destination"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.scheduler.Flush(ctx, userID); err != nil {
		h.logger.ErrorContext(ctx, "flush before load failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "pending edits could not be saved"))
		return
	}
	entities, err := h.service.Load(ctx, userID, destinationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEntitiesResponse(userID, destinationID, entities))
}

// HandlePatch handles PATCH /v1/entities/{kind}. The body is a partial
// entity; only non-empty fields are merged. With immediate=true the patch is
// written before the response, otherwise it is debounced.
func (h *Handler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	patch, err := models.New(kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := httputil.DecodeJSON(r, patch); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.scope(patch, r.URL.Query().Get("destination")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.checkPhotos(userID, patch); err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Each new fund item gets its own identity so two quick additions are
	// not coalesced into one.
	if kind == models.KindFundItem && patch.Base().ID.IsNil() {
		patch.Base().ID = id.NewEntityID()
	}

	if r.URL.Query().Get("immediate") != "true" {
		key, err := h.scheduler.Schedule(ctx, userID, patch)
		if errors.Is(err, debounce.ErrClosed) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "edits are not accepted while shutting down"))
			return
		}
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entityID := entityIDOf(patch)
		if !key.EntityID.IsNil() {
			entityID = key.EntityID.String()
		}
		httputil.WriteJSON(w, http.StatusAccepted, &ScheduledResponse{
			Status:   "scheduled",
			EntityID: entityID,
			Pending:  h.scheduler.Pending(userID),
		})
		return
	}

	if err := h.scheduler.Flush(ctx, userID); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "pending edits could not be saved"))
		return
	}
	saved, err := h.service.Save(ctx, userID, patch)
	if err != nil {
		h.logger.WarnContext(ctx, "immediate save failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"kind", string(kind),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, saved)
}

// HandleFlush handles POST /v1/entities/flush.
func (h *Handler) HandleFlush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.scheduler.Flush(ctx, userID); err != nil {
		h.logger.ErrorContext(ctx, "flush failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "pending edits could not be saved"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /v1/entities/{kind}/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entityID, err := id.ParseEntityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// A pending edit of the same record would otherwise resurrect it.
	if err := h.scheduler.Flush(ctx, userID); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "pending edits could not be saved"))
		return
	}
	if err := h.service.Delete(ctx, userID, kind, entityID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) destination(raw string) (id.DestinationID, error) {
	destinationID, err := id.ParseDestinationID(raw)
	if err != nil {
		return "", err
	}
	if _, err := h.destinations.Get(destinationID); err != nil {
		return "", err
	}
	return destinationID, nil
}

// scope applies the destination query parameter to destination-bound kinds
// that do not name one in the body.
func (h *Handler) scope(patch models.Entity, raw string) error {
	if raw == "" {
		return nil
	}
	destinationID, err := h.destination(raw)
	if err != nil {
		return err
	}
	switch p := patch.(type) {
	case *models.TravelInfo:
		if p.DestinationID == "" {
			p.DestinationID = destinationID
		}
	case *models.PersonalInfo:
		if p.DestinationID == "" {
			p.DestinationID = destinationID
		}
	}
	return nil
}

func (h *Handler) checkPhotos(userID id.UserID, patch models.Entity) error {
	if h.photos == nil {
		return nil
	}
	var uri string
	switch p := patch.(type) {
	case *models.FundItem:
		uri = p.PhotoURI
	case *models.TravelInfo:
		uri = p.BookingPhotoURI
	}
	if uri != "" && !h.photos.Owns(userID, uri) {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown photo handle")
	}
	return nil
}
