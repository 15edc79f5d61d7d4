// Package service is the entity store: merge-based progressive saves over a
// store.Backend, with transparent retry of transient storage failures.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"entrypass/internal/profile/metrics"
	"entrypass/internal/profile/models"
	"entrypass/internal/profile/store"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	audit "entrypass/pkg/platform/audit"
	"entrypass/pkg/platform/sentinel"
	"entrypass/pkg/requestcontext"
)

// AuditPublisher records compliance events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	defaultAttempts = 3
	defaultBackoff  = 50 * time.Millisecond
)

// Service persists profile entities for a user.
type Service struct {
	backend  store.Backend
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
	now      func() time.Time
	locks    *keyLocks
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithRetry sets the storage attempts (including the first) and the initial
// backoff between them.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(backend store.Backend, opts ...Option) *Service {
	s := &Service{
		backend:  backend,
		logger:   slog.Default(),
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		now:      time.Now,
		locks:    newKeyLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns every entity of the user, with the travel info of
// destinationID only. It returns nil, nil when the user has no records.
func (s *Service) Load(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (*models.Entities, error) {
	start := time.Now()
	defer s.metrics.ObserveLoad(start)

	q := store.Query{UserID: userID, Destination: destinationID}
	if destinationID == "" {
		q.Tables = []models.Kind{models.KindPassport, models.KindPersonalInfo, models.KindFundItem}
	}
	var recs []store.Record
	err := s.withRetry(ctx, OpRead, func(ctx context.Context) error {
		var err error
		recs, err = s.backend.Query(ctx, q)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load entities", "user_id", userID.String(), "error", err)
		return nil, err
	}

	entities := &models.Entities{UserID: userID, DestinationID: destinationID}
	for _, rec := range recs {
		e, err := store.Decode(rec)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode stored entity")
		}
		entities.Add(e)
	}
	if entities.IsEmpty() {
		return nil, nil
	}
	return entities, nil
}

// Save merges patch into its target record and writes it. Only present,
// non-empty fields of patch are applied. A patch that changes nothing on an
// existing record is not written. Saves of the same record family run one
// at a time so each merges onto the other's result.
func (s *Service) Save(ctx context.Context, userID id.UserID, patch models.Entity) (models.Entity, error) {
	start := time.Now()
	defer s.metrics.ObserveSave(start)
	kind := string(patch.Kind())

	unlock := s.locks.lock(saveKeyOf(userID, patch.Kind(), patch.Destination()))
	defer unlock()

	target, err := s.resolveTarget(ctx, userID, patch)
	if err != nil {
		s.metrics.IncrementSave(kind, "failed")
		return nil, err
	}

	now := s.now()
	isNew := target == nil
	if isNew {
		target, err = s.newTarget(userID, patch, now)
		if err != nil {
			return nil, err
		}
	}

	changed := models.Merge(target, patch)
	if !isNew && len(changed) == 0 {
		s.metrics.IncrementSave(kind, "unchanged")
		return target, nil
	}
	if err := target.Check(); err != nil {
		s.metrics.IncrementSave(kind, "failed")
		return nil, err
	}
	target.Base().UpdatedAt = now

	rec, err := store.Encode(target)
	if err != nil {
		s.metrics.IncrementSave(kind, "failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode entity")
	}
	err = s.withRetry(ctx, OpWrite, func(ctx context.Context) error {
		return s.backend.Upsert(ctx, rec)
	})
	if errors.Is(err, sentinel.ErrConflict) {
		s.metrics.IncrementSave(kind, "failed")
		return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
	}
	if err != nil {
		s.metrics.IncrementSave(kind, "failed")
		s.logger.ErrorContext(ctx, "failed to save entity",
			"user_id", userID.String(),
			"kind", kind,
			"error", err,
		)
		return nil, err
	}

	s.metrics.IncrementSave(kind, "written")
	s.logger.DebugContext(ctx, "entity saved",
		"user_id", userID.String(),
		"kind", kind,
		"fields", len(changed),
	)
	return target, nil
}

// Delete removes an entity the user owns.
func (s *Service) Delete(ctx context.Context, userID id.UserID, kind models.Kind, entityID id.EntityID) error {
	rec, err := s.get(ctx, kind, entityID)
	if err != nil {
		return err
	}
	if rec.UserID != userID {
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	}
	unlock := s.locks.lock(saveKeyOf(userID, kind, rec.Destination))
	defer unlock()
	err = s.withRetry(ctx, OpWrite, func(ctx context.Context) error {
		return s.backend.Delete(ctx, kind, entityID)
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	}
	if err != nil {
		return err
	}

	s.metrics.IncrementDeleted(string(kind))
	s.emit(ctx, audit.Event{
		UserID:      userID,
		Destination: rec.Destination,
		Subject:     entityID.String(),
		Action:      string(audit.EventEntityDeleted),
		Reason:      string(kind),
	})
	return nil
}

// TargetID returns the ID of the stored record Save would merge patch into,
// or a nil ID when Save would create a new record.
func (s *Service) TargetID(ctx context.Context, userID id.UserID, patch models.Entity) (id.EntityID, error) {
	if entityID := patch.Base().ID; !entityID.IsNil() {
		return entityID, nil
	}
	target, err := s.resolveTarget(ctx, userID, patch)
	if err != nil || target == nil {
		return id.EntityID{}, err
	}
	return target.Base().ID, nil
}

// resolveTarget finds the stored record patch applies to, or nil when a new
// record must be created.
func (s *Service) resolveTarget(ctx context.Context, userID id.UserID, patch models.Entity) (models.Entity, error) {
	if entityID := patch.Base().ID; !entityID.IsNil() {
		rec, err := s.get(ctx, patch.Kind(), entityID)
		switch {
		case err == nil:
			if rec.UserID != userID {
				return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
			}
			e, err := store.Decode(*rec)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode stored entity")
			}
			return e, nil
		case !dErrors.HasCode(err, dErrors.CodeNotFound):
			return nil, err
		}
		// An unknown ID creates a record under that ID, except for travel info
		// which stays unique per destination.
		if patch.Kind() != models.KindTravelInfo {
			return nil, nil
		}
	}

	if patch.Kind() == models.KindFundItem {
		return nil, nil
	}
	if err := requireDestination(patch); err != nil {
		return nil, err
	}
	existing, err := s.Load(ctx, userID, patch.Destination())
	if err != nil || existing == nil {
		return nil, err
	}

	switch p := patch.(type) {
	case *models.Passport:
		if current := existing.CurrentPassport(); current != nil {
			return current, nil
		}
	case *models.PersonalInfo:
		passport := existing.CurrentPassport()
		if p.PassportID != nil {
			if linked, ok := existing.FindByID(models.KindPassport, *p.PassportID).(*models.Passport); ok {
				passport = linked
			}
		}
		if info := existing.EffectivePersonalInfo(passport); info != nil {
			return info, nil
		}
	case *models.TravelInfo:
		if existing.TravelInfo != nil {
			return existing.TravelInfo, nil
		}
	}
	return nil, nil
}

func requireDestination(patch models.Entity) error {
	if patch.Kind() == models.KindTravelInfo && patch.Destination() == "" {
		return dErrors.New(dErrors.CodeValidation, "travel info requires a destination")
	}
	return nil
}

// newTarget creates an empty record carrying the identity of patch.
func (s *Service) newTarget(userID id.UserID, patch models.Entity, now time.Time) (models.Entity, error) {
	target, err := models.New(patch.Kind())
	if err != nil {
		return nil, err
	}
	base := target.Base()
	base.ID = patch.Base().ID
	if base.ID.IsNil() {
		base.ID = id.NewEntityID()
	}
	base.UserID = userID
	base.CreatedAt = now
	if t, ok := target.(*models.TravelInfo); ok {
		t.DestinationID = patch.Destination()
	}
	return target, nil
}

func (s *Service) get(ctx context.Context, kind models.Kind, entityID id.EntityID) (*store.Record, error) {
	var rec *store.Record
	err := s.withRetry(ctx, OpRead, func(ctx context.Context) error {
		var err error
		rec, err = s.backend.Get(ctx, kind, entityID)
		return err
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
