// Package service is the submission facade: it validates a destination's
// entities, drives the remote pipeline under a per-(user, destination) lock,
// and records accepted entries as snapshots.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"entrypass/internal/completion"
	"entrypass/internal/destination"
	"entrypass/internal/profile/models"
	"entrypass/internal/submission/client"
	"entrypass/internal/submission/lock"
	"entrypass/internal/submission/metrics"
	"entrypass/internal/submission/payload"
	"entrypass/internal/submission/session"
	"entrypass/internal/submission/snapshot"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/audit"
	"entrypass/pkg/platform/circuit"
	platformstrings "entrypass/pkg/platform/strings"
	"entrypass/pkg/requestcontext"
)

// ProfileLoader reads the entities a submission is built from.
type ProfileLoader interface {
	Load(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (*models.Entities, error)
}

// Flusher forces pending debounced edits to storage.
type Flusher interface {
	Flush(ctx context.Context, userID id.UserID) error
}

// Destinations looks up destination configs.
type Destinations interface {
	Get(destinationID id.DestinationID) (*destination.Destination, error)
}

// Remote is one destination's arrival-card API.
type Remote interface {
	session.Source
	client.Submitter
}

// RemoteFactory scopes the remote API to a destination.
type RemoteFactory func(destinationID id.DestinationID) Remote

// SnapshotStore records accepted submissions.
type SnapshotStore interface {
	Write(ctx context.Context, userID id.UserID, destinationID id.DestinationID, result *client.Result) (*snapshot.EntrySnapshot, error)
	List(ctx context.Context, userID id.UserID, destinationID id.DestinationID) ([]*snapshot.EntrySnapshot, error)
}

// AuditPublisher records compliance events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Report is the outcome of a dry-run validation.
type Report struct {
	Ready      bool                     `json:"ready"`
	Errors     payload.ValidationErrors `json:"errors,omitempty"`
	Completion completion.Completion    `json:"completion"`
}

type Service struct {
	profiles     ProfileLoader
	flusher      Flusher
	destinations Destinations
	remotes      RemoteFactory
	snapshots    SnapshotStore
	locker       lock.Locker
	lockTTL      time.Duration
	auditor      AuditPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
	now          func() time.Time

	clientOpts   []client.Option
	breakerOpts  []circuit.Option
	resolverOpts []session.Option

	mu      sync.Mutex
	clients map[id.DestinationID]*client.Client
}

type Option func(*Service)

// WithFlusher makes Submit and Validate save pending edits first.
func WithFlusher(f Flusher) Option {
	return func(s *Service) {
		s.flusher = f
	}
}

func WithLocker(l lock.Locker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithClientOptions configures the per-destination submission clients.
func WithClientOptions(opts ...client.Option) Option {
	return func(s *Service) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// WithBreakerOptions configures the per-destination circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(s *Service) {
		s.breakerOpts = append(s.breakerOpts, opts...)
	}
}

func WithResolverOptions(opts ...session.Option) Option {
	return func(s *Service) {
		s.resolverOpts = append(s.resolverOpts, opts...)
	}
}

func New(profiles ProfileLoader, destinations Destinations, remotes RemoteFactory, snapshots SnapshotStore, opts ...Option) *Service {
	s := &Service{
		profiles:     profiles,
		destinations: destinations,
		remotes:      remotes,
		snapshots:    snapshots,
		locker:       lock.NewInMemoryLocker(),
		lockTTL:      2 * time.Minute,
		logger:       slog.Default(),
		tracer:       otel.Tracer("entrypass/submission"),
		now:          time.Now,
		clients:      make(map[id.DestinationID]*client.Client),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates, sends, and snapshots the user's entry for destinationID.
// Stored profile data is never modified, whatever the outcome.
func (s *Service) Submit(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (_ *snapshot.EntrySnapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "submission.Submit", trace.WithAttributes(
		attribute.String("destination", string(destinationID)),
	))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
	}()

	dest, err := s.destinations.Get(destinationID)
	if err != nil {
		return nil, err
	}
	release, err := s.acquire(ctx, userID, destinationID)
	if err != nil {
		return nil, err
	}
	defer release()

	entities, err := s.load(ctx, userID, destinationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if errs := payload.Validate(entities, dest, now); errs != nil {
		s.metrics.IncrementValidationBlocked(string(destinationID))
		s.emit(ctx, audit.Event{
			UserID:      userID,
			Destination: destinationID,
			Action:      string(audit.EventValidationBlocked),
			Reason:      fmt.Sprintf("fields=%d", len(errs)),
		})
		return nil, dErrors.Wrap(errs, dErrors.CodeValidation, "entry is not ready to submit")
	}

	remote := s.remotes(destinationID)
	result, err := s.client(destinationID, remote).Submit(ctx, s.prepare(dest, remote, entities, now))
	if err != nil {
		s.emit(ctx, audit.Event{
			UserID:      userID,
			Destination: destinationID,
			Action:      string(audit.EventSubmissionFailed),
			Reason:      failureReason(err),
		})
		return nil, mapError(err)
	}
	span.SetAttributes(attribute.Int("attempts", result.Attempts))

	snap, err := s.snapshots.Write(ctx, userID, destinationID, result)
	if err != nil {
		s.logger.ErrorContext(ctx, "accepted entry could not be recorded",
			"user_id", userID.String(),
			"destination", destinationID,
			"error", err,
		)
		return nil, err
	}
	s.logger.InfoContext(ctx, "entry submitted",
		"user_id", userID.String(),
		"destination", destinationID,
		"attempts", result.Attempts,
	)
	return snap, nil
}

// prepare returns the per-attempt step: a fresh resolver context and a payload
// built with it. Each call retires the previous context.
func (s *Service) prepare(dest *destination.Destination, remote Remote, entities *models.Entities, now time.Time) client.PrepareFunc {
	resolver := session.NewResolver(remote, dest, append([]session.Option{session.WithLogger(s.logger)}, s.resolverOpts...)...)
	sensitive := sensitiveValues(entities)
	var current *session.Context

	return func(ctx context.Context) (*client.Prepared, error) {
		ctx, span := s.tracer.Start(ctx, "submission.prepare")
		defer span.End()

		if current != nil {
			current.Invalidate()
		}
		sc, err := resolver.Initialize(ctx)
		if err != nil {
			s.metrics.IncrementSession(string(dest.ID), "failed")
			return nil, err
		}
		s.metrics.IncrementSession(string(dest.ID), "opened")
		current = sc

		p, err := payload.Build(entities, sc, dest, now)
		if err != nil {
			return nil, err
		}
		body, err := p.Body()
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return &client.Prepared{Token: sc.Token(), Body: body, Sensitive: sensitive}, nil
	}
}

// Validate runs the submission rules without contacting the remote.
func (s *Service) Validate(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "submission.Validate", trace.WithAttributes(
		attribute.String("destination", string(destinationID)),
	))
	defer span.End()

	dest, err := s.destinations.Get(destinationID)
	if err != nil {
		return nil, err
	}
	release, err := s.acquire(ctx, userID, destinationID)
	if err != nil {
		return nil, err
	}
	defer release()

	entities, err := s.load(ctx, userID, destinationID)
	if err != nil {
		return nil, err
	}
	errs := payload.Validate(entities, dest, s.now())
	return &Report{
		Ready:      len(errs) == 0,
		Errors:     errs,
		Completion: completion.Compute(entities, dest),
	}, nil
}

// Completion reports progress for destinationID from freshly loaded entities.
func (s *Service) Completion(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (completion.Completion, error) {
	dest, err := s.destinations.Get(destinationID)
	if err != nil {
		return completion.Completion{}, err
	}
	entities, err := s.load(ctx, userID, destinationID)
	if err != nil {
		return completion.Completion{}, err
	}
	return completion.Compute(entities, dest), nil
}

// Snapshots lists every recorded entry for destinationID, newest first.
func (s *Service) Snapshots(ctx context.Context, userID id.UserID, destinationID id.DestinationID) ([]*snapshot.EntrySnapshot, error) {
	if _, err := s.destinations.Get(destinationID); err != nil {
		return nil, err
	}
	return s.snapshots.List(ctx, userID, destinationID)
}

func (s *Service) acquire(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (func(), error) {
	release, err := s.locker.Acquire(ctx, userID.String()+":"+string(destinationID), s.lockTTL)
	if errors.Is(err, lock.ErrHeld) {
		return nil, dErrors.New(dErrors.CodeConflict, "a submission for this destination is already in progress")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "submission lock unavailable")
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release submission lock", "destination", destinationID, "error", err)
		}
	}, nil
}

func (s *Service) load(ctx context.Context, userID id.UserID, destinationID id.DestinationID) (*models.Entities, error) {
	if s.flusher != nil {
		if err := s.flusher.Flush(ctx, userID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "pending edits could not be saved")
		}
	}
	entities, err := s.profiles.Load(ctx, userID, destinationID)
	if err != nil {
		return nil, err
	}
	if entities == nil {
		entities = &models.Entities{UserID: userID, DestinationID: destinationID}
	}
	return entities, nil
}

// client returns the destination's submission client, sharing its breaker
// across users.
func (s *Service) client(destinationID id.DestinationID, remote Remote) *client.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[destinationID]; ok {
		return c
	}
	breaker := circuit.New("remote-"+string(destinationID), s.breakerOpts...)
	opts := append([]client.Option{
		client.WithBreaker(breaker),
		client.WithLogger(s.logger),
		client.WithMetrics(s.metrics),
	}, s.clientOpts...)
	c := client.New(string(destinationID), remote, opts...)
	s.clients[destinationID] = c
	return c
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Timestamp = s.now()
	event.RequestID = requestcontext.RequestID(ctx)
	event.Device = requestcontext.Device(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}

// sensitiveValues lists the profile values remote messages must never echo.
func sensitiveValues(entities *models.Entities) []string {
	var out []string
	if p := entities.CurrentPassport(); p != nil {
		out = append(out, p.PassportNumber)
		out = append(out, nameParts(p.FullName)...)
		if personal := entities.EffectivePersonalInfo(p); personal != nil {
			out = append(out, personal.Email, personal.PhoneNumber)
		}
	}
	return platformstrings.DedupeFold(out)
}

// nameParts splits a full name in any accepted form into the words a remote
// message could echo, without the comma or slash separators.
func nameParts(full string) []string {
	name := payload.ParseName(full)
	var out []string
	for _, part := range []string{name.Family, name.Given, name.Middle} {
		out = append(out, strings.Fields(part)...)
	}
	return out
}

func failureReason(err error) string {
	var unknown *session.UnknownOptionError
	switch {
	case client.GetCategory(err) != "":
		return "category=" + string(client.GetCategory(err))
	case errors.As(err, &unknown):
		return "unknown_option=" + unknown.Category
	default:
		return "prepare_failed"
	}
}

// mapError translates pipeline failures onto domain codes. Messages are
// client safe; remote text is already sanitized.
func mapError(err error) error {
	var (
		verrs   payload.ValidationErrors
		unknown *session.UnknownOptionError
		se      *client.SubmissionError
	)
	switch {
	case errors.As(err, &verrs):
		return dErrors.Wrap(err, dErrors.CodeValidation, "entry is not ready to submit")
	case errors.As(err, &unknown):
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, "a selected value is not offered by the destination: "+unknown.Category)
	case errors.As(err, &se):
		switch se.Category {
		case client.CategoryValidation, client.CategoryFatal:
			return dErrors.Wrap(err, dErrors.CodeUnprocessable, "the destination rejected the entry")
		case client.CategoryCanceled:
			return dErrors.Wrap(err, dErrors.CodeTimeout, "submission canceled")
		case client.CategoryCircuitOpen:
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "the destination service is temporarily unavailable")
		default:
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "the destination service did not accept the entry, try again")
		}
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "submission failed")
}
