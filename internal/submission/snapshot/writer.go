package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"entrypass/internal/submission/client"
	"entrypass/internal/submission/metrics"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/audit"
	"entrypass/pkg/platform/sentinel"
	"entrypass/pkg/requestcontext"
)

// AuditPublisher records compliance events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Writer turns accepted submissions into snapshots.
type Writer struct {
	store   Store
	auditor AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Writer)

func WithAuditPublisher(p AuditPublisher) Option {
	return func(w *Writer) {
		w.auditor = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

func NewWriter(store Store, opts ...Option) *Writer {
	w := &Writer{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write stores result as the active snapshot for (userID, destination),
// superseding the previous one in the same transaction.
func (w *Writer) Write(ctx context.Context, userID id.UserID, destination id.DestinationID, result *client.Result) (*EntrySnapshot, error) {
	if result == nil || result.ConfirmationID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "snapshot requires a confirmation")
	}
	submittedAt := result.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = w.now()
	}
	snap := &EntrySnapshot{
		ID:             id.NewSnapshotID(),
		UserID:         userID,
		Destination:    destination,
		Status:         StatusActive,
		Payload:        append([]byte(nil), result.Payload...),
		ConfirmationID: result.ConfirmationID,
		ArtifactRef:    result.ArtifactRef,
		QRCodeRef:      result.QRCodeRef,
		Attempts:       result.Attempts,
		Device:         requestcontext.Device(ctx),
		SubmittedAt:    submittedAt.UTC(),
	}

	prior, err := w.store.Replace(ctx, snap)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write entry snapshot")
	}
	w.metrics.IncrementSnapshot(string(destination))
	w.logger.InfoContext(ctx, "entry snapshot written",
		"user_id", userID.String(),
		"destination", destination,
		"snapshot_id", snap.ID.String(),
	)

	if prior != nil {
		w.emit(ctx, audit.Event{
			UserID:      userID,
			Destination: destination,
			Subject:     prior.ID.String(),
			Action:      string(audit.EventEntrySuperseded),
			Reason:      fmt.Sprintf("superseded_by=%s", snap.ID),
		})
	}
	w.emit(ctx, audit.Event{
		UserID:      userID,
		Destination: destination,
		Subject:     snap.ID.String(),
		Action:      string(audit.EventEntrySubmitted),
	})
	return snap, nil
}

// List returns every snapshot for (userID, destination), newest first.
func (w *Writer) List(ctx context.Context, userID id.UserID, destination id.DestinationID) ([]*EntrySnapshot, error) {
	snaps, err := w.store.List(ctx, userID, destination)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list entry snapshots")
	}
	return snaps, nil
}

// Active returns the current snapshot, or sentinel.ErrNotFound.
func (w *Writer) Active(ctx context.Context, userID id.UserID, destination id.DestinationID) (*EntrySnapshot, error) {
	snaps, err := w.store.List(ctx, userID, destination, StatusActive)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entry snapshot")
	}
	if len(snaps) == 0 {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "no entry submitted")
	}
	return snaps[0], nil
}

func (w *Writer) emit(ctx context.Context, event audit.Event) {
	if w.auditor == nil {
		return
	}
	event.Timestamp = w.now()
	event.RequestID = requestcontext.RequestID(ctx)
	event.Device = requestcontext.Device(ctx)
	if err := w.auditor.Emit(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
