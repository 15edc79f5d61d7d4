// Package debounce coalesces rapid profile edits into one write per key.
// Every edit reschedules the key's timer; Flush forces pending writes out.
package debounce

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"entrypass/internal/profile/metrics"
	"entrypass/internal/profile/models"
	id "entrypass/pkg/domain"
)

// DefaultDelay is the quiet period after the last edit before a write.
const DefaultDelay = 400 * time.Millisecond

// SaveFunc writes a merged patch. It is the entity store's Save.
type SaveFunc func(ctx context.Context, userID id.UserID, patch models.Entity) (models.Entity, error)

// ErrClosed is returned by Schedule once the saver has shut down.
var ErrClosed = errors.New("debounce: saver closed")

// TargetFunc names the stored record a patch without an ID would merge into,
// or returns a nil ID when the patch would create one.
type TargetFunc func(ctx context.Context, userID id.UserID, patch models.Entity) (id.EntityID, error)

// Key identifies one pending save.
type Key struct {
	UserID      id.UserID
	Kind        models.Kind
	Destination id.DestinationID
	EntityID    id.EntityID
}

// KeyOf derives the coalescing key for a patch. Travel info is unique per
// destination, so its key never carries an entity ID.
func KeyOf(userID id.UserID, patch models.Entity) Key {
	key := Key{
		UserID:      userID,
		Kind:        patch.Kind(),
		Destination: patch.Destination(),
		EntityID:    patch.Base().ID,
	}
	if key.Kind == models.KindTravelInfo {
		key.EntityID = id.EntityID{}
	}
	return key
}

type pending struct {
	patch models.Entity
	timer *time.Timer
	err   error
}

// Saver holds at most one pending patch per key. A failed write keeps its
// patch pending, merged under any edit that arrived meanwhile, until the next
// edit or Flush retries it.
type Saver struct {
	save    SaveFunc
	target  TargetFunc
	delay   time.Duration
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	pending  map[Key]*pending
	inflight map[Key]chan struct{}
	closed   bool
}

type Option func(*Saver)

func WithDelay(d time.Duration) Option {
	return func(s *Saver) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithWriteTimeout bounds writes fired by the timer.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Saver) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTargetResolver keys ID-less passport and personal info edits by the
// record they will land on, so they coalesce with edits naming that record.
func WithTargetResolver(fn TargetFunc) Option {
	return func(s *Saver) {
		s.target = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Saver) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Saver) {
		s.metrics = m
	}
}

func New(save SaveFunc, opts ...Option) *Saver {
	s := &Saver{
		save:     save,
		delay:    DefaultDelay,
		timeout:  10 * time.Second,
		logger:   slog.Default(),
		pending:  make(map[Key]*pending),
		inflight: make(map[Key]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule queues patch and (re)starts the key's timer. Newer non-empty
// values win over older pending ones.
func (s *Saver) Schedule(ctx context.Context, userID id.UserID, patch models.Entity) (Key, error) {
	if s.isClosed() {
		return Key{}, ErrClosed
	}
	key, err := s.keyFor(ctx, userID, patch)
	if err != nil {
		return Key{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Key{}, ErrClosed
	}
	if p, ok := s.pending[key]; ok {
		models.Merge(p.patch, patch)
		if p.timer != nil {
			p.timer.Stop()
		}
		p.timer = time.AfterFunc(s.delay, func() { s.fire(key) })
		s.metrics.IncrementCoalesced()
		return key, nil
	}
	queued := clone(patch)
	if key.EntityID != (id.EntityID{}) {
		queued.Base().ID = key.EntityID
	}
	s.pending[key] = &pending{
		patch: queued,
		timer: time.AfterFunc(s.delay, func() { s.fire(key) }),
	}
	s.metrics.SetPending(len(s.pending))
	return key, nil
}

func (s *Saver) keyFor(ctx context.Context, userID id.UserID, patch models.Entity) (Key, error) {
	key := KeyOf(userID, patch)
	switch key.Kind {
	case models.KindPassport, models.KindPersonalInfo:
	default:
		return key, nil
	}
	if s.target == nil || !key.EntityID.IsNil() {
		return key, nil
	}
	targetID, err := s.target(ctx, userID, patch)
	if err != nil {
		return Key{}, err
	}
	key.EntityID = targetID
	return key, nil
}

func (s *Saver) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Flush writes every pending patch of userID now and waits for writes
// already in flight. Errors of all keys are joined.
func (s *Saver) Flush(ctx context.Context, userID id.UserID) error {
	s.mu.Lock()
	var keys []Key
	for key := range s.pending {
		if key.UserID == userID {
			keys = append(keys, key)
		}
	}
	for key := range s.inflight {
		if key.UserID == userID && s.pending[key] == nil {
			keys = append(keys, key)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := s.write(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending reports how many keys of userID are waiting to be written.
func (s *Saver) Pending(userID id.UserID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.pending {
		if key.UserID == userID {
			n++
		}
	}
	return n
}

// Err returns the last write error recorded for key, if its patch is still
// pending.
func (s *Saver) Err(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[key]; ok {
		return p.err
	}
	return nil
}

// Close flushes everything and rejects later edits.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	var keys []Key
	for key := range s.pending {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := s.write(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Saver) fire(key Key) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.write(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "debounced save failed, keeping edit pending",
			"user_id", key.UserID.String(),
			"kind", string(key.Kind),
			"error", err,
		)
	}
}

// write takes the key's patch and saves it, one write per key at a time.
func (s *Saver) write(ctx context.Context, key Key) error {
	s.mu.Lock()
	for {
		done, busy := s.inflight[key]
		if !busy {
			break
		}
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
	p, ok := s.pending[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(s.pending, key)
	done := make(chan struct{})
	s.inflight[key] = done
	s.metrics.SetPending(len(s.pending))
	s.mu.Unlock()

	_, err := s.save(ctx, key.UserID, p.patch)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
	close(done)
	if err == nil {
		return nil
	}
	// Keep the failed patch; edits that arrived during the write are newer.
	if newer, ok := s.pending[key]; ok {
		models.Merge(p.patch, newer.patch)
		p.timer = newer.timer
	} else {
		p.timer = nil
	}
	p.err = err
	s.pending[key] = p
	s.metrics.SetPending(len(s.pending))
	return err
}

func clone(e models.Entity) models.Entity {
	c, err := models.New(e.Kind())
	if err != nil {
		return e
	}
	*c.Base() = *e.Base()
	if t, ok := c.(*models.TravelInfo); ok {
		t.DestinationID = e.Destination()
	}
	models.Merge(c, e)
	return c
}
