// Package session resolves logical dropdown values to the remote's
// session-bound option IDs. Every submission attempt initializes its own
// Context; IDs are held in memory on that Context only and are never valid
// once its remote session expires.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"entrypass/internal/destination"
	"entrypass/internal/submission/remote"
	"entrypass/pkg/platform/sentinel"
)

// Source is the part of the remote API the resolver needs.
type Source interface {
	OpenSession(ctx context.Context) (remote.Session, error)
	Options(ctx context.Context, token, category string) ([]remote.Option, error)
}

// UnknownOptionError means a logical value has no remote ID in this session.
// It is never papered over with a default.
type UnknownOptionError struct {
	Category string
	Value    string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("no remote option for %s value %q", e.Category, e.Value)
}

// ErrExpired is returned by Resolve once the session has lapsed.
var ErrExpired = fmt.Errorf("resolver session: %w", sentinel.ErrExpired)

// Resolver builds Contexts for one destination.
type Resolver struct {
	source      Source
	dest        *destination.Destination
	logger      *slog.Logger
	now         func() time.Time
	concurrency int
	// skew shortens the usable lifetime so a context does not lapse mid-request.
	skew time.Duration
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithConcurrency bounds parallel option-list fetches.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithExpirySkew(d time.Duration) Option {
	return func(r *Resolver) {
		if d >= 0 {
			r.skew = d
		}
	}
}

func NewResolver(source Source, dest *destination.Destination, opts ...Option) *Resolver {
	r := &Resolver{
		source:      source,
		dest:        dest,
		logger:      slog.Default(),
		now:         time.Now,
		concurrency: 4,
		skew:        5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize performs the handshake and fetches every option list the
// destination's categories use, concurrently. The returned Context is owned
// by the caller's attempt.
func (r *Resolver) Initialize(ctx context.Context) (*Context, error) {
	sess, err := r.source.OpenSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open remote session: %w", err)
	}

	lists := r.dest.OptionLists()
	ids := make(map[string]map[string]string, len(lists))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, list := range lists {
		g.Go(func() error {
			options, err := r.source.Options(gctx, sess.Token, list)
			if err != nil {
				return fmt.Errorf("fetch %s options: %w", list, err)
			}
			index := indexOptions(options)
			mu.Lock()
			ids[list] = index
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "resolver session initialized",
		"destination", string(r.dest.ID),
		"lists", len(lists),
	)
	return &Context{
		token:      sess.Token,
		expiresAt:  r.usableUntil(sess.ExpiresAt),
		categories: r.dest.Categories,
		ids:        ids,
		now:        r.now,
	}, nil
}

// usableUntil shortens a remote expiry by the skew, never by more than a
// tenth of the remaining lifetime. A zero expiry stays zero.
func (r *Resolver) usableUntil(expiresAt time.Time) time.Time {
	if expiresAt.IsZero() {
		return expiresAt
	}
	skew := r.skew
	if lifetime := expiresAt.Sub(r.now()); lifetime > 0 && lifetime/10 < skew {
		skew = lifetime / 10
	}
	return expiresAt.Add(-skew)
}

// indexOptions keys option IDs by normalized value, then by label where the
// label does not collide with a value.
func indexOptions(options []remote.Option) map[string]string {
	index := make(map[string]string, len(options)*2)
	for _, o := range options {
		if o.ID == "" {
			continue
		}
		if k := normalize(o.Value); k != "" {
			index[k] = o.ID
		}
	}
	for _, o := range options {
		k := normalize(o.Label)
		if o.ID == "" || k == "" {
			continue
		}
		if _, taken := index[k]; !taken {
			index[k] = o.ID
		}
	}
	return index
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Context is one remote session's view of the option IDs.
type Context struct {
	mu          sync.RWMutex
	token       string
	expiresAt   time.Time
	invalidated bool
	categories  []destination.Category
	ids         map[string]map[string]string
	now         func() time.Time
}

// Token is the remote session token.
func (c *Context) Token() string {
	return c.token
}

// ExpiresAt is when the context stops resolving. Zero means the remote gave
// no lifetime.
func (c *Context) ExpiresAt() time.Time {
	return c.expiresAt
}

// Expired reports whether the context must not be used anymore.
func (c *Context) Expired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.invalidated {
		return true
	}
	return !c.expiresAt.IsZero() && !c.now().Before(c.expiresAt)
}

// Invalidate retires the context, e.g. after the remote reports the session
// expired. Later Resolve calls fail with ErrExpired.
func (c *Context) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = true
	c.ids = nil
}

// Resolve maps a UI value of category to its remote ID, applying the
// destination's value mapping first.
func (c *Context) Resolve(category, value string) (string, error) {
	if c.Expired() {
		return "", ErrExpired
	}
	cat, ok := c.category(category)
	if !ok {
		return "", &UnknownOptionError{Category: category, Value: value}
	}
	logical := cat.Logical(value)

	c.mu.RLock()
	defer c.mu.RUnlock()
	remoteID, ok := c.ids[cat.OptionList()][normalize(logical)]
	if !ok {
		return "", &UnknownOptionError{Category: category, Value: logical}
	}
	return remoteID, nil
}

func (c *Context) category(name string) (destination.Category, bool) {
	for _, cat := range c.categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return destination.Category{}, false
}
