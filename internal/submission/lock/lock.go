// Package lock guards one submission per (user, destination) at a time.
// The in-memory locker serves a single instance; the Redis locker is shared
// across instances.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another holder owns the key.
var ErrHeld = errors.New("lock held")

// Release frees an acquired lock. Releasing twice is a no-op.
type Release func(ctx context.Context) error

// Locker acquires exclusive, expiring locks.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

func token() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

type entry struct {
	token     string
	expiresAt time.Time
}

type InMemoryLocker struct {
	mu   sync.Mutex
	held map[string]entry
	now  func() time.Time
}

func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{held: make(map[string]entry), now: time.Now}
}

func (l *InMemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.held[key]; ok && l.now().Before(e.expiresAt) {
		return nil, ErrHeld
	}
	tok := token()
	l.held[key] = entry{token: tok, expiresAt: l.now().Add(ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[key]; ok && e.token == tok {
			delete(l.held, key)
		}
		return nil
	}, nil
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	full := l.prefix + key
	tok := token()
	ok, err := l.client.SetNX(ctx, full, tok, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{full}, tok).Err()
	}, nil
}
