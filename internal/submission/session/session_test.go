package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/destination"
	"entrypass/internal/submission/remote"
	"entrypass/pkg/platform/sentinel"
)

// fakeSource issues a new token per session and derives option IDs from it,
// so IDs from different sessions never coincide.
type fakeSource struct {
	mu       sync.Mutex
	sessions int
	fetched  map[string]int
	failList string
	inflight atomic.Int32
	peak     atomic.Int32
	ttl      time.Duration
	noExpiry bool
	now      time.Time
}

func (f *fakeSource) OpenSession(context.Context) (remote.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	now := f.now
	if now.IsZero() {
		now = time.Now()
	}
	sess := remote.Session{Token: fmt.Sprintf("s%d", f.sessions)}
	if !f.noExpiry {
		sess.ExpiresAt = now.Add(f.ttl)
	}
	return sess, nil
}

func (f *fakeSource) Options(_ context.Context, token, list string) ([]remote.Option, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	if f.fetched == nil {
		f.fetched = map[string]int{}
	}
	f.fetched[list]++
	f.mu.Unlock()

	if list == f.failList {
		return nil, errors.New("upstream 503")
	}
	switch list {
	case "gender":
		return []remote.Option{
			{Value: "MALE", Label: "Male", ID: token + "-m"},
			{Value: "FEMALE", Label: "Female", ID: token + "-f"},
			{Value: "UNDEFINED", Label: "Other", ID: token + "-u"},
		}, nil
	case "country":
		return []remote.Option{
			{Value: "CHN", Label: "CHINA", ID: token + "-chn"},
			{Value: "THA", Label: "THAILAND", ID: token + "-tha"},
		}, nil
	case "transport_mode":
		return []remote.Option{{Value: "COMMERCIAL FLIGHT", ID: token + "-air"}}, nil
	default:
		return []remote.Option{{Value: "HOTEL", ID: token + "-hotel"}, {Value: "OTHERS", ID: token + "-other"}}, nil
	}
}

func thailand(t *testing.T) *destination.Destination {
	t.Helper()
	reg, err := destination.Load("")
	require.NoError(t, err)
	d, err := reg.Get("th")
	require.NoError(t, err)
	return d
}

func TestInitialize_FetchesEachListOnce(t *testing.T) {
	src := &fakeSource{ttl: time.Hour}
	r := NewResolver(src, thailand(t), WithConcurrency(2))

	sc, err := r.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", sc.Token())

	for _, list := range thailand(t).OptionLists() {
		assert.Equal(t, 1, src.fetched[list], list)
	}
	assert.LessOrEqual(t, src.peak.Load(), int32(2), "fetches are bounded")
}

func TestResolve_AppliesDestinationMapping(t *testing.T) {
	src := &fakeSource{ttl: time.Hour}
	sc, err := NewResolver(src, thailand(t)).Initialize(context.Background())
	require.NoError(t, err)

	got, err := sc.Resolve("transport_mode", "AIR")
	require.NoError(t, err)
	assert.Equal(t, "s1-air", got)

	got, err = sc.Resolve("gender", "other")
	require.NoError(t, err)
	assert.Equal(t, "s1-u", got, "UI OTHER maps to remote UNDEFINED")

	got, err = sc.Resolve("boarding_country", "chn")
	require.NoError(t, err)
	assert.Equal(t, "s1-chn", got, "categories share the country list")

	got, err = sc.Resolve("nationality", "Thailand")
	require.NoError(t, err)
	assert.Equal(t, "s1-tha", got, "labels resolve when no value matches")
}

func TestResolve_UnknownOptionIsHardFailure(t *testing.T) {
	sc, err := NewResolver(&fakeSource{ttl: time.Hour}, thailand(t)).Initialize(context.Background())
	require.NoError(t, err)

	_, err = sc.Resolve("nationality", "ATL")
	var unknown *UnknownOptionError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nationality", unknown.Category)
	assert.Equal(t, "ATL", unknown.Value)

	_, err = sc.Resolve("blood_type", "O")
	assert.ErrorAs(t, err, &unknown)
}

func TestSessions_AreIsolated(t *testing.T) {
	src := &fakeSource{ttl: time.Hour}
	r := NewResolver(src, thailand(t))

	first, err := r.Initialize(context.Background())
	require.NoError(t, err)
	second, err := r.Initialize(context.Background())
	require.NoError(t, err)

	a, err := first.Resolve("gender", "MALE")
	require.NoError(t, err)
	b, err := second.Resolve("gender", "MALE")
	require.NoError(t, err)
	assert.Equal(t, "s1-m", a)
	assert.Equal(t, "s2-m", b)
}

func TestContext_ExpiryAndInvalidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{ttl: time.Minute, now: now}
	r := NewResolver(src, thailand(t),
		WithClock(func() time.Time { return now }),
		WithExpirySkew(5*time.Second),
	)

	sc, err := r.Initialize(context.Background())
	require.NoError(t, err)
	assert.False(t, sc.Expired())

	now = now.Add(55 * time.Second)
	assert.True(t, sc.Expired(), "skew retires the context before the remote does")
	_, err = sc.Resolve("gender", "MALE")
	assert.ErrorIs(t, err, sentinel.ErrExpired)

	fresh, err := r.Initialize(context.Background())
	require.NoError(t, err)
	fresh.Invalidate()
	_, err = fresh.Resolve("gender", "MALE")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestInitialize_ShortLifetimeStaysUsable(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{ttl: 3 * time.Second, now: now}
	r := NewResolver(src, thailand(t),
		WithClock(func() time.Time { return now }),
		WithExpirySkew(5*time.Second),
	)

	sc, err := r.Initialize(context.Background())
	require.NoError(t, err)
	assert.False(t, sc.Expired(), "a lifetime shorter than the skew is still usable")
	assert.True(t, sc.ExpiresAt().After(now))
	got, err := sc.Resolve("gender", "MALE")
	require.NoError(t, err)
	assert.Equal(t, "s1-m", got)

	now = now.Add(3 * time.Second)
	assert.True(t, sc.Expired())
}

func TestInitialize_MissingLifetimeNeverExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{noExpiry: true, now: now}
	r := NewResolver(src, thailand(t), WithClock(func() time.Time { return now }))

	sc, err := r.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, sc.ExpiresAt().IsZero())

	now = now.Add(24 * time.Hour)
	assert.False(t, sc.Expired())
	_, err = sc.Resolve("gender", "MALE")
	assert.NoError(t, err)
}

func TestInitialize_ListFailureFailsTheAttempt(t *testing.T) {
	src := &fakeSource{ttl: time.Hour, failList: "country"}
	_, err := NewResolver(src, thailand(t)).Initialize(context.Background())
	assert.ErrorContains(t, err, "fetch country options")
}
