package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(opts ...Option) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New("th-arrival-card", opts...), clock
}

func TestBreaker_Defaults(t *testing.T) {
	b := New("th-arrival-card")
	assert.Equal(t, "th-arrival-card", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_OpensOnConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		fallback, change := b.RecordFailure()
		require.False(t, fallback, "failure %d", i+1)
		require.False(t, change.Opened)
	}
	// a success in between starts the count over
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.False(t, b.Allow(), "open breaker rejects before the cooldown")
}

func TestBreaker_TrialAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(WithFailureThreshold(1), WithSuccessThreshold(2), WithCooldown(time.Minute))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	clock.Advance(59 * time.Second)
	assert.False(t, b.Allow())

	clock.Advance(time.Second)
	require.True(t, b.Allow(), "cooldown elapsed, trial request allowed")

	primary, change := b.RecordSuccess()
	assert.False(t, primary, "one trial request is not enough to close")
	assert.False(t, change.Closed)

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_FailedTrialRestartsCooldown(t *testing.T) {
	b, clock := newTestBreaker(WithFailureThreshold(1), WithSuccessThreshold(2), WithCooldown(time.Minute))
	b.RecordFailure()
	clock.Advance(time.Minute)
	require.True(t, b.Allow())

	b.RecordSuccess()
	fallback, change := b.RecordFailure()

	assert.True(t, fallback)
	assert.False(t, change.Opened, "already open, no new transition")
	assert.False(t, b.Allow(), "cooldown restarted at the failed trial request")

	clock.Advance(time.Minute)
	assert.True(t, b.Allow())
	primary, _ := b.RecordSuccess()
	assert.False(t, primary, "success streak was broken by the failed trial request")
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_IgnoresNonPositiveOptions(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(0), WithSuccessThreshold(-1), WithCooldown(0))
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen(), "default threshold of 5 still applies")
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_ConcurrentRecording(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(50))
	var wg sync.WaitGroup
	var mu sync.Mutex
	opened := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened, "exactly one call observes the transition")
	assert.True(t, b.IsOpen())
}
