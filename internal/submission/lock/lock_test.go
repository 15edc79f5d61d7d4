package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLocker(t *testing.T) {
	ctx := context.Background()
	l := NewInMemoryLocker()

	release, err := l.Acquire(ctx, "user:th", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "user:th", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	other, err := l.Acquire(ctx, "user:my", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := l.Acquire(ctx, "user:th", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestInMemoryLocker_ExpiredLockCanBeTaken(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	l := NewInMemoryLocker()
	l.now = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrHeld, "stale release must not free the new holder")
	require.NoError(t, fresh(ctx))
}
