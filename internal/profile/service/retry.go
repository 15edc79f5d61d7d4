package service

import (
	"context"
	"errors"
	"time"

	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/sentinel"
)

// withRetry runs fn up to s.attempts times with doubling backoff. Not-found
// and conflict are facts, not transient failures, and return immediately.
func (s *Service) withRetry(ctx context.Context, op Op, fn func(ctx context.Context) error) error {
	var (
		err      error
		attempts int
		backoff  = s.backoff
	)
	for attempts < s.attempts {
		attempts++
		err = fn(ctx)
		if err == nil || errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		if attempts == s.attempts || ctx.Err() != nil {
			break
		}
		s.metrics.IncrementRetry(string(op))
		s.logger.WarnContext(ctx, "profile storage retry", "op", op, "attempt", attempts)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			break
		}
		backoff *= 2
	}

	perr := &PersistenceError{Op: op, Attempts: attempts, Cause: err}
	if ctx.Err() != nil {
		perr.Cause = ctx.Err()
		return dErrors.Wrap(perr, dErrors.CodeTimeout, "profile storage timed out")
	}
	return dErrors.Wrap(perr, dErrors.CodeUnavailable, "profile storage unavailable")
}
