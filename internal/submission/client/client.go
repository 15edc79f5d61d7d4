// Package client submits built arrival-card payloads to a destination's
// remote API. It classifies failures, retries transient ones, re-prepares
// once on session expiry, and fails fast while the remote circuit is open.
package client

import (
	"context"
	"log/slog"
	"time"

	"entrypass/internal/submission/metrics"
	"entrypass/internal/submission/remote"
	"entrypass/pkg/platform/circuit"
)

// State of one submission.
type State string

const (
	StateIdle            State = "idle"
	StateSubmitting      State = "submitting"
	StateSucceeded       State = "succeeded"
	StateFailedRetryable State = "failed_retryable"
	StateFailedFatal     State = "failed_fatal"
)

// Submitter sends one payload under a session token.
type Submitter interface {
	Submit(ctx context.Context, token string, body []byte) (*remote.Receipt, error)
}

// Prepared is everything one attempt sends: the session token and the body
// built with that session's option IDs.
type Prepared struct {
	Token string
	Body  []byte
	// Sensitive lists values redacted from remote messages.
	Sensitive []string
}

// PrepareFunc opens a session and builds the payload. It is called once up
// front and once more after a session expiry.
type PrepareFunc func(ctx context.Context) (*Prepared, error)

// Result of an accepted submission. Payload is the exact body sent.
type Result struct {
	ConfirmationID string
	ArtifactRef    string
	QRCodeRef      string
	Payload        []byte
	Attempts       int
	SubmittedAt    time.Time
}

// Client is safe for concurrent use; it keeps no per-submission state.
type Client struct {
	destination string
	submitter   Submitter
	breaker     *circuit.Breaker
	maxRetries  int
	backoff     time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	observe     func(ctx context.Context, s State)
}

type Option func(*Client)

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithRetry sets the retry budget and the first backoff, which doubles on
// every retry.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithStateObserver is called on every state transition of a submission.
func WithStateObserver(fn func(ctx context.Context, s State)) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// New returns a client for one destination. Defaults: 2 retries, 200ms
// backoff, a breaker named after the destination.
func New(destination string, submitter Submitter, opts ...Option) *Client {
	c := &Client{
		destination: destination,
		submitter:   submitter,
		maxRetries:  2,
		backoff:     200 * time.Millisecond,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuit.New("remote-" + destination)
	}
	return c
}

func (c *Client) transition(ctx context.Context, s State) {
	if c.observe != nil {
		c.observe(ctx, s)
	}
}

// Submit runs prepare and sends the result, retrying network and server
// failures at most maxRetries times. A session expiry re-runs prepare
// exactly once and uses one retry. Errors are *SubmissionError, or whatever
// prepare returned when it failed for a local reason.
func (c *Client) Submit(ctx context.Context, prepare PrepareFunc) (*Result, error) {
	start := c.now()
	c.transition(ctx, StateIdle)
	c.transition(ctx, StateSubmitting)

	var (
		prepared   *Prepared
		attempts   int
		retries    int
		reprepared bool
		backoff    = c.backoff
	)
	for {
		if prepared == nil {
			p, err := prepare(ctx)
			if err != nil {
				se := classify(err, nil)
				if se == nil {
					c.finish(ctx, StateFailedFatal, start, "prepare_failed")
					return nil, err
				}
				if se.Category == CategorySessionExpired {
					if reprepared {
						return nil, c.fail(ctx, se, start)
					}
					reprepared = true
				}
				if c.retry(ctx, se, &retries, &backoff) {
					continue
				}
				return nil, c.fail(ctx, se, start)
			}
			prepared = p
		}

		if !c.breaker.Allow() {
			c.metrics.IncrementCircuitRejection()
			se := NewSubmissionError(CategoryCircuitOpen, 0, "", "", ErrCircuitOpen)
			se.Retryable = true
			return nil, c.fail(ctx, se, start)
		}

		attempts++
		receipt, err := c.submitter.Submit(ctx, prepared.Token, prepared.Body)
		if err == nil {
			if _, change := c.breaker.RecordSuccess(); change.Closed {
				c.logger.InfoContext(ctx, "remote circuit closed", "destination", c.destination)
			}
			c.finish(ctx, StateSucceeded, start, "succeeded")
			return &Result{
				ConfirmationID: receipt.ConfirmationID,
				ArtifactRef:    receipt.ArtifactRef,
				QRCodeRef:      receipt.QRCodeRef,
				Payload:        prepared.Body,
				Attempts:       attempts,
				SubmittedAt:    c.now(),
			}, nil
		}

		se := classify(err, prepared.Sensitive)
		if se == nil {
			se = NewSubmissionError(CategoryFatal, 0, "", "", err)
		}
		if se.Category == CategoryNetwork || se.Category == CategoryServer {
			if _, change := c.breaker.RecordFailure(); change.Opened {
				c.logger.WarnContext(ctx, "remote circuit opened", "destination", c.destination)
			}
		}

		if se.Category == CategorySessionExpired {
			if reprepared {
				return nil, c.fail(ctx, se, start)
			}
			reprepared = true
			prepared = nil
		}
		if !c.retry(ctx, se, &retries, &backoff) {
			return nil, c.fail(ctx, se, start)
		}
	}
}

// retry waits out the backoff when se may be retried within the budget.
func (c *Client) retry(ctx context.Context, se *SubmissionError, retries *int, backoff *time.Duration) bool {
	if !se.Retryable || *retries >= c.maxRetries {
		return false
	}
	*retries++
	c.metrics.IncrementRetry(string(se.Category))
	c.logger.WarnContext(ctx, "submission retry",
		"destination", c.destination,
		"category", se.Category,
		"status", se.Status,
		"code", se.Code,
		"retry", *retries,
	)
	if se.Category != CategorySessionExpired {
		timer := time.NewTimer(*backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		*backoff *= 2
	}
	return ctx.Err() == nil
}

func (c *Client) fail(ctx context.Context, se *SubmissionError, start time.Time) error {
	c.logger.WarnContext(ctx, "submission failed",
		"destination", c.destination,
		"category", se.Category,
		"status", se.Status,
		"code", se.Code,
	)
	c.finish(ctx, se.State(), start, string(se.Category))
	return se
}

func (c *Client) finish(ctx context.Context, s State, start time.Time, outcome string) {
	c.metrics.IncrementSubmission(c.destination, outcome)
	c.metrics.ObserveSubmit(c.destination, c.now().Sub(start))
	c.transition(ctx, s)
}
