package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"entrypass/internal/submission/remote"
	"entrypass/pkg/platform/circuit"
	"entrypass/pkg/platform/sentinel"
)

type step struct {
	receipt *remote.Receipt
	err     error
}

type scriptedSubmitter struct {
	mu     sync.Mutex
	steps  []step
	tokens []string
	bodies [][]byte
}

func (s *scriptedSubmitter) Submit(_ context.Context, token string, body []byte) (*remote.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
	s.bodies = append(s.bodies, body)
	if len(s.steps) == 0 {
		return &remote.Receipt{ConfirmationID: "TDAC-FALLBACK"}, nil
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	return next.receipt, next.err
}

func (s *scriptedSubmitter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func ok(confirmation string) step {
	return step{receipt: &remote.Receipt{ConfirmationID: confirmation, ArtifactRef: "https://remote.example/cards/" + confirmation + ".pdf"}}
}

func status(code int, remoteCode, message string) step {
	return step{err: &remote.StatusError{Status: code, Code: remoteCode, Message: message}}
}

type ClientSuite struct {
	suite.Suite
	submitter *scriptedSubmitter
	states    []State
	prepared  int
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.submitter = &scriptedSubmitter{}
	s.states = nil
	s.prepared = 0
}

func (s *ClientSuite) newClient(opts ...Option) *Client {
	base := []Option{
		WithRetry(2, time.Millisecond),
		WithStateObserver(func(_ context.Context, st State) { s.states = append(s.states, st) }),
	}
	return New("th", s.submitter, append(base, opts...)...)
}

func (s *ClientSuite) prepare(ctx context.Context) (*Prepared, error) {
	s.prepared++
	token := "session-" + string(rune('0'+s.prepared))
	return &Prepared{
		Token:     token,
		Body:      []byte(`{"session":"` + token + `"}`),
		Sensitive: []string{"ZHANG", "WEI"},
	}, nil
}

func (s *ClientSuite) TestSucceedsFirstTime() {
	s.submitter.steps = []step{ok("TDAC123")}

	result, err := s.newClient().Submit(context.Background(), s.prepare)

	s.Require().NoError(err)
	s.Equal("TDAC123", result.ConfirmationID)
	s.Equal("https://remote.example/cards/TDAC123.pdf", result.ArtifactRef)
	s.Empty(result.QRCodeRef)
	s.Equal(1, result.Attempts)
	s.Equal(s.submitter.bodies[0], result.Payload)
	s.Equal([]State{StateIdle, StateSubmitting, StateSucceeded}, s.states)
}

func (s *ClientSuite) TestRetriesServerAndNetworkFailures() {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	s.submitter.steps = []step{status(503, "", "maintenance"), {err: netErr}, ok("TDAC9")}

	result, err := s.newClient().Submit(context.Background(), s.prepare)

	s.Require().NoError(err)
	s.Equal(3, result.Attempts)
	s.Equal(1, s.prepared, "transient failures reuse the prepared payload")
}

func (s *ClientSuite) TestGivesUpAfterTwoRetries() {
	s.submitter.steps = []step{status(500, "", ""), status(502, "", ""), status(500, "", ""), ok("never")}

	_, err := s.newClient().Submit(context.Background(), s.prepare)

	s.Require().Error(err)
	s.Equal(CategoryServer, GetCategory(err))
	s.True(IsRetryable(err))
	s.Equal(3, s.submitter.calls())
	s.Equal(StateFailedRetryable, s.states[len(s.states)-1])
}

func (s *ClientSuite) TestValidationIsFatalAndSanitized() {
	s.submitter.steps = []step{status(422, "INVALID_FIELD", "passport E12345678 of ZHANG WEI is invalid, contact wei@example.com")}

	_, err := s.newClient().Submit(context.Background(), s.prepare)

	var se *SubmissionError
	s.Require().ErrorAs(err, &se)
	s.Equal(CategoryValidation, se.Category)
	s.False(se.Retryable)
	s.Equal(1, s.submitter.calls())
	s.NotContains(se.Message, "E12345678")
	s.NotContains(se.Message, "ZHANG")
	s.NotContains(se.Message, "wei@example.com")
	s.NotContains(err.Error(), "E12345678")
	s.Equal(StateFailedFatal, s.states[len(s.states)-1])
}

func (s *ClientSuite) TestOtherClientErrorsAreFatal() {
	s.submitter.steps = []step{status(403, "FORBIDDEN", "")}

	_, err := s.newClient().Submit(context.Background(), s.prepare)

	s.Equal(CategoryFatal, GetCategory(err))
	s.False(IsRetryable(err))
	s.Equal(1, s.submitter.calls())
}

func (s *ClientSuite) TestSessionExpiryReprepareOnce() {
	s.submitter.steps = []step{status(401, "", ""), ok("TDAC42")}

	result, err := s.newClient().Submit(context.Background(), s.prepare)

	s.Require().NoError(err)
	s.Equal(2, s.prepared)
	s.Equal([]string{"session-1", "session-2"}, s.submitter.tokens)
	s.Equal([]byte(`{"session":"session-2"}`), result.Payload, "result carries the rebuilt body")
	s.Equal(2, result.Attempts)
}

func (s *ClientSuite) TestSecondSessionExpiryFails() {
	s.submitter.steps = []step{status(400, CodeSessionExpired, ""), status(401, "", ""), ok("never")}

	_, err := s.newClient().Submit(context.Background(), s.prepare)

	s.Equal(CategorySessionExpired, GetCategory(err))
	s.Equal(2, s.prepared)
	s.Equal(2, s.submitter.calls())
}

// errLocalExpiry mirrors the resolver noticing its session lapsed while the
// payload was being built.
var errLocalExpiry = fmt.Errorf("resolver session: %w", sentinel.ErrExpired)

func (s *ClientSuite) TestLocalExpiryDuringPrepareReprepareOnce() {
	s.submitter.steps = []step{ok("TDAC7")}
	calls := 0
	prepare := func(ctx context.Context) (*Prepared, error) {
		calls++
		if calls == 1 {
			return nil, errLocalExpiry
		}
		return s.prepare(ctx)
	}

	result, err := s.newClient().Submit(context.Background(), prepare)

	s.Require().NoError(err)
	s.Equal("TDAC7", result.ConfirmationID)
	s.Equal(2, calls)
	s.Equal(1, result.Attempts)
}

func (s *ClientSuite) TestRepeatedLocalExpiryFails() {
	calls := 0
	prepare := func(context.Context) (*Prepared, error) {
		calls++
		return nil, errLocalExpiry
	}

	_, err := s.newClient().Submit(context.Background(), prepare)

	s.Equal(CategorySessionExpired, GetCategory(err))
	s.ErrorIs(err, sentinel.ErrExpired)
	s.Equal(2, calls, "a lapsed session is re-prepared exactly once")
	s.Zero(s.submitter.calls())
}

func (s *ClientSuite) TestLocalExpiryAfterRemoteExpiryFails() {
	s.submitter.steps = []step{status(401, "", ""), ok("never")}
	calls := 0
	prepare := func(ctx context.Context) (*Prepared, error) {
		calls++
		if calls == 2 {
			return nil, errLocalExpiry
		}
		return s.prepare(ctx)
	}

	_, err := s.newClient().Submit(context.Background(), prepare)

	s.Equal(CategorySessionExpired, GetCategory(err))
	s.Equal(2, calls)
	s.Equal(1, s.submitter.calls())
}

func (s *ClientSuite) TestLocalPrepareErrorIsReturnedAsIs() {
	local := errors.New("unknown option")

	_, err := s.newClient().Submit(context.Background(), func(context.Context) (*Prepared, error) {
		return nil, local
	})

	s.ErrorIs(err, local)
	s.Equal(Category(""), GetCategory(err))
	s.Zero(s.submitter.calls())
	s.Equal(StateFailedFatal, s.states[len(s.states)-1])
}

func (s *ClientSuite) TestPrepareNetworkFailureIsRetried() {
	calls := 0
	prepare := func(ctx context.Context) (*Prepared, error) {
		calls++
		if calls == 1 {
			return nil, &remote.StatusError{Status: 503}
		}
		return s.prepare(ctx)
	}

	result, err := s.newClient().Submit(context.Background(), prepare)

	s.Require().NoError(err)
	s.Equal(2, calls)
	s.Equal(1, result.Attempts)
}

func (s *ClientSuite) TestOpenCircuitFailsFast() {
	breaker := circuit.New("remote-th", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
	c := s.newClient(WithBreaker(breaker), WithRetry(0, time.Millisecond))
	s.submitter.steps = []step{status(500, "", "")}

	_, err := c.Submit(context.Background(), s.prepare)
	s.Equal(CategoryServer, GetCategory(err))
	s.True(breaker.IsOpen())

	_, err = c.Submit(context.Background(), s.prepare)
	s.Require().ErrorIs(err, ErrCircuitOpen)
	s.Equal(CategoryCircuitOpen, GetCategory(err))
	s.Equal(1, s.submitter.calls(), "open circuit must not reach the remote")
}

func (s *ClientSuite) TestCanceledContextStopsRetrying() {
	ctx, cancel := context.WithCancel(context.Background())
	s.submitter.steps = []step{status(500, "", ""), ok("never")}
	c := s.newClient(WithRetry(2, time.Hour))

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := c.Submit(ctx, s.prepare)

	s.Equal(CategoryServer, GetCategory(err))
	s.Equal(1, s.submitter.calls())
}

func TestSanitize(t *testing.T) {
	msg := "Traveler Zhang Wei (E12345678) phone +86 138 0013 8000 email wei.zhang@example.com rejected"

	got := Sanitize(msg, "ZHANG", "WEI")

	assert.NotContains(t, got, "Zhang")
	assert.NotContains(t, got, "E12345678")
	assert.NotContains(t, got, "138 0013")
	assert.NotContains(t, got, "example.com")
	assert.Contains(t, got, "rejected")
	assert.Empty(t, Sanitize(""))
}

func TestSanitize_KnownValuesWithNameSeparators(t *testing.T) {
	msg := "Traveler ZHANG, WEI rejected; MRZ name LI/MAO"

	got := Sanitize(msg, "ZHANG,", "WEI", "LI/", "/MAO")

	assert.NotContains(t, got, "ZHANG")
	assert.NotContains(t, got, "WEI")
	assert.NotContains(t, got, "LI")
	assert.NotContains(t, got, "MAO")
	assert.Contains(t, got, "rejected")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err       error
		category  Category
		retryable bool
	}{
		{&remote.StatusError{Status: 503}, CategoryServer, true},
		{&remote.StatusError{Status: 429}, CategoryServer, true},
		{&remote.StatusError{Status: 401}, CategorySessionExpired, true},
		{&remote.StatusError{Status: 400}, CategoryValidation, false},
		{&remote.StatusError{Status: 404}, CategoryFatal, false},
		{context.DeadlineExceeded, CategoryNetwork, true},
		{context.Canceled, CategoryCanceled, false},
		{errLocalExpiry, CategorySessionExpired, true},
	}
	for _, tt := range tests {
		se := classify(tt.err, nil)
		require.NotNil(t, se, tt.err.Error())
		assert.Equal(t, tt.category, se.Category, tt.err.Error())
		assert.Equal(t, tt.retryable, se.Retryable, tt.err.Error())
	}
	assert.Nil(t, classify(errors.New("local"), nil))
}
