package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"entrypass/internal/submission/remote"
	"entrypass/pkg/platform/sentinel"
)

// Category is the normalized submission failure taxonomy.
type Category string

const (
	// CategoryNetwork is a transport failure or timeout before an answer.
	CategoryNetwork Category = "network"
	// CategoryServer is a 5xx, 408 or 429 answer.
	CategoryServer Category = "server"
	// CategorySessionExpired means the remote rejected the session token.
	CategorySessionExpired Category = "session_expired"
	// CategoryValidation is a 400 or 422 answer: the remote refused the data.
	CategoryValidation Category = "validation"
	// CategoryFatal is any other 4xx answer.
	CategoryFatal Category = "fatal"
	// CategoryCircuitOpen means the call was not attempted.
	CategoryCircuitOpen Category = "circuit_open"
	// CategoryCanceled means the caller gave up.
	CategoryCanceled Category = "canceled"
)

// CodeSessionExpired is the remote error code for a stale session.
const CodeSessionExpired = "SESSION_EXPIRED"

// SubmissionError is a classified remote failure. Message is sanitized and
// safe to log or show.
type SubmissionError struct {
	Category   Category
	Status     int
	Code       string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("submission [%s]", e.Category)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *SubmissionError) Unwrap() error {
	return e.Underlying
}

// State is the terminal state this failure leaves the attempt in.
func (e *SubmissionError) State() State {
	if e.Retryable {
		return StateFailedRetryable
	}
	return StateFailedFatal
}

// NewSubmissionError builds a classified error. Retryable follows from the
// category.
func NewSubmissionError(category Category, status int, code, message string, underlying error) *SubmissionError {
	retryable := category == CategoryNetwork ||
		category == CategoryServer ||
		category == CategorySessionExpired
	return &SubmissionError{
		Category:   category,
		Status:     status,
		Code:       code,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable reports whether err is a submission failure worth retrying.
func IsRetryable(err error) bool {
	var se *SubmissionError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the failure category, or "" when err is not a
// submission failure.
func GetCategory(err error) Category {
	var se *SubmissionError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// ErrCircuitOpen is the underlying error of CategoryCircuitOpen failures.
var ErrCircuitOpen = errors.New("remote circuit open")

// classify maps a remote call failure onto the taxonomy. It returns nil for
// errors that did not come from the remote, such as local validation.
func classify(err error, sensitive []string) *SubmissionError {
	if err == nil {
		return nil
	}
	var se *SubmissionError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, sentinel.ErrExpired):
		return NewSubmissionError(CategorySessionExpired, 0, CodeSessionExpired, "", err)
	case errors.Is(err, context.Canceled):
		return NewSubmissionError(CategoryCanceled, 0, "", "", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewSubmissionError(CategoryNetwork, 0, "TIMEOUT", "", err)
	}

	var status *remote.StatusError
	if errors.As(err, &status) {
		msg := Sanitize(status.Message, sensitive...)
		switch {
		case status.Status == http.StatusUnauthorized || status.Code == CodeSessionExpired:
			return NewSubmissionError(CategorySessionExpired, status.Status, status.Code, msg, err)
		case status.Status == http.StatusBadRequest || status.Status == http.StatusUnprocessableEntity:
			return NewSubmissionError(CategoryValidation, status.Status, status.Code, msg, err)
		case status.Status >= 500 || status.Status == http.StatusRequestTimeout || status.Status == http.StatusTooManyRequests:
			return NewSubmissionError(CategoryServer, status.Status, status.Code, msg, err)
		default:
			return NewSubmissionError(CategoryFatal, status.Status, status.Code, msg, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewSubmissionError(CategoryNetwork, 0, "", "", err)
	}
	return nil
}
