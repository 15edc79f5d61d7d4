package service

import (
	"fmt"
)

// Op is the storage direction that failed.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// PersistenceError is surfaced once transient storage retries are exhausted.
// Stored profile data is unchanged when it is returned from a write.
type PersistenceError struct {
	Op       Op
	Attempts int
	Cause    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("profile storage %s failed after %d attempts: %v", e.Op, e.Attempts, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
