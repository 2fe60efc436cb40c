package jira

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a URL does not resolve to an issue key or the
// remote entity does not exist.
var ErrNotFound = errors.New("not found")

// TransientError wraps a failed remote call. It is recoverable. Remote
// failures pass through remoteErr, so a missing entity surfaces as
// ErrNotFound instead.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("jira %s failed: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Reconciliation phases.
const (
	PhaseFieldUpdate = "field-update"
	PhaseTransition  = "transition"
)

// ReconciliationError reports a failed field update or transition. Message
// is the classified, user-facing text.
type ReconciliationError struct {
	Key     string
	Phase   string
	Message string
	Err     error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s of %s failed: %s", e.Phase, e.Key, e.Message)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// remoteErr keeps ErrNotFound as is and wraps any other failure of op in a
// TransientError.
func remoteErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}
