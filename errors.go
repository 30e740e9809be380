package messagebroker

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package is an *Error whose Kind
// is one of these, so callers can branch with errors.Is.
var (
	ErrInvalidConfiguration = errors.New("messagebroker: invalid configuration")
	ErrConnectFailure       = errors.New("messagebroker: connect failure")
	ErrPrecondition         = errors.New("messagebroker: precondition failed")
	ErrPublishFailure       = errors.New("messagebroker: publish failure")
	ErrClosed               = errors.New("messagebroker: publisher is closed")
)

// ErrMissingConsumer is the precondition failure for an empty consumer name.
var ErrMissingConsumer = errors.New("messagebroker: consumer not specified")

// Error is a failure of one operation.
type Error struct {
	Kind error  // One of the Err* kinds
	Op   string // Operation that failed
	Err  error  // Underlying error, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
