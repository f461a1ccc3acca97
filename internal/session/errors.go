package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrAuthRequired is returned when an operation needs a signed-in user.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNotFound is returned when a single-row lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrNoActiveSession is returned by controller operations that need an active session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrValidation is the parent of all client-side field check failures.
	ErrValidation = errors.New("validation failed")

	ErrTemplateNotFound  = fmt.Errorf("template %w", ErrNotFound)
	ErrTemplateEmpty     = errors.New("template has no exercises")
	ErrSetConfirmed      = fmt.Errorf("%w: set is confirmed, unconfirm it first", ErrValidation)
	ErrSetNotConfirmed   = fmt.Errorf("%w: set is not confirmed", ErrValidation)
	ErrSetIndex          = fmt.Errorf("%w: set index out of range", ErrValidation)
	ErrSentimentRequired = fmt.Errorf("%w: choose how the workout felt", ErrValidation)
	ErrInvalidSentiment  = fmt.Errorf("%w: unknown sentiment value", ErrValidation)
)

// RemoteError reports a failed backend call. The underlying error is kept
// so callers can still match ErrNotFound or ErrAuthRequired.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// remote wraps err as a RemoteError unless it is already one.
func remote(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

// MissingFieldsError is returned when a draft cannot be confirmed because
// weight, reps or RPE are still empty after auto-fill.
type MissingFieldsError struct {
	Index  int
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("set %d is missing %s", e.Index+1, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrValidation
}

// PartialFailureError is returned when template instantiation created the
// session but some exercise or set inserts failed. Nothing is rolled back.
type PartialFailureError struct {
	SessionID uuid.UUID
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("session %s partially created: %v", e.SessionID, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
