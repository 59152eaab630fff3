package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrSessionNotFound = errors.New("analysis session not found")
	ErrPhaseMismatch   = errors.New("analysis session phase mismatch")
	ErrIntrospection   = errors.New("schema introspection failed")
)

// PhaseMismatchError is returned when a phase operation is invoked on a session
// that is not in the immediately preceding phase. The session is left untouched.
type PhaseMismatchError struct {
	SessionID string
	Actual    string
	Expected  string
}

func (e *PhaseMismatchError) Error() string {
	return fmt.Sprintf("session %s is in phase %q, expected %q", e.SessionID, e.Actual, e.Expected)
}

// Unwrap lets callers match with errors.Is(err, ErrPhaseMismatch).
func (e *PhaseMismatchError) Unwrap() error {
	return ErrPhaseMismatch
}
