package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an application, agent or session does not resolve
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyExists is returned when creating something that already exists
	ErrAlreadyExists = errors.New("already exists")
)

// CollaboratorError wraps a failure raised by the agent catalog or the
// conversation store.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewCollaboratorError returns nil when err is nil
func NewCollaboratorError(op string, err error) *CollaboratorError {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Op: op, Err: err}
}

// IsCollaboratorError reports whether err came from an external collaborator
func IsCollaboratorError(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
