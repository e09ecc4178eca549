package pta

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrAlreadyRegistered  = errors.New("already registered for this event")
	ErrEventFull          = errors.New("event is full")
	ErrConflict           = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("operation not permitted")
)

// ValidationError names the invariant a request violated.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is lets callers match any validation failure with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func notFound(kind string) error {
	return fmt.Errorf("%s %w", kind, ErrNotFound)
}

// IsDomain reports whether err is one of the expected outcomes of a workflow
// operation, as opposed to an infrastructure failure.
func IsDomain(err error) bool {
	for _, target := range []error{ErrNotFound, ErrValidation, ErrAlreadyRegistered, ErrEventFull, ErrConflict, ErrInvalidCredentials, ErrForbidden} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
