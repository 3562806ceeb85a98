// Package apperr defines the error kinds shared by the engine packages.
//
// Concrete errors wrap exactly one kind with fmt.Errorf("%w: ...") so callers
// can classify them with errors.Is without knowing the concrete sentinel.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation: malformed identifier, wrong participant count, score tie.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound: unknown tournament, group, match or participant.
	ErrNotFound = errors.New("requested resource not found")
	// ErrConflict: duplicate name, stage already advanced, match already completed.
	ErrConflict = errors.New("conflict with current state")
	// ErrState: operation invalid for the current status.
	ErrState = errors.New("operation not allowed in current state")
	// ErrDependency: persistence or notification collaborator failure.
	ErrDependency = errors.New("dependency failure")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func State(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}

// Dependency wraps a collaborator failure, keeping the cause inspectable.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrDependency, op, err)
}

// Classified reports whether err already carries one of the kinds.
func Classified(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrState) ||
		errors.Is(err, ErrDependency)
}

// Retryable reports whether the caller may safely repeat the operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrDependency)
}
