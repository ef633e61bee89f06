package billing

import (
	"errors"
	"fmt"
)

// Domain errors for billing.
var (
	// ErrValidation indicates the input was rejected before any computation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the parent of every lookup failure below.
	ErrNotFound = errors.New("not found")

	// ErrTaskNotFound indicates the task does not exist in the workspace.
	ErrTaskNotFound = fmt.Errorf("task %w", ErrNotFound)

	// ErrProjectNotFound indicates the project does not exist in the workspace.
	ErrProjectNotFound = fmt.Errorf("project %w", ErrNotFound)

	// ErrTimeEntryNotFound indicates the time entry does not exist.
	ErrTimeEntryNotFound = fmt.Errorf("time entry %w", ErrNotFound)

	// ErrTimerNotFound indicates the user has no open timer (or the named timer is unknown).
	ErrTimerNotFound = fmt.Errorf("timer %w", ErrNotFound)

	// ErrRatesFileNotFound indicates the rates file to sync does not exist.
	ErrRatesFileNotFound = fmt.Errorf("rates file %w", ErrNotFound)

	// ErrTimerRunning indicates the user already has an open timer.
	ErrTimerRunning = errors.New("a timer is already running")

	// ErrTimerStopped indicates a stop was attempted on a timer that is already stopped.
	ErrTimerStopped = errors.New("timer already stopped")
)

// ValidationError carries the offending field and a human-readable reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// Is allows errors.Is to work with ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
