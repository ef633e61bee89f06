package cli

import (
	"errors"
	"fmt"

	"github.com/reneee98/layers/pkg/domain/billing"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	var valErr *billing.ValidationError
	if errors.As(err, &valErr) {
		return NewCLIError(valErr.Error(), fmt.Sprintf("Check the value passed for %s", valErr.Field), err)
	}

	switch {
	case errors.Is(err, billing.ErrTimerNotFound):
		return NewCLIError("no active timer", "Start one with 'layers timer start <task-id>'", err)
	case errors.Is(err, billing.ErrTimerRunning):
		return NewCLIError("a timer is already running", "Stop it first with 'layers timer stop'", err)
	case errors.Is(err, billing.ErrTaskNotFound):
		return NewCLIError("task not found", "The task may have been deleted; create it with 'layers task add'", err)
	case errors.Is(err, billing.ErrProjectNotFound):
		return NewCLIError("project not found", "Create it with 'layers project add <id>'", err)
	case errors.Is(err, billing.ErrRatesFileNotFound):
		return NewCLIError("rates file not found", "Check --file or create one with 'layers rate export'", err)
	case errors.Is(err, billing.ErrTimeEntryNotFound):
		return NewCLIError("time entry not found", "List entries with 'layers time list <task-id>'", err)
	}

	return err
}
