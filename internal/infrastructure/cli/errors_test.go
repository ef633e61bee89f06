package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/reneee98/layers/pkg/domain/billing"
)

func TestCLIError(t *testing.T) {
	t.Run("Error with cause", func(t *testing.T) {
		cause := errors.New("root cause")
		e := NewCLIError("something failed", "try this", cause)
		if e.Error() != "something failed: root cause" {
			t.Fatalf("unexpected: %s", e.Error())
		}
		if e.ExitCode != 1 {
			t.Fatalf("expected exit code 1, got %d", e.ExitCode)
		}
	})

	t.Run("Error without cause", func(t *testing.T) {
		e := NewCLIError("something failed", "try this", nil)
		if e.Error() != "something failed" {
			t.Fatalf("unexpected: %s", e.Error())
		}
	})

	t.Run("Unwrap returns cause", func(t *testing.T) {
		cause := errors.New("root")
		e := NewCLIError("msg", "", cause)
		if !errors.Is(e, cause) {
			t.Fatal("errors.Is should match wrapped cause")
		}
	})
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantMsg  string
		wantHint string
		wantCLI  bool
	}{
		{
			name: "nil returns nil",
			err:  nil,
		},
		{
			name:     "ErrTimerNotFound",
			err:      fmt.Errorf("failed to stop timer: %w", billing.ErrTimerNotFound),
			wantMsg:  "no active timer",
			wantHint: "Start one with 'layers timer start <task-id>'",
			wantCLI:  true,
		},
		{
			name:     "ErrTimerRunning",
			err:      billing.ErrTimerRunning,
			wantMsg:  "a timer is already running",
			wantHint: "Stop it first with 'layers timer stop'",
			wantCLI:  true,
		},
		{
			name:     "ErrTaskNotFound",
			err:      fmt.Errorf("wrap: %w", billing.ErrTaskNotFound),
			wantMsg:  "task not found",
			wantHint: "The task may have been deleted; create it with 'layers task add'",
			wantCLI:  true,
		},
		{
			name:     "ErrProjectNotFound",
			err:      billing.ErrProjectNotFound,
			wantMsg:  "project not found",
			wantHint: "Create it with 'layers project add <id>'",
			wantCLI:  true,
		},
		{
			name:     "ErrRatesFileNotFound",
			err:      fmt.Errorf("failed to sync rates: %w", billing.ErrRatesFileNotFound),
			wantMsg:  "rates file not found",
			wantHint: "Check --file or create one with 'layers rate export'",
			wantCLI:  true,
		},
		{
			name:     "ErrTimeEntryNotFound",
			err:      billing.ErrTimeEntryNotFound,
			wantMsg:  "time entry not found",
			wantHint: "List entries with 'layers time list <task-id>'",
			wantCLI:  true,
		},
		{
			name:     "ValidationError",
			err:      fmt.Errorf("failed to log time: %w", billing.NewValidationError("hours", "must be positive")),
			wantHint: "Check the value passed for hours",
			wantCLI:  true,
		},
		{
			name:    "unknown error passes through",
			err:     errors.New("disk on fire"),
			wantCLI: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}

			var cliErr *CLIError
			isCLI := errors.As(got, &cliErr)
			if isCLI != tt.wantCLI {
				t.Fatalf("expected CLIError=%v, got %T", tt.wantCLI, got)
			}
			if !tt.wantCLI {
				if got != tt.err {
					t.Fatalf("expected the original error back, got %v", got)
				}
				return
			}
			if tt.wantMsg != "" && cliErr.Message != tt.wantMsg {
				t.Errorf("message: expected %q, got %q", tt.wantMsg, cliErr.Message)
			}
			if cliErr.Hint != tt.wantHint {
				t.Errorf("hint: expected %q, got %q", tt.wantHint, cliErr.Hint)
			}
			if !errors.Is(got, tt.err) {
				t.Error("mapped error should still match the original")
			}
		})
	}
}

func TestMapError_KeepsCLIError(t *testing.T) {
	orig := NewCLIError("custom", "hint", nil)
	if got := MapError(fmt.Errorf("context: %w", orig)); !errors.Is(got, orig) {
		t.Fatalf("expected the CLIError to survive, got %v", got)
	}
}
