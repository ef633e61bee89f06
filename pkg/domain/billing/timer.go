package billing

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/shopspring/decimal"
)

// Timer states and events. Untyped string constants for statekit.StateID compatibility.
const (
	TimerStateRunning = "running"
	TimerStateStopped = "stopped"

	TimerEventStop = "stop"
)

var secondsPerHour = decimal.NewFromInt(3600)

// Timer is a running or stopped stopwatch for a user on a task.
type Timer struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TaskID    string     `json:"task_id"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
}

// IsRunning reports whether the timer is still open.
func (t *Timer) IsRunning() bool {
	return t.StoppedAt == nil
}

// State returns the FSM state matching the timer's stopped_at column.
func (t *Timer) State() string {
	if t.IsRunning() {
		return TimerStateRunning
	}
	return TimerStateStopped
}

// Elapsed returns the tracked duration: until now for a running timer,
// until stopped_at otherwise.
func (t *Timer) Elapsed(now time.Time) time.Duration {
	end := now
	if t.StoppedAt != nil {
		end = *t.StoppedAt
	}
	return end.Sub(t.StartedAt)
}

// HoursFromDuration converts whole seconds of d into hours rounded to 3 places.
func HoursFromDuration(d time.Duration) decimal.Decimal {
	seconds := decimal.NewFromInt(int64(d / time.Second))
	return RoundHours(seconds.Div(secondsPerHour))
}

// Stop moves the timer to STOPPED at now. Stopped is terminal.
func (t *Timer) Stop(now time.Time) error {
	sm, err := NewTimerStateMachine(t.State(), t.ID)
	if err != nil {
		return err
	}
	if err := sm.Transition(TimerEventStop); err != nil {
		return fmt.Errorf("%w: %v", ErrTimerStopped, err)
	}
	stopped := now
	t.StoppedAt = &stopped
	return nil
}

// TimerContext carries state data.
type TimerContext struct {
	TimerID string
}

// TimerStateMachine defines the RUNNING -> STOPPED lifecycle.
type TimerStateMachine struct {
	interpreter *statekit.Interpreter[TimerContext]
}

func NewTimerStateMachine(initialState string, timerID string) (*TimerStateMachine, error) {
	builder := statekit.NewMachine[TimerContext]("timer-machine").
		WithInitial(statekit.StateID(initialState)).
		WithContext(TimerContext{TimerID: timerID})

	builder.State(TimerStateRunning).
		On(TimerEventStop).Target(TimerStateStopped).
		Done()

	// Stopped only loops back to itself, so a second stop is rejected and
	// a stopped timer is never reopened.
	builder.State(TimerStateStopped).
		On(TimerEventStop).Target(TimerStateStopped).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build timer state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()

	return &TimerStateMachine{interpreter: interpreter}, nil
}

// Transition attempts to apply event, failing if the state does not change.
func (sm *TimerStateMachine) Transition(event string) error {
	before := sm.Current()
	sm.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if sm.Current() != before {
		return nil
	}
	return fmt.Errorf("the action '%s' is not allowed while the timer is '%s'", event, before)
}

func (sm *TimerStateMachine) Current() string {
	return string(sm.interpreter.State().Value)
}
