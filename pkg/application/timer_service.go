package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reneee98/layers/pkg/domain"
	"github.com/reneee98/layers/pkg/domain/billing"
)

// TimerService starts timers and turns stopped timers into time entries.
type TimerService struct {
	repo     billing.Repository
	resolver *billing.RateResolver
	audit    domain.AuditLogger
	logger   *slog.Logger
	now      func() time.Time
}

func NewTimerService(repo billing.Repository, resolver *billing.RateResolver, audit domain.AuditLogger, logger *slog.Logger) *TimerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimerService{
		repo:     repo,
		resolver: resolver,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (s *TimerService) SetClock(now func() time.Time) {
	s.now = now
}

// Start opens a timer for userID on taskID.
func (s *TimerService) Start(ctx context.Context, userID, taskID string) (*billing.Timer, error) {
	if userID == "" {
		return nil, billing.NewValidationError("user_id", "must not be empty")
	}
	if _, err := s.repo.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	timer := &billing.Timer{
		ID:        uuid.New().String(),
		UserID:    userID,
		TaskID:    taskID,
		StartedAt: s.now().UTC().Round(0),
	}
	if err := s.repo.CreateTimer(ctx, timer); err != nil {
		return nil, err
	}

	_ = s.audit.Log(domain.ActionTimerStarted, actorOf(userID), map[string]interface{}{
		"timer_id": timer.ID,
		"task_id":  taskID,
	})
	return timer, nil
}

// Current returns the user's open timer.
func (s *TimerService) Current(ctx context.Context, userID string) (*billing.Timer, error) {
	return s.repo.GetOpenTimer(ctx, userID)
}

// StopTimerInput names the timer to stop. Without a TimerID the user's open
// timer is stopped.
type StopTimerInput struct {
	UserID      string
	TimerID     string
	Description string
}

// StopResult is what a stop produced. AlreadyStopped reports that another
// stop won; Duration is then the one that stop recorded.
type StopResult struct {
	Timer          billing.Timer          `json:"timer"`
	Entry          *billing.TimeEntry     `json:"entry,omitempty"`
	Duration       time.Duration          `json:"duration"`
	Hours          decimal.Decimal        `json:"hours"`
	Amount         decimal.Decimal        `json:"amount"`
	Rate           billing.RateResolution `json:"rate"`
	AlreadyStopped bool                   `json:"already_stopped"`
}

// Stop finalizes a timer into at most one time entry. The stopped_at write is
// a compare-and-set committed together with the entry, so concurrent stops of
// the same timer create a single entry and report the same duration.
func (s *TimerService) Stop(ctx context.Context, in StopTimerInput) (*StopResult, error) {
	timer, err := s.loadTimer(ctx, in)
	if err != nil {
		return nil, err
	}
	if !timer.IsRunning() {
		return s.alreadyStopped(ctx, timer.ID)
	}

	now := s.now().UTC().Round(0)
	duration := timer.Elapsed(now)
	hours := billing.HoursFromDuration(duration)

	stopped := *timer
	if err := stopped.Stop(now); err != nil {
		return nil, err
	}
	result := &StopResult{
		Timer:    stopped,
		Duration: duration,
		Hours:    decimal.Zero,
		Amount:   decimal.Zero,
		Rate:     billing.FallbackRate(),
	}

	var entry *billing.TimeEntry
	if duration > 0 && hours.IsPositive() {
		task, err := s.repo.GetTask(ctx, timer.TaskID)
		if err != nil {
			return nil, err
		}

		resolution := s.resolver.ResolveQuery(ctx, billing.RateQuery{
			UserID:    timer.UserID,
			ProjectID: task.ProjectID,
			Task:      task,
			Today:     billing.DateOf(now),
		})
		charge := billing.ComputeAmount(task, task.ActualHours, hours, resolution.HourlyRate)

		e, err := billing.NewTimeEntry(uuid.New().String(), task.ID, timer.UserID, hours, timer.StartedAt, now)
		if err != nil {
			return nil, err
		}
		e.ProjectID = task.ProjectID
		e.TimerID = timer.ID
		e.StartTime = &timer.StartedAt
		e.EndTime = &now
		e.Description = in.Description
		charge.Apply(&e, resolution.Source)
		entry = &e

		result.Hours = hours
		result.Amount = e.Amount
		result.Rate = resolution
	}

	won, err := s.repo.FinalizeTimer(ctx, timer.ID, now, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to stop timer: %w", err)
	}
	if !won {
		s.logger.Info("timer was stopped concurrently", "timer_id", timer.ID)
		return s.alreadyStopped(ctx, timer.ID)
	}
	result.Entry = entry

	meta := map[string]interface{}{
		"timer_id": timer.ID,
		"task_id":  timer.TaskID,
		"duration": duration.String(),
		"hours":    result.Hours.String(),
		"amount":   result.Amount.String(),
	}
	if entry != nil {
		meta["entry_id"] = entry.ID
		meta["rate_source"] = string(result.Rate.Source)
	}
	_ = s.audit.Log(domain.ActionTimerStopped, actorOf(timer.UserID), meta)

	return result, nil
}

func (s *TimerService) loadTimer(ctx context.Context, in StopTimerInput) (*billing.Timer, error) {
	if in.TimerID == "" {
		return s.repo.GetOpenTimer(ctx, in.UserID)
	}
	timer, err := s.repo.GetTimer(ctx, in.TimerID)
	if err != nil {
		return nil, err
	}
	if in.UserID != "" && timer.UserID != in.UserID {
		return nil, fmt.Errorf("%w: %s", billing.ErrTimerNotFound, in.TimerID)
	}
	return timer, nil
}

// alreadyStopped reports the outcome recorded by the stop that won.
func (s *TimerService) alreadyStopped(ctx context.Context, timerID string) (*StopResult, error) {
	timer, err := s.repo.GetTimer(ctx, timerID)
	if err != nil {
		return nil, err
	}
	if timer.StoppedAt == nil {
		return nil, fmt.Errorf("timer %s reported stopped but has no stop time", timerID)
	}

	result := &StopResult{
		Timer:          *timer,
		Duration:       timer.StoppedAt.Sub(timer.StartedAt),
		Hours:          decimal.Zero,
		Amount:         decimal.Zero,
		Rate:           billing.FallbackRate(),
		AlreadyStopped: true,
	}

	entry, err := s.repo.GetTimeEntryByTimer(ctx, timerID)
	switch {
	case err == nil:
		result.Entry = entry
		result.Hours = entry.Hours
		result.Amount = entry.Amount
		result.Rate = entry.StoredRate()
	case errors.Is(err, billing.ErrNotFound):
		// degenerate stop, nothing was billed
	default:
		return nil, err
	}
	return result, nil
}
