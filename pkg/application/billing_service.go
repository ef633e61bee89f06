package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"

	"github.com/reneee98/layers/pkg/domain"
	"github.com/reneee98/layers/pkg/domain/billing"
)

// BillingService prices and persists time entries.
type BillingService struct {
	repo     billing.Repository
	resolver *billing.RateResolver
	audit    domain.AuditLogger
	logger   *slog.Logger
	now      func() time.Time
}

func NewBillingService(repo billing.Repository, resolver *billing.RateResolver, audit domain.AuditLogger, logger *slog.Logger) *BillingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingService{
		repo:     repo,
		resolver: resolver,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (s *BillingService) SetClock(now func() time.Time) {
	s.now = now
}

// LogTimeInput is a new time record. Rate is optional; when nil the rate is resolved.
type LogTimeInput struct {
	TaskID      string
	UserID      string
	Hours       decimal.Decimal
	Date        string
	StartTime   *time.Time
	EndTime     *time.Time
	Description string
	NonBillable bool
	Rate        *decimal.Decimal
}

// LoggedEntry is a persisted entry together with how it was priced.
type LoggedEntry struct {
	Entry  billing.TimeEntry      `json:"entry"`
	Rate   billing.RateResolution `json:"rate"`
	Charge billing.Charge         `json:"charge"`
}

// LogTime validates, prices and stores a time entry. The task's actual_hours
// before this entry is the prior consumption.
func (s *BillingService) LogTime(ctx context.Context, in LogTimeInput) (*LoggedEntry, error) {
	if !billing.RoundHours(in.Hours).IsPositive() {
		return nil, billing.NewValidationError("hours", "must be positive")
	}
	date, err := billing.ParseDate("date", in.Date)
	if err != nil {
		return nil, err
	}
	if in.Rate != nil && in.Rate.IsNegative() {
		return nil, billing.NewValidationError("hourly_rate", "must be >= 0")
	}

	task, err := s.repo.GetTask(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}

	entry, err := billing.NewTimeEntry(uuid.New().String(), task.ID, in.UserID, in.Hours, date, s.now().UTC())
	if err != nil {
		return nil, err
	}
	entry.ProjectID = task.ProjectID
	entry.StartTime = in.StartTime
	entry.EndTime = in.EndTime
	entry.Description = in.Description
	entry.IsBillable = !in.NonBillable

	resolution := s.rateFor(ctx, in.UserID, task, in.Rate)
	charge := billing.ComputeAmount(task, task.ActualHours, entry.Hours, resolution.HourlyRate)
	charge.Apply(&entry, resolution.Source)

	if err := s.repo.CreateTimeEntry(ctx, &entry); err != nil {
		return nil, fmt.Errorf("failed to save time entry: %w", err)
	}

	_ = s.audit.Log(domain.ActionTimeLogged, actorOf(in.UserID), map[string]interface{}{
		"entry_id":    entry.ID,
		"task_id":     entry.TaskID,
		"hours":       entry.Hours.String(),
		"amount":      entry.Amount.String(),
		"rate_source": string(resolution.Source),
	})

	return &LoggedEntry{Entry: entry, Rate: resolution, Charge: charge}, nil
}

// EditTimeEntryInput changes an entry. Nil fields are left as stored.
type EditTimeEntryInput struct {
	ID          string
	UserID      string
	Hours       *decimal.Decimal
	Date        *string
	Description *string
	Billable    *bool
	Rate        *decimal.Decimal
	// ResolveRate re-runs rate resolution instead of keeping the stored rate.
	ResolveRate bool
}

// EditTimeEntry re-prices an entry from scratch: its own hours are measured
// against the ceiling after every other entry on the task.
func (s *BillingService) EditTimeEntry(ctx context.Context, in EditTimeEntryInput) (*LoggedEntry, error) {
	entry, err := s.repo.GetTimeEntry(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	if in.Hours != nil {
		hours := billing.RoundHours(*in.Hours)
		if !hours.IsPositive() {
			return nil, billing.NewValidationError("hours", "must be positive")
		}
		entry.Hours = hours
	}
	if in.Date != nil {
		date, err := billing.ParseDate("date", *in.Date)
		if err != nil {
			return nil, err
		}
		entry.Date = date
	}
	if in.Description != nil {
		entry.Description = *in.Description
	}
	if in.Billable != nil {
		entry.IsBillable = *in.Billable
	}
	if in.Rate != nil && in.Rate.IsNegative() {
		return nil, billing.NewValidationError("hourly_rate", "must be >= 0")
	}

	task, err := s.repo.GetTask(ctx, entry.TaskID)
	if err != nil {
		return nil, err
	}
	siblings, err := s.repo.ListTimeEntriesByTask(ctx, entry.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task entries: %w", err)
	}
	prior := decimal.Zero
	for _, e := range siblings {
		if e.ID != entry.ID {
			prior = prior.Add(e.Hours)
		}
	}

	// Without a new rate the entry keeps the rate and source it was priced with.
	resolution := entry.StoredRate()
	if in.Rate != nil || in.ResolveRate {
		resolution = s.rateFor(ctx, entry.UserID, task, in.Rate)
	}

	charge := billing.ComputeAmount(task, prior, entry.Hours, resolution.HourlyRate)
	charge.Apply(entry, resolution.Source)

	if err := s.repo.UpdateTimeEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update time entry: %w", err)
	}

	_ = s.audit.Log(domain.ActionTimeEdited, actorOf(in.UserID), map[string]interface{}{
		"entry_id":    entry.ID,
		"task_id":     entry.TaskID,
		"hours":       entry.Hours.String(),
		"amount":      entry.Amount.String(),
		"rate_source": string(resolution.Source),
	})

	return &LoggedEntry{Entry: *entry, Rate: resolution, Charge: charge}, nil
}

// DeleteTimeEntry removes an entry and resums its task.
func (s *BillingService) DeleteTimeEntry(ctx context.Context, userID, id string) error {
	entry, err := s.repo.GetTimeEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTimeEntry(ctx, id); err != nil {
		return fmt.Errorf("failed to delete time entry: %w", err)
	}

	_ = s.audit.Log(domain.ActionTimeDeleted, actorOf(userID), map[string]interface{}{
		"entry_id": id,
		"task_id":  entry.TaskID,
	})
	return nil
}

// ListTimeEntries returns a task's entries.
func (s *BillingService) ListTimeEntries(ctx context.Context, taskID string) ([]billing.TimeEntry, error) {
	if _, err := s.repo.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.repo.ListTimeEntriesByTask(ctx, taskID)
}

// RecalculateActualHours resums a task's actual_hours. Failures are logged
// and swallowed; the entries are the source of truth.
func (s *BillingService) RecalculateActualHours(ctx context.Context, taskID string) {
	total, err := s.repo.RecalculateActualHours(ctx, taskID)
	if err != nil {
		s.logger.Warn("actual hours recalculation failed", "task_id", taskID, "error", err)
		return
	}
	s.logger.Debug("actual hours recalculated", "task_id", taskID, "actual_hours", total.String())
}

// BudgetStatus reports how much of a task's ceiling is consumed.
func (s *BillingService) BudgetStatus(ctx context.Context, userID, taskID string) (*billing.BudgetStatus, billing.RateResolution, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, billing.RateResolution{}, err
	}
	resolution := s.rateFor(ctx, userID, task, nil)
	ceiling := billing.CeilingHours(task, resolution.HourlyRate)
	return billing.NewBudgetStatus(ceiling, task.ActualHours), resolution, nil
}

func (s *BillingService) rateFor(ctx context.Context, userID string, task *billing.Task, explicit *decimal.Decimal) billing.RateResolution {
	if explicit != nil {
		return billing.RateResolution{HourlyRate: *explicit, Source: billing.SourceExplicit}
	}
	return s.resolver.ResolveQuery(ctx, billing.RateQuery{
		UserID:    userID,
		ProjectID: task.ProjectID,
		Task:      task,
		Today:     billing.DateOf(s.now()),
	})
}

const timeEntryImportSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["task_id", "hours", "date"],
    "properties": {
      "task_id": { "type": "string", "minLength": 1 },
      "hours": { "type": ["number", "string"] },
      "date": { "type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$" },
      "description": { "type": "string" },
      "billable": { "type": "boolean" },
      "hourly_rate": { "type": ["number", "string"] }
    },
    "additionalProperties": false
  }
}`

var timeEntryImportSchema = gojsonschema.NewStringLoader(timeEntryImportSchemaJSON)

type importRecord struct {
	TaskID      string           `json:"task_id"`
	Hours       decimal.Decimal  `json:"hours"`
	Date        string           `json:"date"`
	Description string           `json:"description"`
	Billable    *bool            `json:"billable"`
	HourlyRate  *decimal.Decimal `json:"hourly_rate"`
}

// ImportResult reports a bulk import. Failed rows do not stop the import.
type ImportResult struct {
	Logged []LoggedEntry `json:"logged"`
	Failed []ImportError `json:"failed"`
}

// ImportError is a row that could not be logged.
type ImportError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// ImportTimeEntries logs a JSON array of time records for userID.
func (s *BillingService) ImportTimeEntries(ctx context.Context, userID string, data []byte) (*ImportResult, error) {
	result, err := gojsonschema.Validate(timeEntryImportSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, billing.NewValidationError("import", fmt.Sprintf("unreadable document: %v", err))
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, billing.NewValidationError("import", strings.Join(issues, "; "))
	}

	var records []importRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, billing.NewValidationError("import", err.Error())
	}

	out := &ImportResult{Logged: []LoggedEntry{}, Failed: []ImportError{}}
	for i, rec := range records {
		logged, err := s.LogTime(ctx, LogTimeInput{
			TaskID:      rec.TaskID,
			UserID:      userID,
			Hours:       rec.Hours,
			Date:        rec.Date,
			Description: rec.Description,
			NonBillable: rec.Billable != nil && !*rec.Billable,
			Rate:        rec.HourlyRate,
		})
		if err != nil {
			out.Failed = append(out.Failed, ImportError{Index: i, Error: err.Error()})
			continue
		}
		out.Logged = append(out.Logged, *logged)
	}

	s.logger.Info("time entries imported", "logged", len(out.Logged), "failed", len(out.Failed))
	return out, nil
}

func actorOf(userID string) string {
	if userID == "" {
		return "system"
	}
	return userID
}
