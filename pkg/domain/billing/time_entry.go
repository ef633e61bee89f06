package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for persistence and reporting.
const DateLayout = "2006-01-02"

// ParseDate parses a calendar date, rejecting malformed input as a ValidationError.
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, NewValidationError(field, "date is required")
	}
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, NewValidationError(field, fmt.Sprintf("malformed date %q, expected YYYY-MM-DD", value))
	}
	return d, nil
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TimeEntry is a finalized unit of tracked work. HourlyRate, RateSource and
// Amount are snapshots taken at write time.
type TimeEntry struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"task_id"`
	ProjectID   string          `json:"project_id,omitempty"`
	UserID      string          `json:"user_id"`
	TimerID     string          `json:"timer_id,omitempty"`
	Hours       decimal.Decimal `json:"hours"`
	Date        time.Time       `json:"date"`
	StartTime   *time.Time      `json:"start_time,omitempty"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	RateSource  RateSource      `json:"rate_source"`
	Amount      decimal.Decimal `json:"amount"`
	IsBillable  bool            `json:"is_billable"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// StoredRate returns the rate snapshot together with the source it was
// resolved from when the entry was priced.
func (e *TimeEntry) StoredRate() RateResolution {
	return RateResolution{HourlyRate: e.HourlyRate, Source: e.RateSource}
}

// NewTimeEntry creates a validated TimeEntry with hours rounded to the persisted precision.
func NewTimeEntry(id, taskID, userID string, hours decimal.Decimal, date time.Time, createdAt time.Time) (TimeEntry, error) {
	if id == "" {
		return TimeEntry{}, NewValidationError("id", "must not be empty")
	}
	if taskID == "" {
		return TimeEntry{}, NewValidationError("task_id", "must not be empty")
	}
	hours = RoundHours(hours)
	if !hours.IsPositive() {
		return TimeEntry{}, NewValidationError("hours", "must be positive")
	}
	if date.IsZero() {
		return TimeEntry{}, NewValidationError("date", "date is required")
	}
	return TimeEntry{
		ID:         id,
		TaskID:     taskID,
		UserID:     userID,
		Hours:      hours,
		Date:       DateOf(date),
		IsBillable: true,
		CreatedAt:  createdAt,
	}, nil
}

// CostItem is a non-labor expense booked against a project, optionally a task.
type CostItem struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	TaskID      string          `json:"task_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	IsBillable  bool            `json:"is_billable"`
	Date        time.Time       `json:"date"`
}

// SumHours returns the total hours over entries.
func SumHours(entries []TimeEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours)
	}
	return total
}
