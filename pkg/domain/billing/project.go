package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskStatusDone marks a finished task; housekeeping leaves done tasks alone.
const TaskStatusDone = "done"

// Project is the reporting aggregate for tasks, time and costs.
type Project struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	HourlyRateCents *int64 `json:"hourly_rate_cents,omitempty"`
}

// ProjectMember assigns a user to a project, optionally with a member-specific rate.
type ProjectMember struct {
	ProjectID       string `json:"project_id"`
	UserID          string `json:"user_id"`
	HourlyRateCents *int64 `json:"hourly_rate_cents,omitempty"`
}

// Task carries the budget and estimate state used by the allocator.
// ActualHours is derived: the sum of the task's time entry hours.
type Task struct {
	ID              string           `json:"id"`
	ProjectID       string           `json:"project_id,omitempty"`
	Title           string           `json:"title"`
	Status          string           `json:"status"`
	BudgetCents     *int64           `json:"budget_cents,omitempty"`
	EstimatedHours  *decimal.Decimal `json:"estimated_hours,omitempty"`
	ActualHours     decimal.Decimal  `json:"actual_hours"`
	HourlyRateCents *int64           `json:"hourly_rate_cents,omitempty"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
}

// HasProject reports whether the task belongs to a project.
func (t *Task) HasProject() bool {
	return t.ProjectID != ""
}

// BudgetAmount returns the task budget in currency units, zero when unset.
func (t *Task) BudgetAmount() decimal.Decimal {
	return CentsToDecimal(t.BudgetCents)
}

// UserSettings holds account-level preferences relevant to billing.
type UserSettings struct {
	UserID                 string `json:"user_id"`
	DefaultHourlyRateCents *int64 `json:"default_hourly_rate_cents,omitempty"`
}
