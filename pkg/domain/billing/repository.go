package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RateLookup is the read side used by the rate resolver. Missing rows are
// reported with errors wrapping ErrNotFound.
type RateLookup interface {
	GetTask(ctx context.Context, id string) (*Task, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	GetProjectMember(ctx context.Context, projectID, userID string) (*ProjectMember, error)
	// ListActiveRateRules returns rules matching userID or projectID that are
	// effective on day, ordered by is_default desc, valid_from desc.
	ListActiveRateRules(ctx context.Context, userID, projectID string, day time.Time) ([]RateRule, error)
	GetUserSettings(ctx context.Context, userID string) (*UserSettings, error)
}

// TimeEntryRepository persists time entries. Every write resums the task's
// actual_hours in the same unit of work.
type TimeEntryRepository interface {
	GetTimeEntry(ctx context.Context, id string) (*TimeEntry, error)
	GetTimeEntryByTimer(ctx context.Context, timerID string) (*TimeEntry, error)
	ListTimeEntriesByTask(ctx context.Context, taskID string) ([]TimeEntry, error)
	ListTimeEntriesByProject(ctx context.Context, projectID string) ([]TimeEntry, error)
	CreateTimeEntry(ctx context.Context, entry *TimeEntry) error
	UpdateTimeEntry(ctx context.Context, entry *TimeEntry) error
	DeleteTimeEntry(ctx context.Context, id string) error
	RecalculateActualHours(ctx context.Context, taskID string) (decimal.Decimal, error)
}

// TimerRepository persists timers.
type TimerRepository interface {
	CreateTimer(ctx context.Context, timer *Timer) error
	GetTimer(ctx context.Context, id string) (*Timer, error)
	GetOpenTimer(ctx context.Context, userID string) (*Timer, error)
	// FinalizeTimer sets stopped_at only while it is still null and, when
	// entry is non-nil, inserts it in the same transaction. It returns false
	// without writing anything if another caller stopped the timer first.
	FinalizeTimer(ctx context.Context, timerID string, stoppedAt time.Time, entry *TimeEntry) (bool, error)
}

// FinanceReader is the read side of the finance aggregator.
type FinanceReader interface {
	GetTask(ctx context.Context, id string) (*Task, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	ListTasksByProject(ctx context.Context, projectID string) ([]Task, error)
	ListTimeEntriesByTask(ctx context.Context, taskID string) ([]TimeEntry, error)
	ListTimeEntriesByProject(ctx context.Context, projectID string) ([]TimeEntry, error)
	ListCostItemsByProject(ctx context.Context, projectID string) ([]CostItem, error)
	ListCostItemsByTask(ctx context.Context, taskID string) ([]CostItem, error)
}

// CatalogRepository administers the rows the engine reads from.
type CatalogRepository interface {
	CreateProject(ctx context.Context, p *Project) error
	SetProjectRate(ctx context.Context, projectID string, cents *int64) error
	SetProjectMember(ctx context.Context, m *ProjectMember) error
	CreateTask(ctx context.Context, t *Task) error
	SetTaskRate(ctx context.Context, taskID string, cents *int64) error
	SaveUserSettings(ctx context.Context, s *UserSettings) error
	SaveRateRule(ctx context.Context, r *RateRule) error
	ListRateRules(ctx context.Context) ([]RateRule, error)
	CreateCostItem(ctx context.Context, c *CostItem) error
	// RollOverdueTasks moves the due date of unfinished tasks due before today to today.
	RollOverdueTasks(ctx context.Context, today time.Time) (int64, error)
}

// Repository is the full billing persistence port.
type Repository interface {
	RateLookup
	TimeEntryRepository
	TimerRepository
	FinanceReader
	CatalogRepository
}
