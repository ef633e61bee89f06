package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reneee98/layers/pkg/domain/billing"
)

const timestampLayout = time.RFC3339Nano

type projectRow struct {
	ID              string        `db:"id"`
	Name            string        `db:"name"`
	HourlyRateCents sql.NullInt64 `db:"hourly_rate_cents"`
}

func (r projectRow) toDomain() *billing.Project {
	return &billing.Project{
		ID:              r.ID,
		Name:            r.Name,
		HourlyRateCents: centsPtr(r.HourlyRateCents),
	}
}

type memberRow struct {
	ProjectID       string        `db:"project_id"`
	UserID          string        `db:"user_id"`
	HourlyRateCents sql.NullInt64 `db:"hourly_rate_cents"`
}

type taskRow struct {
	ID              string         `db:"id"`
	ProjectID       sql.NullString `db:"project_id"`
	Title           string         `db:"title"`
	Status          string         `db:"status"`
	BudgetCents     sql.NullInt64  `db:"budget_cents"`
	EstimatedHours  sql.NullString `db:"estimated_hours"`
	ActualHours     string         `db:"actual_hours"`
	HourlyRateCents sql.NullInt64  `db:"hourly_rate_cents"`
	DueDate         sql.NullString `db:"due_date"`
}

func (r taskRow) toDomain() (*billing.Task, error) {
	actual, err := parseDecimal(r.ActualHours)
	if err != nil {
		return nil, fmt.Errorf("task %s actual_hours: %w", r.ID, err)
	}
	t := &billing.Task{
		ID:              r.ID,
		ProjectID:       r.ProjectID.String,
		Title:           r.Title,
		Status:          r.Status,
		BudgetCents:     centsPtr(r.BudgetCents),
		ActualHours:     actual,
		HourlyRateCents: centsPtr(r.HourlyRateCents),
	}
	if r.EstimatedHours.Valid {
		est, err := parseDecimal(r.EstimatedHours.String)
		if err != nil {
			return nil, fmt.Errorf("task %s estimated_hours: %w", r.ID, err)
		}
		t.EstimatedHours = &est
	}
	if t.DueDate, err = parseNullDate(r.DueDate); err != nil {
		return nil, fmt.Errorf("task %s due_date: %w", r.ID, err)
	}
	return t, nil
}

type timeEntryRow struct {
	ID          string         `db:"id"`
	TaskID      string         `db:"task_id"`
	ProjectID   sql.NullString `db:"project_id"`
	UserID      string         `db:"user_id"`
	TimerID     sql.NullString `db:"timer_id"`
	Hours       string         `db:"hours"`
	Date        string         `db:"entry_date"`
	StartTime   sql.NullString `db:"start_time"`
	EndTime     sql.NullString `db:"end_time"`
	HourlyRate  string         `db:"hourly_rate"`
	RateSource  string         `db:"rate_source"`
	Amount      string         `db:"amount"`
	IsBillable  int64          `db:"is_billable"`
	Description string         `db:"description"`
	CreatedAt   string         `db:"created_at"`
}

func newTimeEntryRow(e *billing.TimeEntry) timeEntryRow {
	return timeEntryRow{
		ID:          e.ID,
		TaskID:      e.TaskID,
		ProjectID:   nullString(e.ProjectID),
		UserID:      e.UserID,
		TimerID:     nullString(e.TimerID),
		Hours:       billing.RoundHours(e.Hours).String(),
		Date:        e.Date.Format(billing.DateLayout),
		StartTime:   nullTime(e.StartTime),
		EndTime:     nullTime(e.EndTime),
		HourlyRate:  e.HourlyRate.String(),
		RateSource:  string(e.RateSource),
		Amount:      billing.RoundAmount(e.Amount).String(),
		IsBillable:  boolInt(e.IsBillable),
		Description: e.Description,
		CreatedAt:   formatTime(e.CreatedAt),
	}
}

func (r timeEntryRow) toDomain() (billing.TimeEntry, error) {
	var (
		e   billing.TimeEntry
		err error
	)
	e.ID = r.ID
	e.TaskID = r.TaskID
	e.ProjectID = r.ProjectID.String
	e.UserID = r.UserID
	e.TimerID = r.TimerID.String
	e.RateSource = billing.RateSource(r.RateSource)
	e.IsBillable = r.IsBillable != 0
	e.Description = r.Description

	if e.Hours, err = parseDecimal(r.Hours); err != nil {
		return e, fmt.Errorf("time entry %s hours: %w", r.ID, err)
	}
	if e.HourlyRate, err = parseDecimal(r.HourlyRate); err != nil {
		return e, fmt.Errorf("time entry %s hourly_rate: %w", r.ID, err)
	}
	if e.Amount, err = parseDecimal(r.Amount); err != nil {
		return e, fmt.Errorf("time entry %s amount: %w", r.ID, err)
	}
	if e.Date, err = time.Parse(billing.DateLayout, r.Date); err != nil {
		return e, fmt.Errorf("time entry %s date: %w", r.ID, err)
	}
	if e.StartTime, err = parseNullTime(r.StartTime); err != nil {
		return e, fmt.Errorf("time entry %s start_time: %w", r.ID, err)
	}
	if e.EndTime, err = parseNullTime(r.EndTime); err != nil {
		return e, fmt.Errorf("time entry %s end_time: %w", r.ID, err)
	}
	if e.CreatedAt, err = time.Parse(timestampLayout, r.CreatedAt); err != nil {
		return e, fmt.Errorf("time entry %s created_at: %w", r.ID, err)
	}
	return e, nil
}

type costItemRow struct {
	ID          string         `db:"id"`
	ProjectID   string         `db:"project_id"`
	TaskID      sql.NullString `db:"task_id"`
	Description string         `db:"description"`
	Amount      string         `db:"amount"`
	IsBillable  int64          `db:"is_billable"`
	Date        string         `db:"item_date"`
}

func (r costItemRow) toDomain() (billing.CostItem, error) {
	amount, err := parseDecimal(r.Amount)
	if err != nil {
		return billing.CostItem{}, fmt.Errorf("cost item %s amount: %w", r.ID, err)
	}
	date, err := time.Parse(billing.DateLayout, r.Date)
	if err != nil {
		return billing.CostItem{}, fmt.Errorf("cost item %s date: %w", r.ID, err)
	}
	return billing.CostItem{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		TaskID:      r.TaskID.String,
		Description: r.Description,
		Amount:      amount,
		IsBillable:  r.IsBillable != 0,
		Date:        date,
	}, nil
}

type rateRuleRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	UserID          sql.NullString `db:"user_id"`
	ProjectID       sql.NullString `db:"project_id"`
	HourlyRateCents int64          `db:"hourly_rate_cents"`
	ValidFrom       string         `db:"valid_from"`
	ValidTo         sql.NullString `db:"valid_to"`
	IsDefault       int64          `db:"is_default"`
}

func (r rateRuleRow) toDomain() (billing.RateRule, error) {
	from, err := time.Parse(billing.DateLayout, r.ValidFrom)
	if err != nil {
		return billing.RateRule{}, fmt.Errorf("rate rule %s valid_from: %w", r.ID, err)
	}
	to, err := parseNullDate(r.ValidTo)
	if err != nil {
		return billing.RateRule{}, fmt.Errorf("rate rule %s valid_to: %w", r.ID, err)
	}
	return billing.RateRule{
		ID:              r.ID,
		Name:            r.Name,
		UserID:          r.UserID.String,
		ProjectID:       r.ProjectID.String,
		HourlyRateCents: r.HourlyRateCents,
		ValidFrom:       from,
		ValidTo:         to,
		IsDefault:       r.IsDefault != 0,
	}, nil
}

type timerRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	TaskID    string         `db:"task_id"`
	StartedAt string         `db:"started_at"`
	StoppedAt sql.NullString `db:"stopped_at"`
}

func (r timerRow) toDomain() (*billing.Timer, error) {
	started, err := time.Parse(timestampLayout, r.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("timer %s started_at: %w", r.ID, err)
	}
	stopped, err := parseNullTime(r.StoppedAt)
	if err != nil {
		return nil, fmt.Errorf("timer %s stopped_at: %w", r.ID, err)
	}
	return &billing.Timer{
		ID:        r.ID,
		UserID:    r.UserID,
		TaskID:    r.TaskID,
		StartedAt: started,
		StoppedAt: stopped,
	}, nil
}

type auditRow struct {
	ID         string `db:"id"`
	Seq        int64  `db:"seq"`
	RecordedAt string `db:"recorded_at"`
	Action     string `db:"action"`
	Actor      string `db:"actor"`
	Metadata   string `db:"metadata"`
	PrevHash   string `db:"prev_hash"`
	Hash       string `db:"hash"`
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func centsPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	c := v.Int64
	return &c
}

func nullCents(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(billing.DateLayout), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseNullDate(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	d, err := time.Parse(billing.DateLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timestampLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
