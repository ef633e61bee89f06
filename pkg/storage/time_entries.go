package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/reneee98/layers/pkg/domain/billing"
)

const timeEntryColumns = `id, task_id, project_id, user_id, timer_id, hours, entry_date, start_time, end_time, hourly_rate, rate_source, amount, is_billable, description, created_at`

const insertTimeEntry = `INSERT INTO time_entries (` + timeEntryColumns + `)
	VALUES (:id, :task_id, :project_id, :user_id, :timer_id, :hours, :entry_date, :start_time, :end_time, :hourly_rate, :rate_source, :amount, :is_billable, :description, :created_at)`

func (r *Repository) GetTimeEntry(ctx context.Context, id string) (*billing.TimeEntry, error) {
	return r.getTimeEntryWhere(ctx, "id", id, billing.ErrTimeEntryNotFound)
}

func (r *Repository) GetTimeEntryByTimer(ctx context.Context, timerID string) (*billing.TimeEntry, error) {
	return r.getTimeEntryWhere(ctx, "timer_id", timerID, billing.ErrTimeEntryNotFound)
}

func (r *Repository) getTimeEntryWhere(ctx context.Context, column, value string, notFound error) (*billing.TimeEntry, error) {
	row, err := getOne[timeEntryRow](ctx, r, `SELECT `+timeEntryColumns+` FROM time_entries WHERE `+column+` = ?`, value)
	if err != nil {
		return nil, fmt.Errorf("failed to read time entry: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s", notFound, value)
	}
	e, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) ListTimeEntriesByTask(ctx context.Context, taskID string) ([]billing.TimeEntry, error) {
	return r.listTimeEntries(ctx, `task_id = ?`, taskID)
}

func (r *Repository) ListTimeEntriesByProject(ctx context.Context, projectID string) ([]billing.TimeEntry, error) {
	return r.listTimeEntries(ctx, `project_id = ?`, projectID)
}

func (r *Repository) listTimeEntries(ctx context.Context, where string, arg string) ([]billing.TimeEntry, error) {
	rows, err := selectAll[timeEntryRow](ctx, r,
		`SELECT `+timeEntryColumns+` FROM time_entries WHERE `+where+` ORDER BY entry_date, created_at, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	entries := make([]billing.TimeEntry, 0, len(rows))
	for _, row := range rows {
		e, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// CreateTimeEntry inserts the entry and resums its task's actual_hours atomically.
func (r *Repository) CreateTimeEntry(ctx context.Context, entry *billing.TimeEntry) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireTaskTx(ctx, tx, entry.TaskID); err != nil {
			return err
		}
		if err := insertTimeEntryTx(ctx, tx, entry); err != nil {
			return err
		}
		_, err := resumTaskTx(ctx, tx, entry.TaskID)
		return err
	})
}

// UpdateTimeEntry rewrites the entry and resums the affected tasks.
func (r *Repository) UpdateTimeEntry(ctx context.Context, entry *billing.TimeEntry) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var oldTaskID string
		err := tx.GetContext(ctx, &oldTaskID, tx.Rebind(`SELECT task_id FROM time_entries WHERE id = ?`), entry.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", billing.ErrTimeEntryNotFound, entry.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to read time entry: %w", err)
		}
		if entry.TaskID != oldTaskID {
			if err := requireTaskTx(ctx, tx, entry.TaskID); err != nil {
				return err
			}
		}

		row := newTimeEntryRow(entry)
		_, err = tx.NamedExecContext(ctx, `
			UPDATE time_entries SET
				task_id = :task_id, project_id = :project_id, user_id = :user_id,
				hours = :hours, entry_date = :entry_date, start_time = :start_time, end_time = :end_time,
				hourly_rate = :hourly_rate, rate_source = :rate_source, amount = :amount, is_billable = :is_billable, description = :description
			WHERE id = :id`, row)
		if err != nil {
			return fmt.Errorf("failed to update time entry %s: %w", entry.ID, err)
		}

		if _, err := resumTaskTx(ctx, tx, entry.TaskID); err != nil {
			return err
		}
		if oldTaskID != entry.TaskID {
			if _, err := resumTaskTx(ctx, tx, oldTaskID); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTimeEntry removes the entry and resums its task.
func (r *Repository) DeleteTimeEntry(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var taskID string
		err := tx.GetContext(ctx, &taskID, tx.Rebind(`SELECT task_id FROM time_entries WHERE id = ?`), id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", billing.ErrTimeEntryNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to read time entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM time_entries WHERE id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete time entry %s: %w", id, err)
		}
		_, err = resumTaskTx(ctx, tx, taskID)
		return err
	})
}

// RecalculateActualHours sets tasks.actual_hours to the sum of the task's entries.
func (r *Repository) RecalculateActualHours(ctx context.Context, taskID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireTaskTx(ctx, tx, taskID); err != nil {
			return err
		}
		var err error
		total, err = resumTaskTx(ctx, tx, taskID)
		return err
	})
	return total, err
}

func requireTaskTx(ctx context.Context, tx *sqlx.Tx, taskID string) error {
	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM tasks WHERE id = ?`), taskID); err != nil {
		return fmt.Errorf("failed to read task %s: %w", taskID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", billing.ErrTaskNotFound, taskID)
	}
	return nil
}

func insertTimeEntryTx(ctx context.Context, tx *sqlx.Tx, entry *billing.TimeEntry) error {
	if _, err := tx.NamedExecContext(ctx, insertTimeEntry, newTimeEntryRow(entry)); err != nil {
		return fmt.Errorf("failed to insert time entry %s: %w", entry.ID, err)
	}
	return nil
}

// resumTaskTx recomputes actual_hours from the entries. Hours are stored as
// decimal text, so the sum is done here rather than in SQL.
func resumTaskTx(ctx context.Context, tx *sqlx.Tx, taskID string) (decimal.Decimal, error) {
	var hours []string
	if err := tx.SelectContext(ctx, &hours, tx.Rebind(`SELECT hours FROM time_entries WHERE task_id = ?`), taskID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum hours for task %s: %w", taskID, err)
	}
	total := decimal.Zero
	for _, h := range hours {
		d, err := parseDecimal(h)
		if err != nil {
			return decimal.Zero, fmt.Errorf("task %s entry hours: %w", taskID, err)
		}
		total = total.Add(d)
	}
	total = billing.RoundHours(total)
	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE tasks SET actual_hours = ? WHERE id = ?`), total.String(), taskID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update actual hours for task %s: %w", taskID, err)
	}
	return total, nil
}
