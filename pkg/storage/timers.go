package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/reneee98/layers/pkg/domain/billing"
)

const timerColumns = `id, user_id, task_id, started_at, stopped_at`

// CreateTimer inserts a running timer. It fails with ErrTimerRunning when the
// user already has an open one.
func (r *Repository) CreateTimer(ctx context.Context, timer *billing.Timer) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireTaskTx(ctx, tx, timer.TaskID); err != nil {
			return err
		}
		var open int
		err := tx.GetContext(ctx, &open, tx.Rebind(`SELECT COUNT(*) FROM timers WHERE user_id = ? AND stopped_at IS NULL`), timer.UserID)
		if err != nil {
			return fmt.Errorf("failed to check open timers: %w", err)
		}
		if open > 0 {
			return billing.ErrTimerRunning
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO timers (`+timerColumns+`) VALUES (?, ?, ?, ?, ?)`),
			timer.ID, timer.UserID, timer.TaskID, formatTime(timer.StartedAt), nullTime(timer.StoppedAt))
		if err != nil {
			return fmt.Errorf("failed to create timer %s: %w", timer.ID, err)
		}
		return nil
	})
}

func (r *Repository) GetTimer(ctx context.Context, id string) (*billing.Timer, error) {
	row, err := getOne[timerRow](ctx, r, `SELECT `+timerColumns+` FROM timers WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read timer %s: %w", id, err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s", billing.ErrTimerNotFound, id)
	}
	return row.toDomain()
}

func (r *Repository) GetOpenTimer(ctx context.Context, userID string) (*billing.Timer, error) {
	row, err := getOne[timerRow](ctx, r, `
		SELECT `+timerColumns+` FROM timers
		WHERE user_id = ? AND stopped_at IS NULL
		ORDER BY started_at DESC LIMIT 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read open timer: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: no open timer for %s", billing.ErrTimerNotFound, userID)
	}
	return row.toDomain()
}

// FinalizeTimer is the compare-and-set that makes a stop happen exactly once.
// The conditional update, the entry insert and the actual_hours resum commit
// together; a caller that loses the race gets false and nothing is written.
func (r *Repository) FinalizeTimer(ctx context.Context, timerID string, stoppedAt time.Time, entry *billing.TimeEntry) (bool, error) {
	won := false
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE timers SET stopped_at = ? WHERE id = ? AND stopped_at IS NULL`),
			formatTime(stoppedAt), timerID)
		if err != nil {
			return fmt.Errorf("failed to stop timer %s: %w", timerID, err)
		}
		if affected(res) == 0 {
			var n int
			if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM timers WHERE id = ?`), timerID); err != nil {
				return fmt.Errorf("failed to read timer %s: %w", timerID, err)
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", billing.ErrTimerNotFound, timerID)
			}
			return nil
		}

		if entry != nil {
			if err := insertTimeEntryTx(ctx, tx, entry); err != nil {
				return err
			}
			if _, err := resumTaskTx(ctx, tx, entry.TaskID); err != nil {
				return err
			}
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}
