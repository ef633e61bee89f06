package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/reneee98/layers/pkg/domain"
)

// RecordEvent appends an event to the audit trail, chaining it to the
// previous event's hash inside the same transaction.
func (r *Repository) RecordEvent(ctx context.Context, event domain.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Timestamp = event.Timestamp.UTC()

	metadata := []byte("{}")
	if len(event.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(event.Metadata); err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var last struct {
			Seq  int64  `db:"seq"`
			Hash string `db:"hash"`
		}
		err := tx.GetContext(ctx, &last, `SELECT seq, hash FROM audit_events ORDER BY seq DESC LIMIT 1`)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read last audit event: %w", err)
		}

		event.Seal(last.Hash)

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO audit_events (id, seq, recorded_at, action, actor, metadata, prev_hash, hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			event.ID, last.Seq+1, formatTime(event.Timestamp), event.Action, event.Actor,
			string(metadata), event.PrevHash, event.Hash)
		if err != nil {
			return fmt.Errorf("write audit event: %w", err)
		}
		return nil
	})
}

// LoadEvents returns the audit trail in append order.
func (r *Repository) LoadEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := selectAll[auditRow](ctx, r,
		`SELECT id, seq, recorded_at, action, actor, metadata, prev_hash, hash FROM audit_events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("load audit events: %w", err)
	}

	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse(timestampLayout, row.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("audit event %s timestamp: %w", row.ID, err)
		}
		var metadata map[string]interface{}
		if row.Metadata != "" && row.Metadata != "{}" {
			if err := json.Unmarshal([]byte(row.Metadata), &metadata); err != nil {
				return nil, fmt.Errorf("audit event %s metadata: %w", row.ID, err)
			}
		}
		events = append(events, domain.Event{
			ID:        row.ID,
			Timestamp: ts,
			Action:    row.Action,
			Actor:     row.Actor,
			Metadata:  metadata,
			PrevHash:  row.PrevHash,
			Hash:      row.Hash,
		})
	}
	return events, nil
}
