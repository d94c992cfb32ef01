package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/shift-calendar/pkg/db"
)

const historyColumns = `id::text, member_id::text, member_name, shift_date, action, reason, created_at`

func scanHistoryEntries(rows pgx.Rows) ([]db.HistoryEntry, error) {
	defer rows.Close()

	var entries []db.HistoryEntry
	for rows.Next() {
		var e db.HistoryEntry
		var memberID, reason *string
		var shiftDate time.Time
		var action string
		if err := rows.Scan(&e.ID, &memberID, &e.MemberName, &shiftDate, &action, &reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.MemberID = deref(memberID)
		e.Reason = deref(reason)
		e.ShiftDate = shiftDate.Format("2006-01-02")
		e.Action = db.Action(action)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}

// ListHistory retrieves the most recent history entries, newest first
func (d *DB) ListHistory(ctx context.Context, limit int) ([]db.HistoryEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := d.pool.Query(ctx, `
		SELECT `+historyColumns+`
		FROM history
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanHistoryEntries(rows)
}

// ListHistoryForDate retrieves every history entry for a date, oldest first
func (d *DB) ListHistoryForDate(ctx context.Context, date string) ([]db.HistoryEntry, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+historyColumns+`
		FROM history
		WHERE shift_date = $1
		ORDER BY created_at, id
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", date, err)
	}
	return scanHistoryEntries(rows)
}
