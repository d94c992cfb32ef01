package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/shift-calendar/pkg/db"
)

const shiftWithMemberQuery = `
	SELECT s.id::text, s.member_id::text, s.shift_date, s.created_at,
	       m.id::text, m.name, m.email, m.phone, m.color, m.created_at
	FROM shifts s
	JOIN members m ON m.id = s.member_id
`

func scanShiftWithMember(row pgx.Row) (db.ShiftWithMember, error) {
	var s db.ShiftWithMember
	var shiftDate time.Time
	var email, phone *string
	err := row.Scan(
		&s.ID, &s.MemberID, &shiftDate, &s.CreatedAt,
		&s.Member.ID, &s.Member.Name, &email, &phone, &s.Member.Color, &s.Member.CreatedAt,
	)
	if err != nil {
		return db.ShiftWithMember{}, err
	}
	s.ShiftDate = shiftDate.Format("2006-01-02")
	s.Member.Email = deref(email)
	s.Member.Phone = deref(phone)
	return s, nil
}

// ListShifts retrieves all shifts joined with their member, ordered by date
func (d *DB) ListShifts(ctx context.Context) ([]db.ShiftWithMember, error) {
	rows, err := d.pool.Query(ctx, shiftWithMemberQuery+` ORDER BY s.shift_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []db.ShiftWithMember
	for rows.Next() {
		s, err := scanShiftWithMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}

	return shifts, nil
}

// GetShiftByDate retrieves the shift for a date, or nil when the date is free
func (d *DB) GetShiftByDate(ctx context.Context, date string) (*db.ShiftWithMember, error) {
	row := d.pool.QueryRow(ctx, shiftWithMemberQuery+` WHERE s.shift_date = $1`, date)
	s, err := scanShiftWithMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return &s, nil
}

// ApplyShiftMutation applies a transition in a single transaction: the
// current shift row for the date is locked and compared with the caller's
// expectation, then deleted and/or replaced, and the history entry appended.
// Change notifications fire when the transaction commits.
func (d *DB) ApplyShiftMutation(ctx context.Context, mutation db.ShiftMutation) (*db.MutationResult, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentID string
	err = tx.QueryRow(ctx, `
		SELECT id::text FROM shifts WHERE shift_date = $1 FOR UPDATE
	`, mutation.ShiftDate).Scan(&currentID)
	hasCurrent := true
	if errors.Is(err, pgx.ErrNoRows) {
		hasCurrent = false
	} else if err != nil {
		return nil, fmt.Errorf("failed to lock current shift: %w", err)
	}

	switch {
	case mutation.ExpectedShiftID == "" && hasCurrent:
		return nil, db.ErrDateTaken
	case mutation.ExpectedShiftID != "" && !hasCurrent:
		return nil, db.ErrShiftNotFound
	case mutation.ExpectedShiftID != "" && currentID != mutation.ExpectedShiftID:
		return nil, db.ErrShiftChanged
	}

	if hasCurrent {
		if _, err := tx.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, currentID); err != nil {
			return nil, fmt.Errorf("failed to delete shift: %w", err)
		}
	}

	result := &db.MutationResult{}
	if mutation.NewMemberID != "" {
		shift := db.Shift{
			ID:        uuid.New().String(),
			MemberID:  mutation.NewMemberID,
			ShiftDate: mutation.ShiftDate,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO shifts (id, member_id, shift_date)
			VALUES ($1, $2, $3)
			RETURNING created_at
		`, shift.ID, shift.MemberID, shift.ShiftDate).Scan(&shift.CreatedAt)
		switch pgErrorCode(err) {
		case "":
		case codeUniqueViolation:
			return nil, db.ErrDateTaken
		case codeForeignKeyViolation:
			return nil, db.ErrMemberNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert shift: %w", err)
		}
		result.Shift = &shift
	}

	entry := mutation.History
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.ShiftDate = mutation.ShiftDate
	err = tx.QueryRow(ctx, `
		INSERT INTO history (id, member_id, member_name, shift_date, action, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, entry.ID, nullable(entry.MemberID), entry.MemberName, entry.ShiftDate, string(entry.Action), nullable(entry.Reason)).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert history: %w", err)
	}
	result.History = entry

	if err := tx.Commit(ctx); err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return nil, db.ErrDateTaken
		}
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}
