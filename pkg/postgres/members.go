package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/shift-calendar/pkg/db"
)

const memberColumns = `id::text, name, email, phone, color, created_at`

func scanMember(row pgx.Row) (db.Member, error) {
	var m db.Member
	var email, phone *string
	if err := row.Scan(&m.ID, &m.Name, &email, &phone, &m.Color, &m.CreatedAt); err != nil {
		return db.Member{}, err
	}
	m.Email = deref(email)
	m.Phone = deref(phone)
	return m, nil
}

// ListMembers retrieves all members ordered by name
func (d *DB) ListMembers(ctx context.Context) ([]db.Member, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []db.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

// GetMember retrieves a single member
func (d *DB) GetMember(ctx context.Context, id string) (*db.Member, error) {
	if uuid.Validate(id) != nil {
		return nil, db.ErrMemberNotFound
	}

	row := d.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	m, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &m, nil
}

// InsertMember inserts a new member record
func (d *DB) InsertMember(ctx context.Context, member *db.Member) error {
	if member.ID == "" {
		member.ID = uuid.New().String()
	}

	err := d.pool.QueryRow(ctx, `
		INSERT INTO members (id, name, email, phone, color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, member.ID, member.Name, nullable(member.Email), nullable(member.Phone), member.Color).Scan(&member.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// UpdateMember updates a member's editable fields
func (d *DB) UpdateMember(ctx context.Context, member *db.Member) error {
	if uuid.Validate(member.ID) != nil {
		return db.ErrMemberNotFound
	}

	err := d.pool.QueryRow(ctx, `
		UPDATE members SET name = $2, email = $3, phone = $4, color = $5
		WHERE id = $1
		RETURNING created_at
	`, member.ID, member.Name, nullable(member.Email), nullable(member.Phone), member.Color).Scan(&member.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return nil
}

// DeleteMember deletes a member. Shifts cascade and history member ids are
// nulled by the schema; the cascaded shift count is returned.
func (d *DB) DeleteMember(ctx context.Context, id string) (int, error) {
	if uuid.Validate(id) != nil {
		return 0, db.ErrMemberNotFound
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var shiftCount int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM shifts WHERE member_id = $1`, id).Scan(&shiftCount); err != nil {
		return 0, fmt.Errorf("failed to count member shifts: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, db.ErrMemberNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return shiftCount, nil
}
