package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/speedcube/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SolveRepo implements SolveRepository using PostgreSQL.
type SolveRepo struct{ db *DB }

// NewSolveRepo constructs a solve repository.
func NewSolveRepo(db *DB) *SolveRepo { return &SolveRepo{db: db} }

// Create inserts a solve and returns it with its generated id and timestamp.
func (r *SolveRepo) Create(ctx context.Context, userID uuid.UUID, s model.NewSolve) (model.Solve, error) {
	const q = `
INSERT INTO solves (user_id, time_ms, scramble)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	out := model.Solve{UserID: userID, TimeMs: s.TimeMs, Scramble: s.Scramble}
	if err := r.db.Pool.QueryRow(ctx, q, userID, s.TimeMs, s.Scramble).Scan(&out.ID, &out.CreatedAt); err != nil {
		return model.Solve{}, fmt.Errorf("insert solve: %w", err)
	}
	return out, nil
}

// ListByUser returns all solves of a user ordered by insertion.
func (r *SolveRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Solve, error) {
	const q = `
SELECT id, user_id, time_ms, scramble, created_at
FROM solves
WHERE user_id=$1
ORDER BY id ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list solves: %w", err)
	}
	defer rows.Close()

	out := make([]model.Solve, 0)
	for rows.Next() {
		var s model.Solve
		if err := rows.Scan(&s.ID, &s.UserID, &s.TimeMs, &s.Scramble, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan solve: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list solves: %w", err)
	}
	return out, nil
}
