package repository

import (
	"context"

	"github.com/and161185/speedcube/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SolveRepository stores timed solves per user.
type SolveRepository interface {
	// Create appends a solve for the user and returns the stored row.
	Create(ctx context.Context, userID uuid.UUID, s model.NewSolve) (model.Solve, error)
	// ListByUser returns the user's solves, oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Solve, error)
}
