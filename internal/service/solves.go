package service

import (
	"context"
	"fmt"

	"github.com/and161185/speedcube/internal/errs"
	"github.com/and161185/speedcube/internal/model"
	"github.com/and161185/speedcube/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// SolveService records and lists timed solves.
type SolveService interface {
	Record(ctx context.Context, userID uuid.UUID, s model.NewSolve) (model.Solve, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.Solve, error)
}

// MaxScrambleLen bounds stored scramble text.
const MaxScrambleLen = 512

type SolveServiceImpl struct {
	repo repository.SolveRepository
}

// NewSolveService constructs SolveService over a repository.
func NewSolveService(repo repository.SolveRepository) *SolveServiceImpl {
	return &SolveServiceImpl{repo: repo}
}

// Record validates and stores a solve for the user.
func (s *SolveServiceImpl) Record(ctx context.Context, userID uuid.UUID, in model.NewSolve) (model.Solve, error) {
	if userID == uuid.Nil {
		return model.Solve{}, fmt.Errorf("%w: empty user id", errs.ErrInvalidInput)
	}
	if in.TimeMs < 0 {
		return model.Solve{}, fmt.Errorf("%w: negative time_ms", errs.ErrInvalidInput)
	}
	if len(in.Scramble) > MaxScrambleLen {
		return model.Solve{}, fmt.Errorf("%w: scramble too long", errs.ErrInvalidInput)
	}
	out, err := s.repo.Create(ctx, userID, in)
	if err != nil {
		return model.Solve{}, fmt.Errorf("record solve: %w", err)
	}
	return out, nil
}

// List returns the user's solves, oldest first.
func (s *SolveServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Solve, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty user id", errs.ErrInvalidInput)
	}
	out, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list solves: %w", err)
	}
	return out, nil
}
