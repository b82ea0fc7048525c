package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/and161185/speedcube/internal/client"
	"github.com/and161185/speedcube/internal/cube"
	"github.com/and161185/speedcube/internal/errs"
)

// Upstream computes a solution for a validated cube state.
// *client.Client satisfies it, so any backend speaking the /solve protocol can serve.
type Upstream interface {
	Solve(ctx context.Context, f cube.Facelets) (string, error)
}

// SolverService validates facelet strings and delegates solving.
type SolverService interface {
	Solve(ctx context.Context, cubeString string) (string, error)
}

type SolverServiceImpl struct {
	upstream Upstream
}

// NewSolverService constructs a solver. A nil upstream makes Solve report errs.ErrUnavailable.
func NewSolverService(up Upstream) *SolverServiceImpl {
	return &SolverServiceImpl{upstream: up}
}

// Solve parses cubeString and asks the upstream for a move sequence.
// An already solved cube yields an empty solution.
func (s *SolverServiceImpl) Solve(ctx context.Context, cubeString string) (string, error) {
	f, err := cube.Parse(cubeString)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	if f.IsSolved() {
		return "", nil
	}
	if s.upstream == nil {
		return "", fmt.Errorf("%w: no solver configured", errs.ErrUnavailable)
	}
	sol, err := s.upstream.Solve(ctx, f)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			return "", fmt.Errorf("%w: %s", errs.ErrInvalidInput, apiErr.Detail)
		}
		return "", fmt.Errorf("%w: solver: %v", errs.ErrUnavailable, err)
	}
	return sol, nil
}
