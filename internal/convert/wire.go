// Package convert maps domain entities to and from the JSON wire types of the HTTP API.
package convert

import (
	"fmt"
	"strings"
	"time"

	"github.com/and161185/speedcube/internal/errs"
	model "github.com/and161185/speedcube/internal/model"
)

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse is returned after registration.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// TokenResponse is the body returned by POST /token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SolveRequest is the body of POST /solves.
type SolveRequest struct {
	TimeMs   int64  `json:"time_ms"`
	Scramble string `json:"scramble"`
}

// SolveResponse is a stored solve as returned by the API.
type SolveResponse struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"owner_id"`
	TimeMs    int64     `json:"time_ms"`
	Scramble  string    `json:"scramble"`
	Timestamp time.Time `json:"timestamp"`
}

// CubeRequest is the body of POST /solve.
type CubeRequest struct {
	CubeString string `json:"cube_string"`
}

// SolutionResponse carries the solver's move sequence.
type SolutionResponse struct {
	Solution string `json:"solution"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse is a plain informational body.
type MessageResponse struct {
	Message string `json:"message"`
}

// FromRegisterRequest validates credentials.
func FromRegisterRequest(in RegisterRequest) (username, password string, err error) {
	username = strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return "", "", fmt.Errorf("%w: empty username/password", errs.ErrInvalidInput)
	}
	return username, in.Password, nil
}

// FromSolveRequest validates a solve submission.
func FromSolveRequest(in SolveRequest) (model.NewSolve, error) {
	if in.TimeMs < 0 {
		return model.NewSolve{}, fmt.Errorf("%w: time_ms must be >= 0", errs.ErrInvalidInput)
	}
	return model.NewSolve{TimeMs: in.TimeMs, Scramble: in.Scramble}, nil
}

// ToUserResponse converts a stored user.
func ToUserResponse(u model.User) UserResponse {
	return UserResponse{ID: u.ID.String(), Username: u.Username}
}

// ToSolveResponse converts a stored solve.
func ToSolveResponse(s model.Solve) SolveResponse {
	return SolveResponse{
		ID:        s.ID,
		OwnerID:   s.UserID.String(),
		TimeMs:    s.TimeMs,
		Scramble:  s.Scramble,
		Timestamp: s.CreatedAt.UTC(),
	}
}

// ToSolveResponses converts a list, never returning nil so it encodes as [].
func ToSolveResponses(in []model.Solve) []SolveResponse {
	out := make([]SolveResponse, 0, len(in))
	for _, s := range in {
		out = append(out, ToSolveResponse(s))
	}
	return out
}

// ToTokenResponse converts issued tokens.
func ToTokenResponse(t model.Tokens) TokenResponse {
	typ := t.TokenType
	if typ == "" {
		typ = "bearer"
	}
	return TokenResponse{AccessToken: t.AccessToken, TokenType: typ}
}
