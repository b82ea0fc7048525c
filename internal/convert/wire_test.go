package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/and161185/speedcube/internal/errs"
	model "github.com/and161185/speedcube/internal/model"
	u "github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func TestFromRegisterRequest(t *testing.T) {
	t.Parallel()

	name, pw, err := FromRegisterRequest(RegisterRequest{Username: "  alice ", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "alice", name)
	require.Equal(t, "pw", pw)

	_, _, err = FromRegisterRequest(RegisterRequest{Username: " ", Password: "pw"})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	_, _, err = FromRegisterRequest(RegisterRequest{Username: "a"})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestFromSolveRequest(t *testing.T) {
	t.Parallel()

	ns, err := FromSolveRequest(SolveRequest{TimeMs: 9876, Scramble: "R U R'"})
	require.NoError(t, err)
	require.Equal(t, model.NewSolve{TimeMs: 9876, Scramble: "R U R'"}, ns)

	_, err = FromSolveRequest(SolveRequest{TimeMs: -1})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestToSolveResponses_WireNames(t *testing.T) {
	t.Parallel()

	owner := u.Must(u.NewV4())
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	out := ToSolveResponses([]model.Solve{{ID: 7, UserID: owner, TimeMs: 1500, Scramble: "F2", CreatedAt: at}})
	require.Len(t, out, 1)
	require.Equal(t, owner.String(), out[0].OwnerID)
	require.Equal(t, time.UTC, out[0].Timestamp.Location())

	b, err := json.Marshal(out[0])
	require.NoError(t, err)
	require.JSONEq(t, `{"id":7,"owner_id":"`+owner.String()+`","time_ms":1500,"scramble":"F2","timestamp":"2026-01-02T02:04:05Z"}`, string(b))

	empty, err := json.Marshal(ToSolveResponses(nil))
	require.NoError(t, err)
	require.Equal(t, "[]", string(empty))
}

func TestToTokenResponse_DefaultsBearer(t *testing.T) {
	t.Parallel()

	require.Equal(t, TokenResponse{AccessToken: "a", TokenType: "bearer"}, ToTokenResponse(model.Tokens{AccessToken: "a"}))
	require.Equal(t, "x", ToTokenResponse(model.Tokens{TokenType: "x"}).TokenType)
}

func TestToUserResponse(t *testing.T) {
	t.Parallel()

	id := u.Must(u.NewV4())
	require.Equal(t, UserResponse{ID: id.String(), Username: "bob"}, ToUserResponse(model.User{ID: id, Username: "bob"}))
}
