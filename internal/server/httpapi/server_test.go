package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/speedcube/internal/convert"
	"github.com/and161185/speedcube/internal/errs"
	"github.com/and161185/speedcube/internal/model"
)

type fakeAuth struct {
	mu      sync.Mutex
	users   map[string]model.User
	pw      map[string]string
	lastIP  string
	limited bool
	failErr error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]model.User{}, pw: map[string]string{}}
}

func (f *fakeAuth) Register(_ context.Context, username, password string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return model.User{}, f.failErr
	}
	if _, ok := f.users[username]; ok {
		return model.User{}, errs.ErrAlreadyExists
	}
	u := model.User{ID: uuid.Must(uuid.NewV4()), Username: username}
	f.users[username] = u
	f.pw[username] = password
	return u, nil
}

func (f *fakeAuth) Login(_ context.Context, username, password, ip string) (model.Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastIP = ip
	if f.limited {
		return model.Tokens{}, errs.ErrRateLimited
	}
	if p, ok := f.pw[username]; !ok || p != password {
		return model.Tokens{}, errs.ErrUnauthorized
	}
	return model.Tokens{AccessToken: "tok-" + username, TokenType: "bearer"}, nil
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return model.User{}, f.failErr
	}
	name, ok := strings.CutPrefix(token, "tok-")
	if !ok {
		return model.User{}, errs.ErrUnauthorized
	}
	u, ok := f.users[name]
	if !ok {
		return model.User{}, errs.ErrUnauthorized
	}
	return u, nil
}

type fakeSolves struct {
	mu   sync.Mutex
	rows []model.Solve
	err  error
}

func (f *fakeSolves) Record(_ context.Context, userID uuid.UUID, in model.NewSolve) (model.Solve, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Solve{}, f.err
	}
	s := model.Solve{
		ID:        int64(len(f.rows) + 1),
		UserID:    userID,
		TimeMs:    in.TimeMs,
		Scramble:  in.Scramble,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.rows = append(f.rows, s)
	return s, nil
}

func (f *fakeSolves) List(_ context.Context, userID uuid.UUID) ([]model.Solve, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Solve
	for _, s := range f.rows {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeRecords struct {
	wr  model.WorldRecords
	err error
}

func (f fakeRecords) WorldRecords(context.Context) (model.WorldRecords, error) { return f.wr, f.err }

type fakeSolver struct {
	sol string
	err error
}

func (f fakeSolver) Solve(context.Context, string) (string, error) { return f.sol, f.err }

type fixture struct {
	auth    *fakeAuth
	solves  *fakeSolves
	records fakeRecords
	solver  fakeSolver
}

func (fx *fixture) handler(t *testing.T) http.Handler {
	return New(fx.auth, fx.solves, fx.records, fx.solver, WithLogger(zaptest.NewLogger(t))).Handler()
}

func newFixture() *fixture {
	return &fixture{
		auth:   newFakeAuth(),
		solves: &fakeSolves{},
		records: fakeRecords{wr: model.WorldRecords{Records: map[string]model.EventRecords{
			"333": {Single: model.Record{Result: 309, PersonName: "Xuanyi Geng", Year: 2025}},
		}}},
		solver: fakeSolver{sol: "R U R' U'"},
	}
}

func do(t *testing.T, h http.Handler, method, path, body, contentType, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var er convert.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er), rec.Body.String())
	return er.Detail
}

func form(user, pass string) string {
	return url.Values{"username": {user}, "password": {pass}}.Encode()
}

const formType = "application/x-www-form-urlencoded"

func TestRoot(t *testing.T) {
	fx := newFixture()
	rec := do(t, fx.handler(t), http.MethodGet, "/", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"message"`)
}

func TestRegister(t *testing.T) {
	fx := newFixture()
	h := fx.handler(t)

	rec := do(t, h, http.MethodPost, "/users/register", `{"username":"alice","password":"pw"}`, "application/json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ur convert.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ur))
	require.Equal(t, "alice", ur.Username)
	require.NotEmpty(t, ur.ID)

	rec = do(t, h, http.MethodPost, "/users/register", `{"username":"alice","password":"pw2"}`, "application/json", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Username already registered", detail(t, rec))

	rec = do(t, h, http.MethodPost, "/users/register", `{"username":"","password":"pw"}`, "application/json", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/users/register", `{not json`, "application/json", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	fx.auth.failErr = errors.New("db down")
	rec = do(t, h, http.MethodPost, "/users/register", `{"username":"bob","password":"pw"}`, "application/json", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "db down")
}

func TestToken(t *testing.T) {
	fx := newFixture()
	h := fx.handler(t)
	_, _ = fx.auth.Register(context.Background(), "alice", "pw")

	rec := do(t, h, http.MethodPost, "/token", form("alice", "pw"), formType, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tr convert.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	require.Equal(t, "tok-alice", tr.AccessToken)
	require.Equal(t, "bearer", tr.TokenType)
	require.Equal(t, "192.0.2.1", fx.auth.lastIP)

	rec = do(t, h, http.MethodPost, "/token", form("alice", "nope"), formType, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	require.Equal(t, "Incorrect username or password", detail(t, rec))

	rec = do(t, h, http.MethodPost, "/token", form("", ""), formType, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	fx.auth.limited = true
	rec = do(t, h, http.MethodPost, "/token", form("alice", "pw"), formType, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSolves_RequireBearer(t *testing.T) {
	fx := newFixture()
	h := fx.handler(t)

	rec := do(t, h, http.MethodGet, "/solves", "", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Not authenticated", detail(t, rec))

	rec = do(t, h, http.MethodPost, "/solves", `{"time_ms":1,"scramble":"R"}`, "application/json", "bogus")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Could not validate credentials", detail(t, rec))
	require.Empty(t, fx.solves.rows)
}

func TestSolves_CreateAndList(t *testing.T) {
	fx := newFixture()
	h := fx.handler(t)
	alice, _ := fx.auth.Register(context.Background(), "alice", "pw")
	_, _ = fx.auth.Register(context.Background(), "bob", "pw")

	rec := do(t, h, http.MethodPost, "/solves", `{"time_ms":12345,"scramble":"R U R'"}`, "application/json", "tok-alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var sr convert.SolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	require.Equal(t, int64(12345), sr.TimeMs)
	require.Equal(t, alice.ID.String(), sr.OwnerID)

	rec = do(t, h, http.MethodPost, "/solves", `{"time_ms":-5,"scramble":""}`, "application/json", "tok-alice")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodGet, "/solves", "", "", "tok-alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []convert.SolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = do(t, h, http.MethodGet, "/solves", "", "", "tok-bob")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	fx.solves.err = errors.New("boom")
	rec = do(t, h, http.MethodGet, "/solves", "", "", "tok-alice")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStats(t *testing.T) {
	fx := newFixture()
	rec := do(t, fx.handler(t), http.MethodGet, "/stats", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var wr model.WorldRecords
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wr))
	require.Equal(t, int64(309), wr.Records["333"].Single.Result)

	fx.records.err = fmt.Errorf("%w: missing", errs.ErrUnavailable)
	rec = do(t, fx.handler(t), http.MethodGet, "/stats", "", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "wca_records.json file not found.", detail(t, rec))
}

func TestSolve(t *testing.T) {
	fx := newFixture()
	rec := do(t, fx.handler(t), http.MethodPost, "/solve", `{"cube_string":"x"}`, "application/json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"solution":"R U R' U'"}`, rec.Body.String())

	fx.solver.err = fmt.Errorf("%w: bad", errs.ErrInvalidInput)
	rec = do(t, fx.handler(t), http.MethodPost, "/solve", `{"cube_string":"x"}`, "application/json", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid or unsolvable cube string.", detail(t, rec))

	fx.solver.err = fmt.Errorf("%w: down", errs.ErrUnavailable)
	rec = do(t, fx.handler(t), http.MethodPost, "/solve", `{"cube_string":"x"}`, "application/json", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouting_NotFoundAndMethod(t *testing.T) {
	fx := newFixture()
	h := fx.handler(t)

	rec := do(t, h, http.MethodGet, "/nope", "", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Not Found", detail(t, rec))

	rec = do(t, h, http.MethodDelete, "/stats", "", "", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS_Preflight(t *testing.T) {
	fx := newFixture()
	h := New(fx.auth, fx.solves, fx.records, fx.solver, WithAllowedOrigins("http://app.test")).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/solves", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
