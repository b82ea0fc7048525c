package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestThrottle_PerClientBurst(t *testing.T) {
	th := newThrottle(rate.Limit(1), 2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	require.True(t, th.allow("a"))
	require.True(t, th.allow("a"))
	require.False(t, th.allow("a"), "burst exhausted")
	require.True(t, th.allow("b"), "clients are independent")

	now = now.Add(time.Second)
	require.True(t, th.allow("a"), "one token refilled")
	require.False(t, th.allow("a"))
}

func TestThrottle_SweepsIdleClients(t *testing.T) {
	th := newThrottle(rate.Limit(1), 1)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	th.allow("old")
	now = now.Add(throttleIdle + time.Minute)
	th.allow("new")
	_, ok := th.clients["old"]
	require.False(t, ok)
	require.Len(t, th.clients, 1)
}

func TestSolve_Throttled(t *testing.T) {
	fx := newFixture()
	h := New(fx.auth, fx.solves, fx.records, fx.solver, WithSolveRate(rate.Limit(0.001), 1)).Handler()

	rec := do(t, h, http.MethodPost, "/solve", `{"cube_string":"x"}`, "application/json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/solve", `{"cube_string":"x"}`, "application/json", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}
