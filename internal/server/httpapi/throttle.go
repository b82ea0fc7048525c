package httpapi

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default per-client budget for the solver proxy.
const (
	DefaultSolveRate  = rate.Limit(2) // requests per second
	DefaultSolveBurst = 5
)

const throttleIdle = 10 * time.Minute

// throttle keeps one token bucket per client address.
type throttle struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*visitor
	swept   time.Time
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

func newThrottle(limit rate.Limit, burst int) *throttle {
	return &throttle{limit: limit, burst: burst, now: time.Now, clients: map[string]*visitor{}}
}

func (t *throttle) allow(client string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.swept) > throttleIdle {
		for k, v := range t.clients {
			if now.Sub(v.seen) > throttleIdle {
				delete(t.clients, k)
			}
		}
		t.swept = now
	}
	v, ok := t.clients[client]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(t.limit, t.burst)}
		t.clients[client] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

func (t *throttle) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !t.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeDetail(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(w, r)
	}
}
