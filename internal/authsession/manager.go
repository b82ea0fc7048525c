// Package authsession owns the client's authentication state: the raw bearer
// token, its decoded claims, expiry checks and persistence across restarts.
//
// Manager is the only writer. Views receive it through the Reader interface.
package authsession

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrMalformedToken is returned by Login when the token cannot be decoded.
var ErrMalformedToken = errors.New("authsession: malformed token")

// Claims are the decoded token fields the client relies on.
type Claims struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp
}

// ValidAt reports whether the claims are unexpired at now.
// The comparison is exp*1000 > nowMs, i.e. at millisecond precision.
func (c Claims) ValidAt(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return c.ExpiresAt.Unix()*1000 > now.UnixMilli()
}

// Session is a token together with its claims.
type Session struct {
	Token  string
	Claims Claims
}

// Reader is the read-only view of the session handed to consumers.
type Reader interface {
	// Current returns the session if one is held and valid right now.
	Current() (Session, bool)
}

// Decode extracts claims from a JWT without verifying its signature; the
// server remains the authority on signatures.
func Decode(raw string) (Claims, error) {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &rc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	c := Claims{Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}

// Manager holds the process-wide auth session.
type Manager struct {
	store Store
	clock clockwork.Clock
	log   *zap.Logger

	mu     sync.RWMutex
	token  string
	claims *Claims
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects the clock used for expiry checks.
func WithClock(c clockwork.Clock) Option { return func(m *Manager) { m.clock = c } }

// WithLogger sets the logger for recovered failures.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

// NewManager constructs an empty manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, clock: clockwork.NewRealClock(), log: zap.NewNop()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Restore loads the persisted token once at startup. Unreadable, undecodable
// or expired tokens are removed from storage and leave the session empty.
func (m *Manager) Restore() {
	raw, err := m.store.Load()
	if errors.Is(err, ErrNoToken) {
		return
	}
	if err != nil {
		m.log.Warn("stored token unreadable", zap.Error(err))
		m.clearStore()
		return
	}
	claims, err := Decode(raw)
	if err != nil {
		m.log.Warn("stored token invalid", zap.Error(err))
		m.clearStore()
		return
	}
	if !claims.ValidAt(m.clock.Now()) {
		m.log.Info("stored token expired", zap.Time("expires_at", claims.ExpiresAt))
		m.clearStore()
		return
	}

	m.mu.Lock()
	m.token, m.claims = raw, &claims
	m.mu.Unlock()
}

// Login installs a freshly issued token. On decode failure the previous
// session is kept and nothing is persisted.
func (m *Manager) Login(raw string) error {
	claims, err := Decode(raw)
	if err != nil {
		m.log.Warn("login token rejected", zap.Error(err))
		return err
	}

	m.mu.Lock()
	m.token, m.claims = raw, &claims
	m.mu.Unlock()

	if err := m.store.Save(raw); err != nil {
		m.log.Warn("persist token", zap.Error(err))
	}
	return nil
}

// Logout clears the session and its persisted copy.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.token, m.claims = "", nil
	m.mu.Unlock()
	m.clearStore()
}

// Current implements Reader.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.claims == nil || !m.claims.ValidAt(m.clock.Now()) {
		return Session{}, false
	}
	return Session{Token: m.token, Claims: *m.claims}, true
}

// ValidToken returns the bearer token if the session is valid right now.
func (m *Manager) ValidToken() (string, bool) {
	s, ok := m.Current()
	return s.Token, ok
}

// Held returns the session as stored, regardless of expiry.
func (m *Manager) Held() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.claims == nil {
		return Session{}, false
	}
	return Session{Token: m.token, Claims: *m.claims}, true
}

func (m *Manager) clearStore() {
	if err := m.store.Clear(); err != nil {
		m.log.Warn("clear stored token", zap.Error(err))
	}
}
