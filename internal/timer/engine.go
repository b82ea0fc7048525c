// Package timer implements the session stopwatch: start/stop lifecycle, solve
// history, scramble rotation and the persist-solve side effect.
package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/and161185/speedcube/internal/stats"
)

const (
	// DefaultTick is the refresh period of the running display.
	DefaultTick = 10 * time.Millisecond
	// Event333 is the WCA id of the 3x3x3 event; the only one the timer scrambles for.
	Event333 = "333"

	defaultPersistTimeout = 10 * time.Second
)

var (
	// ErrRunning is returned by Start when the timer is already running.
	ErrRunning = errors.New("timer: already running")
	// ErrNotRunning is returned by Stop when the timer is idle.
	ErrNotRunning = errors.New("timer: not running")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("timer: closed")
)

// SolveRecord is one completed start/stop cycle.
type SolveRecord struct {
	TimeMs   int64
	Scramble string
}

// Scrambler produces a random scramble for an event.
type Scrambler interface {
	Generate(ctx context.Context, event string) (string, error)
}

// Persister stores a completed solve on behalf of an authenticated user.
type Persister interface {
	PersistSolve(ctx context.Context, token string, rec SolveRecord) error
}

// TokenSource reports the bearer token if one is valid right now.
type TokenSource interface {
	ValidToken() (string, bool)
}

type noTokens struct{}

func (noTokens) ValidToken() (string, bool) { return "", false }

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the clock used for all elapsed-time measurements.
func WithClock(c clockwork.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithLogger sets the sink for background failures.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithTick sets the display refresh period. Periods outside (0, DefaultTick] fall back to DefaultTick.
func WithTick(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 && d <= DefaultTick {
			e.tick = d
		}
	}
}

// WithTokens connects the engine to the auth session.
func WithTokens(ts TokenSource) Option { return func(e *Engine) { e.tokens = ts } }

// WithPersister enables the persist-solve side effect.
func WithPersister(p Persister) Option { return func(e *Engine) { e.persister = p } }

// WithPersistTimeout bounds a single persist request.
func WithPersistTimeout(d time.Duration) Option {
	return func(e *Engine) { e.persistTimeout = d }
}

// WithTickListener registers fn to receive the live elapsed time on every tick.
// fn runs on the tick goroutine and must not call back into the engine's mutators.
func WithTickListener(fn func(time.Duration)) Option { return func(e *Engine) { e.onTick = fn } }

// Engine is the session stopwatch. All state changes are serialized by mu;
// background completions re-enter through mu and drop themselves when stale.
type Engine struct {
	clock          clockwork.Clock
	log            *zap.Logger
	tick           time.Duration
	scrambler      Scrambler
	tokens         TokenSource
	persister      Persister
	persistTimeout time.Duration
	onTick         func(time.Duration)

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup // scramble + persist
	ticks  sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	running     bool
	startedAt   time.Time
	elapsed     time.Duration // frozen value while idle
	stopTick    chan struct{}
	scramble    string
	scrambleSeq uint64
	history     []SolveRecord
}

// New constructs an idle engine and requests the first scramble.
func New(scrambler Scrambler, opts ...Option) *Engine {
	e := &Engine{
		clock:          clockwork.NewRealClock(),
		log:            zap.NewNop(),
		tick:           DefaultTick,
		scrambler:      scrambler,
		tokens:         noTokens{},
		persistTimeout: defaultPersistTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.mu.Lock()
	e.regenerateLocked()
	e.mu.Unlock()
	return e
}

// Start begins a new attempt from zero.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked()
}

// Stop freezes the attempt, appends it to history and returns it. The next
// scramble and the persist request are issued in the background.
func (e *Engine) Stop() (SolveRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked()
}

// Toggle stops a running attempt or starts an idle one, deciding on the state
// at the instant of the call.
func (e *Engine) Toggle() (rec SolveRecord, stopped bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		rec, err = e.stopLocked()
		return rec, err == nil, err
	}
	return SolveRecord{}, false, e.startLocked()
}

// Reset stops the timer, clears the session history and requests a new scramble.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.haltTickLocked()
	e.running = false
	e.elapsed = 0
	e.history = nil
	e.regenerateLocked()
}

// Elapsed is the live time while running, the frozen time otherwise.
func (e *Engine) Elapsed() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsedLocked()
}

// Running reports whether an attempt is in progress.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Scramble returns the active scramble; empty until the first one arrives.
func (e *Engine) Scramble() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scramble
}

// History returns a copy of the session's solves in insertion order.
func (e *Engine) History() []SolveRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SolveRecord(nil), e.history...)
}

// Stats recomputes the session aggregates from the current history.
func (e *Engine) Stats() stats.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return stats.Summarize(timesOf(e.history))
}

// Snapshot is a consistent read of the whole engine state.
type Snapshot struct {
	Elapsed  time.Duration
	Running  bool
	Scramble string
	History  []SolveRecord
	Stats    stats.Summary
}

// Snapshot reads every observable field under a single lock.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Elapsed:  e.elapsedLocked(),
		Running:  e.running,
		Scramble: e.scramble,
		History:  append([]SolveRecord(nil), e.history...),
		Stats:    stats.Summarize(timesOf(e.history)),
	}
}

// Close stops the tick loop and waits for in-flight background work until ctx
// is done; whatever is still pending afterwards is cancelled.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.haltTickLocked()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.tasks.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	e.cancel()
	e.ticks.Wait()
	<-done
	return err
}

func (e *Engine) startLocked() error {
	if e.closed {
		return ErrClosed
	}
	if e.running {
		return ErrRunning
	}
	e.running = true
	e.elapsed = 0
	e.startedAt = e.clock.Now()

	stop := make(chan struct{})
	e.stopTick = stop
	ticker := e.clock.NewTicker(e.tick)
	e.ticks.Add(1)
	go e.tickLoop(ticker, stop)
	return nil
}

func (e *Engine) stopLocked() (SolveRecord, error) {
	if !e.running {
		return SolveRecord{}, ErrNotRunning
	}
	e.elapsed = e.clock.Now().Sub(e.startedAt)
	e.haltTickLocked()

	rec := SolveRecord{TimeMs: e.elapsed.Milliseconds(), Scramble: e.scramble}
	e.history = append(e.history, rec)

	e.regenerateLocked()
	if token, ok := e.tokens.ValidToken(); ok && e.persister != nil && !e.closed {
		e.persistAsync(token, rec)
	}
	e.running = false
	return rec, nil
}

func (e *Engine) elapsedLocked() time.Duration {
	if e.running {
		return e.clock.Now().Sub(e.startedAt)
	}
	return e.elapsed
}

func (e *Engine) haltTickLocked() {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

// tickLoop publishes now-startedAt on every tick. It never accumulates tick
// periods, so a late tick cannot introduce drift.
func (e *Engine) tickLoop(ticker clockwork.Ticker, stop <-chan struct{}) {
	defer e.ticks.Done()
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-e.ctx.Done():
			return
		case <-ticker.Chan():
			e.mu.Lock()
			live := e.running && e.stopTick == stop
			d := e.elapsedLocked()
			e.mu.Unlock()
			if live && e.onTick != nil {
				e.onTick(d)
			}
		}
	}
}

// regenerateLocked requests a new scramble. Only the most recent request may
// install its result, so a slow completion cannot overwrite a newer one or
// resurrect a scramble from before a Reset.
func (e *Engine) regenerateLocked() {
	if e.closed || e.scrambler == nil {
		return
	}
	e.scrambleSeq++
	seq := e.scrambleSeq
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		s, err := e.scrambler.Generate(e.ctx, Event333)
		if err != nil {
			e.log.Warn("scramble generation failed", zap.Uint64("seq", seq), zap.Error(err))
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if seq != e.scrambleSeq {
			e.log.Debug("dropping stale scramble", zap.Uint64("seq", seq), zap.Uint64("latest", e.scrambleSeq))
			return
		}
		e.scramble = s
	}()
}

func (e *Engine) persistAsync(token string, rec SolveRecord) {
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		ctx, cancel := context.WithTimeout(e.ctx, e.persistTimeout)
		defer cancel()
		if err := e.persister.PersistSolve(ctx, token, rec); err != nil {
			e.log.Warn("persist solve failed",
				zap.Int64("time_ms", rec.TimeMs),
				zap.Error(err),
			)
		}
	}()
}

func timesOf(history []SolveRecord) []int64 {
	out := make([]int64, len(history))
	for i, r := range history {
		out[i] = r.TimeMs
	}
	return out
}
