// Package scramble generates random-move scrambles for the 3x3x3 cube.
package scramble

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// DefaultLength is the number of moves in a 3x3x3 scramble.
const DefaultLength = 20

// ErrUnsupportedEvent is returned for events other than 3x3x3.
var ErrUnsupportedEvent = errors.New("scramble: unsupported event")

var (
	faces    = [...]string{"U", "D", "L", "R", "F", "B"}
	suffixes = [...]string{"", "'", "2"}
)

// axis groups opposite faces: U/D, L/R, F/B.
func axis(face int) int { return face / 2 }

// Generator produces scrambles. It is safe for concurrent use.
type Generator struct {
	length int

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes the sequence of scrambles deterministic.
func WithSeed(seed uint64) Option {
	return func(g *Generator) { g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithLength overrides DefaultLength.
func WithLength(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.length = n
		}
	}
}

// New constructs a generator seeded from the wall clock unless WithSeed is given.
func New(opts ...Option) *Generator {
	seed := uint64(time.Now().UnixNano())
	g := &Generator{
		length: DefaultLength,
		rng:    rand.New(rand.NewPCG(seed, seed>>1)),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns a scramble for event. Only "333" is supported.
func (g *Generator) Generate(ctx context.Context, event string) (string, error) {
	if event != "333" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEvent, event)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	moves := make([]string, 0, g.length)
	prev, prevPrev := -1, -1
	for len(moves) < g.length {
		f := g.rng.IntN(len(faces))
		if f == prev {
			continue
		}
		// a third consecutive turn on one axis (R L R, U D U') is redundant
		if prev >= 0 && prevPrev >= 0 && axis(f) == axis(prev) && axis(prev) == axis(prevPrev) {
			continue
		}
		moves = append(moves, faces[f]+suffixes[g.rng.IntN(len(suffixes))])
		prevPrev, prev = prev, f
	}
	return strings.Join(moves, " "), nil
}
