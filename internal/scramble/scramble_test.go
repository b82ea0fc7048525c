package scramble

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func faceIndex(t *testing.T, move string) int {
	t.Helper()
	for i, f := range faces {
		if strings.HasPrefix(move, f) {
			return i
		}
	}
	t.Fatalf("unknown move %q", move)
	return -1
}

func TestGenerate_Shape(t *testing.T) {
	t.Parallel()

	g := New(WithSeed(42))
	for i := 0; i < 200; i++ {
		s, err := g.Generate(context.Background(), "333")
		require.NoError(t, err)
		moves := strings.Fields(s)
		require.Len(t, moves, DefaultLength)

		for j, m := range moves {
			require.LessOrEqual(t, len(m), 2)
			f := faceIndex(t, m)
			if len(m) == 2 {
				require.Contains(t, []byte{'\'', '2'}, m[1])
			}
			if j > 0 {
				require.NotEqual(t, faceIndex(t, moves[j-1]), f, "same face twice: %s", s)
			}
			if j > 1 {
				a, b := axis(faceIndex(t, moves[j-2])), axis(faceIndex(t, moves[j-1]))
				require.False(t, a == b && b == axis(f), "three moves on one axis: %s", s)
			}
		}
	}
}

func TestGenerate_SeedIsDeterministic(t *testing.T) {
	t.Parallel()

	a, err := New(WithSeed(7)).Generate(context.Background(), "333")
	require.NoError(t, err)
	b, err := New(WithSeed(7)).Generate(context.Background(), "333")
	require.NoError(t, err)
	require.Equal(t, a, b)

	g := New(WithSeed(7))
	first, _ := g.Generate(context.Background(), "333")
	second, _ := g.Generate(context.Background(), "333")
	require.NotEqual(t, first, second)
}

func TestGenerate_Length(t *testing.T) {
	t.Parallel()

	s, err := New(WithLength(5), WithSeed(1)).Generate(context.Background(), "333")
	require.NoError(t, err)
	require.Len(t, strings.Fields(s), 5)
}

func TestGenerate_Errors(t *testing.T) {
	t.Parallel()

	_, err := New().Generate(context.Background(), "444")
	require.ErrorIs(t, err, ErrUnsupportedEvent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Generate(ctx, "333")
	require.ErrorIs(t, err, context.Canceled)
}
