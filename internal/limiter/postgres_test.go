package limiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeQuerier struct {
	err          error
	blockedUntil time.Time
	failsRet     int

	execSQL  []string
	execArgs [][]any
	execErr  error
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "SELECT blocked_until"):
		return fakeRow{scan: func(dest ...any) error {
			if f.err != nil {
				return f.err
			}
			*(dest[0].(*time.Time)) = f.blockedUntil
			return nil
		}}
	case strings.Contains(sql, "RETURNING fail_count"):
		return fakeRow{scan: func(dest ...any) error {
			if f.err != nil {
				return f.err
			}
			*(dest[0].(*int)) = f.failsRet
			return nil
		}}
	default:
		return fakeRow{scan: func(...any) error { return errors.New("unexpected query") }}
	}
}

var epoch = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newPG(q Querier) (*PG, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClockAt(epoch)
	return NewPG(q, DefaultPolicy, clk), clk
}

func TestAllow_NoRow_Allows(t *testing.T) {
	l, _ := newPG(&fakeQuerier{err: pgx.ErrNoRows})

	ok, wait, err := l.Allow(context.Background(), "u", []byte("h"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, wait)
}

func TestAllow_BlockedUntilFuture(t *testing.T) {
	l, clk := newPG(&fakeQuerier{blockedUntil: epoch.Add(10 * time.Minute)})

	ok, wait, err := l.Allow(context.Background(), "u", []byte("h"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 10*time.Minute, wait)

	clk.Advance(10 * time.Minute)
	ok, _, err = l.Allow(context.Background(), "u", []byte("h"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAllow_EpochAllows(t *testing.T) {
	l, _ := newPG(&fakeQuerier{blockedUntil: time.Unix(0, 0)})

	ok, wait, err := l.Allow(context.Background(), "u", []byte("h"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, wait)
}

func TestAllow_DBError_Propagates(t *testing.T) {
	l, _ := newPG(&fakeQuerier{err: errors.New("db boom")})

	ok, _, err := l.Allow(context.Background(), "u", []byte("h"))
	require.Error(t, err)
	require.False(t, ok)
}

func TestSuccess_ResetsRow(t *testing.T) {
	fq := &fakeQuerier{}
	l, _ := newPG(fq)

	require.NoError(t, l.Success(context.Background(), "u", []byte("h")))
	require.Len(t, fq.execSQL, 1)
	require.Contains(t, fq.execSQL[0], "INSERT INTO auth_limiter")
	require.Equal(t, epoch, fq.execArgs[0][2])
}

func TestSuccess_ExecError_Propagates(t *testing.T) {
	l, _ := newPG(&fakeQuerier{execErr: errors.New("exec fail")})
	require.Error(t, l.Success(context.Background(), "u", []byte("h")))
}

func TestFailure_BelowThreshold(t *testing.T) {
	fq := &fakeQuerier{failsRet: 2}
	l, _ := newPG(fq)

	blocked, wait, err := l.Failure(context.Background(), "u", []byte("h"))
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, wait)
	require.Empty(t, fq.execSQL)
}

func TestFailure_BlocksAtThreshold(t *testing.T) {
	fq := &fakeQuerier{failsRet: DefaultPolicy.MaxFails}
	l, _ := newPG(fq)

	blocked, wait, err := l.Failure(context.Background(), "u", []byte("h"))
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, DefaultPolicy.BlockFor, wait)
	require.Len(t, fq.execSQL, 1)
	require.Contains(t, fq.execSQL[0], "UPDATE auth_limiter SET blocked_until")
	require.Equal(t, epoch.Add(DefaultPolicy.BlockFor), fq.execArgs[0][2])
}

func TestFailure_DBError(t *testing.T) {
	l, _ := newPG(&fakeQuerier{err: errors.New("query error")})

	_, _, err := l.Failure(context.Background(), "u", []byte("h"))
	require.Error(t, err)
}

func TestNop_NeverBlocks(t *testing.T) {
	var l Limiter = Nop{}
	ok, _, err := l.Allow(context.Background(), "u", nil)
	require.NoError(t, err)
	require.True(t, ok)
	blocked, _, err := l.Failure(context.Background(), "u", nil)
	require.NoError(t, err)
	require.False(t, blocked)
	require.NoError(t, l.Success(context.Background(), "u", nil))
}

func TestHashIP_Determinism(t *testing.T) {
	a := HashIP("1.2.3.4")
	require.Equal(t, a, HashIP("1.2.3.4"))
	require.NotEqual(t, a, HashIP("5.6.7.8"))
	require.Len(t, a, 32)
}
