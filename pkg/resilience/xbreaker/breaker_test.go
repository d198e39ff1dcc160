package xbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDownstream = errors.New("downstream failed")

func TestNewBreaker(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		_, err := NewBreaker("")
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("defaults", func(t *testing.T) {
		b, err := NewBreaker("test")
		require.NoError(t, err)
		assert.Equal(t, "test", b.Name())
		assert.Equal(t, gobreaker.StateClosed, b.State())
	})
}

func TestBreaker_Do(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		b, err := NewBreaker("test")
		require.NoError(t, err)
		assert.ErrorIs(t, b.Do(nil, func(ctx context.Context) error { return nil }), ErrNilContext) //nolint:staticcheck
	})

	t.Run("nil func", func(t *testing.T) {
		b, err := NewBreaker("test")
		require.NoError(t, err)
		assert.ErrorIs(t, b.Do(context.Background(), nil), ErrNilFunc)
	})

	t.Run("success", func(t *testing.T) {
		b, err := NewBreaker("test")
		require.NoError(t, err)

		called := false
		err = b.Do(context.Background(), func(ctx context.Context) error {
			called = true
			return nil
		})
		assert.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("business error passes through unwrapped", func(t *testing.T) {
		b, err := NewBreaker("test")
		require.NoError(t, err)

		err = b.Do(context.Background(), func(ctx context.Context) error {
			return errDownstream
		})
		assert.ErrorIs(t, err, errDownstream)
		assert.False(t, IsBreakerError(err))
	})
}

func TestBreaker_Trip(t *testing.T) {
	b, err := NewBreaker("trip",
		WithTripPolicy(ConsecutiveFailures(3)),
		WithTimeout(time.Hour),
	)
	require.NoError(t, err)

	ctx := context.Background()
	fail := func(ctx context.Context) error { return errDownstream }

	for i := 0; i < 3; i++ {
		err = b.Do(ctx, fail)
		assert.ErrorIs(t, err, errDownstream)
	}

	assert.Equal(t, gobreaker.StateOpen, b.State())

	// 打开状态下不再执行业务函数
	called := false
	err = b.Do(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.True(t, IsOpen(err))
	assert.True(t, IsBreakerError(err))

	var be *BreakerError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "trip", be.Name)
	assert.Equal(t, gobreaker.StateOpen, be.State)
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	type transition struct {
		from, to gobreaker.State
	}
	var transitions []transition

	b, err := NewBreaker("callback",
		WithTripPolicy(ConsecutiveFailures(1)),
		WithTimeout(time.Hour),
		WithOnStateChange(func(name string, from, to gobreaker.State) {
			transitions = append(transitions, transition{from, to})
		}),
	)
	require.NoError(t, err)

	_ = b.Do(context.Background(), func(ctx context.Context) error { return errDownstream })

	require.Len(t, transitions, 1)
	assert.Equal(t, gobreaker.StateClosed, transitions[0].from)
	assert.Equal(t, gobreaker.StateOpen, transitions[0].to)
}

func TestExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		b, err := NewBreaker("exec")
		require.NoError(t, err)

		got, err := Execute(context.Background(), b, func(ctx context.Context) (int, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	})

	t.Run("error returns zero value", func(t *testing.T) {
		b, err := NewBreaker("exec-err")
		require.NoError(t, err)

		got, err := Execute(context.Background(), b, func(ctx context.Context) (string, error) {
			return "partial", errDownstream
		})
		assert.ErrorIs(t, err, errDownstream)
		assert.Empty(t, got)
	})
}

func TestFailureRate(t *testing.T) {
	policy := FailureRate(0.5, 10)

	// 样本不足不触发
	assert.False(t, policy(gobreaker.Counts{Requests: 5, TotalFailures: 5}))

	assert.False(t, policy(gobreaker.Counts{Requests: 10, TotalFailures: 4}))
	assert.True(t, policy(gobreaker.Counts{Requests: 10, TotalFailures: 5}))
}
