package xlimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/ratekit/pkg/resilience/xbreaker"
)

func TestNewBreakerStore(t *testing.T) {
	t.Run("nil inner", func(t *testing.T) {
		b, err := xbreaker.NewBreaker("test")
		require.NoError(t, err)
		_, err = NewBreakerStore(nil, b)
		assert.ErrorIs(t, err, ErrNilStore)
	})

	t.Run("nil breaker passes inner through", func(t *testing.T) {
		inner := NewMemoryStore()
		defer func() { _ = inner.Close() }()

		s, err := NewBreakerStore(inner, nil)
		require.NoError(t, err)
		assert.Same(t, inner, s)
	})
}

func TestBreakerStore_OpenFailsFast(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	inner := NewMockStore(ctrl)
	inner.EXPECT().Type().Return("mock").AnyTimes()
	// 熔断打开后不再触达内层存储
	inner.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Decision{}, ErrStoreUnavailable).
		Times(2)

	b, err := xbreaker.NewBreaker("store",
		xbreaker.WithTripPolicy(xbreaker.ConsecutiveFailures(2)),
		xbreaker.WithTimeout(time.Hour),
	)
	require.NoError(t, err)

	s, err := NewBreakerStore(inner, b)
	require.NoError(t, err)
	assert.Equal(t, "breaker(mock)", s.Type())

	ctx := context.Background()
	rule := validRule("search")
	now := time.Now()

	for i := 0; i < 2; i++ {
		_, err = s.Evaluate(ctx, "k", rule, now, 1)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	}

	// 第三次由熔断器直接拒绝，错误仍归一为存储不可用
	_, err = s.Evaluate(ctx, "k", rule, now, 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.True(t, xbreaker.IsOpen(err))
}

func TestBreakerStore_PassThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	inner := NewMockStore(ctrl)
	inner.EXPECT().
		Evaluate(gomock.Any(), "k", gomock.Any(), gomock.Any(), int64(1)).
		Return(Decision{Allowed: true, Remaining: 7}, nil)
	inner.EXPECT().
		Peek(gomock.Any(), "k", gomock.Any(), gomock.Any()).
		Return(BucketState{Tokens: 7}, true, nil)
	inner.EXPECT().Reset(gomock.Any(), "k").Return(nil)
	inner.EXPECT().Close().Return(nil)

	b, err := xbreaker.NewBreaker("store")
	require.NoError(t, err)

	s, err := NewBreakerStore(inner, b)
	require.NoError(t, err)

	ctx := context.Background()
	rule := validRule("search")
	now := time.Now()

	d, err := s.Evaluate(ctx, "k", rule, now, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 7, d.Remaining)

	// Peek/Reset 不受熔断保护，直接透传
	state, ok, err := s.Peek(ctx, "k", rule, now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 7.0, state.Tokens, 1e-9)

	assert.NoError(t, s.Reset(ctx, "k"))
	assert.NoError(t, s.Close())
}
