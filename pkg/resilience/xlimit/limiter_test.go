package xlimit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/ratekit/pkg/observability/xevent"
)

// captureSink 记录所有收到事件的测试接收器
type captureSink struct {
	mu     sync.Mutex
	events []xevent.Event
}

func (s *captureSink) Publish(_ context.Context, e xevent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) byKind(kind xevent.Kind) []xevent.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []xevent.Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func newMockLimiter(t *testing.T, store Store, opts ...Option) *Limiter {
	t.Helper()
	opts = append([]Option{WithRules(validRule("search"))}, opts...)
	l, err := New(store, opts...)
	require.NoError(t, err)
	return l
}

func TestNew_Validation(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		_, err := New(nil, WithRules(validRule("a")))
		assert.ErrorIs(t, err, ErrNilStore)
	})

	t.Run("no rules and no provider", func(t *testing.T) {
		_, err := New(NewMemoryStore())
		assert.ErrorIs(t, err, ErrNoRules)
	})

	t.Run("unknown fallback strategy", func(t *testing.T) {
		_, err := New(NewMemoryStore(), WithRules(validRule("a")), WithFallback("maybe"))
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("invalid trusted proxies", func(t *testing.T) {
		_, err := New(NewMemoryStore(), WithRules(validRule("a")), WithTrustedProxies("not-a-cidr"))
		assert.Error(t, err)
	})
}

func TestLimiter_Check_Allowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Type().Return("mock").AnyTimes()
	store.EXPECT().
		Evaluate(gomock.Any(), "ratekit:{user:alice}:search", gomock.Any(), gomock.Any(), int64(1)).
		Return(Decision{Allowed: true, Remaining: 99, Limit: 100}, nil)
	store.EXPECT().Close().Return(nil)

	sink := &captureSink{}
	l := newMockLimiter(t, store, WithEventSink(sink))
	defer func() { _ = l.Close() }()

	d, err := l.Check(context.Background(), "search", Identity{Principal: "alice"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, "search", d.RuleID)
	assert.Equal(t, "ratekit:{user:alice}:search", d.Key)
	assert.False(t, d.FailOpen)

	// 每次判定产生 checked + 结果事件各一条，同一 CorrelationID
	checked := sink.byKind(xevent.KindChecked)
	allowed := sink.byKind(xevent.KindAllowed)
	require.Len(t, checked, 1)
	require.Len(t, allowed, 1)
	assert.Equal(t, checked[0].CorrelationID, allowed[0].CorrelationID)
	assert.NotEqual(t, checked[0].ID, allowed[0].ID)
	assert.Equal(t, "user", allowed[0].Scope)
	assert.Empty(t, sink.byKind(xevent.KindDenied))
	assert.Empty(t, sink.byKind(xevent.KindFailOpen))
}

func TestLimiter_Check_Denied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Type().Return("mock").AnyTimes()
	store.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Decision{Allowed: false, RetryAfter: 12, Limit: 100}, nil)
	store.EXPECT().Close().Return(nil)

	sink := &captureSink{}
	l := newMockLimiter(t, store, WithEventSink(sink))
	defer func() { _ = l.Close() }()

	d, err := l.Check(context.Background(), "search", Identity{Principal: "alice"})
	require.NoError(t, err, "denial is data, not an error")
	assert.False(t, d.Allowed)
	assert.InDelta(t, 12.0, d.RetryAfter, 1e-9)

	require.Len(t, sink.byKind(xevent.KindDenied), 1)
	require.Len(t, sink.byKind(xevent.KindChecked), 1)
}

func TestLimiter_Check_RuleMissFailsOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// 未注册操作不触发任何存储调用
	store := NewMockStore(ctrl)
	store.EXPECT().Type().Return("mock").AnyTimes()
	store.EXPECT().Close().Return(nil)

	sink := &captureSink{}
	l := newMockLimiter(t, store, WithEventSink(sink))
	defer func() { _ = l.Close() }()

	d, err := l.Check(context.Background(), "unknown-op", Identity{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.FailOpen)

	require.Len(t, sink.byKind(xevent.KindFailOpen), 1)
}

func TestLimiter_Check_ScopeResolutionFailsOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Type().Return("mock").AnyTimes()
	store.EXPECT().Close().Return(nil)

	sink := &captureSink{}
	l := newMockLimiter(t, store, WithEventSink(sink))
	defer func() { _ = l.Close() }()

	// user 作用域缺少主体
	d, err := l.Check(context.Background(), "search", Identity{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.FailOpen)
	assert.Equal(t, 100, d.Remaining, "fail-open reports full capacity")

	require.Len(t, sink.byKind(xevent.KindFailOpen), 1)
}

func TestLimiter_Check_DisabledRule(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Close().Return(nil)

	disabled := false
	r := validRule("off")
	r.Enabled = &disabled

	l, err := New(store, WithRules(r))
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	d, err := l.Check(context.Background(), "off", Identity{Principal: "alice"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.False(t, d.FailOpen)
}

func TestLimiter_Check_StoreErrorFallbackOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Type().Return("mock").AnyTimes()
	store.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Decision{}, ErrStoreUnavailable)
	store.EXPECT().Close().Return(nil)

	sink := &captureSink{}
	l := newMockLimiter(t, store, WithEventSink(sink))
	defer func() { _ = l.Close() }()

	d, err := l.Check(context.Background(), "search", Identity{Principal: "alice"})
	require.NoError(t, err, "store failure never escapes to the caller")
	assert.True(t, d.Allowed)
	assert.True(t, d.FailOpen)
	assert.Zero(t, d.RetryAfter)
	assert.Equal(t, 100, d.Remaining)

	// 恰好一条 fail_open，不叠加 allowed/denied
	require.Len(t, sink.byKind(xevent.KindFailOpen), 1)
	assert.Empty(t, sink.byKind(xevent.KindAllowed))
	assert.Empty(t, sink.byKind(xevent.KindDenied))
}

func TestLimiter_Check_StoreErrorFallbackLocal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Type().Return("mock").AnyTimes()
	store.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Decision{}, ErrStoreUnavailable).
		Times(2)
	store.EXPECT().Close().Return(nil)

	sink := &captureSink{}
	l := newMockLimiter(t, store,
		WithEventSink(sink),
		WithFallback(FallbackLocal),
		WithPodCountProvider(StaticPodCount(1)),
	)
	defer func() { _ = l.Close() }()

	// 本地降级继续限流，结果携带 FailOpen 标记
	d, err := l.Check(context.Background(), "search", Identity{Principal: "alice"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.FailOpen)
	assert.Equal(t, 99, d.Remaining, "local bucket actually consumed")

	d, err = l.Check(context.Background(), "search", Identity{Principal: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 98, d.Remaining)

	// 每次降级判定记一条 fail_open
	assert.Len(t, sink.byKind(xevent.KindFailOpen), 2)
}

// ctxPodCount 对已取消的上下文报错，模拟需要真实查询的提供器
type ctxPodCount int

func (c ctxPodCount) GetPodCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int(c), nil
}

func TestLimiter_Check_FallbackLocalCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Type().Return("mock").AnyTimes()
	store.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Decision{}, ErrStoreUnavailable)
	store.EXPECT().Close().Return(nil)

	l := newMockLimiter(t, store,
		WithFallback(FallbackLocal),
		WithPodCountProvider(ctxPodCount(4)),
	)
	defer func() { _ = l.Close() }()

	// 请求上下文已取消：降级判定照常完成，配额分摊不受影响
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := l.Check(ctx, "search", Identity{Principal: "alice"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.FailOpen)
	assert.Equal(t, 24, d.Remaining, "ceil(100/4) local tokens, one consumed")
}

func TestLimiter_Check_StoreErrorFallbackClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Type().Return("mock").AnyTimes()
	store.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Decision{}, ErrStoreUnavailable)
	store.EXPECT().Close().Return(nil)

	l := newMockLimiter(t, store, WithFallback(FallbackClose))
	defer func() { _ = l.Close() }()

	d, err := l.Check(context.Background(), "search", Identity{Principal: "alice"})
	require.NoError(t, err, "denial by policy is still data")
	assert.False(t, d.Allowed)
	assert.False(t, d.FailOpen)
	assert.Equal(t, 0, d.Remaining)
}

func TestLimiter_CheckN_Cost(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Type().Return("mock").AnyTimes()
	// 显式成本透传
	store.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), int64(5)).
		Return(Decision{Allowed: true}, nil)
	// cost <= 0 回落到规则默认
	store.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), int64(1)).
		Return(Decision{Allowed: true}, nil)
	store.EXPECT().Close().Return(nil)

	l := newMockLimiter(t, store)
	defer func() { _ = l.Close() }()

	_, err := l.CheckN(context.Background(), "search", Identity{Principal: "alice"}, 5)
	require.NoError(t, err)

	_, err = l.CheckN(context.Background(), "search", Identity{Principal: "alice"}, 0)
	require.NoError(t, err)
}

func TestLimiter_PeekAndReset(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().
		Peek(gomock.Any(), "ratekit:{user:alice}:search", gomock.Any(), gomock.Any()).
		Return(BucketState{Tokens: 42}, true, nil)
	store.EXPECT().
		Reset(gomock.Any(), "ratekit:{user:alice}:search").
		Return(nil)
	store.EXPECT().Close().Return(nil)

	l := newMockLimiter(t, store)
	defer func() { _ = l.Close() }()

	id := Identity{Principal: "alice"}

	state, ok, err := l.Peek(context.Background(), "search", id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 42.0, state.Tokens, 1e-9)

	require.NoError(t, l.Reset(context.Background(), "search", id))

	// 运维接口不做放行兜底
	_, _, err = l.Peek(context.Background(), "missing", id)
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.ErrorIs(t, l.Reset(context.Background(), "missing", id), ErrRuleNotFound)

	// 作用域解析错误直接上抛
	_, _, err = l.Peek(context.Background(), "search", Identity{})
	assert.ErrorIs(t, err, ErrMissingPrincipal)
}

func TestLimiter_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Close().Return(nil).Times(1)

	l := newMockLimiter(t, store)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "close is idempotent")

	_, err := l.Check(context.Background(), "search", Identity{Principal: "alice"})
	assert.ErrorIs(t, err, ErrLimiterClosed)
	_, _, err = l.Peek(context.Background(), "search", Identity{Principal: "alice"})
	assert.ErrorIs(t, err, ErrLimiterClosed)
	assert.ErrorIs(t, l.Reset(context.Background(), "search", Identity{Principal: "alice"}), ErrLimiterClosed)
}

func TestLimiter_RuleProviderHotReload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().Type().Return("mock").AnyTimes()
	store.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Decision{Allowed: true}, nil).
		AnyTimes()
	store.EXPECT().Close().Return(nil)

	p := &fakeProvider{rules: []Rule{validRule("a")}}

	l, err := New(store, WithRuleProvider(p))
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	d, err := l.Check(context.Background(), "a", Identity{Principal: "alice"})
	require.NoError(t, err)
	assert.False(t, d.FailOpen)

	// 热加载换装后旧规则消失
	p.emit([]Rule{validRule("b")}, nil)

	d, err = l.Check(context.Background(), "a", Identity{Principal: "alice"})
	require.NoError(t, err)
	assert.True(t, d.FailOpen, "removed rule falls back to allow")

	d, err = l.Check(context.Background(), "b", Identity{Principal: "alice"})
	require.NoError(t, err)
	assert.False(t, d.FailOpen)
}
