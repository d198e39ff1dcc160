package xlimit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/ratekit/pkg/observability/xevent"
	"github.com/omeyang/ratekit/pkg/observability/xmetrics"
	"github.com/omeyang/ratekit/pkg/util/xid"
	"github.com/omeyang/ratekit/pkg/util/xnet"
)

// observedComponent 观测跨度的组件名
const observedComponent = "xlimit"

// Limiter 限流器。
//
// 对每次请求执行规则查找、键构建、存储判定三步，并按降级策略
// 吸收存储故障。限流器是保护层而不是准入门禁：除 [ErrLimiterClosed]
// 外 Check/CheckN 不返回错误，拒绝与兜底都表达为 [Decision]。
//
// 并发安全。
type Limiter struct {
	store    Store
	local    Store
	registry *Registry
	keys     *KeyBuilder
	opts     *options
	metrics  *Metrics
	node     string

	stopWatch func()
	closed    atomic.Bool
	closeOnce sync.Once
}

// New 创建限流器。
// store 的生命周期交由限流器管理，Close 时一并关闭。
func New(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	trusted, err := xnet.TrustedProxies(o.trustedProxies)
	if err != nil {
		return nil, fmt.Errorf("xlimit: invalid trusted proxies: %w", err)
	}

	keyOpts := []KeyBuilderOption{WithKeyBuilderTrustedProxies(trusted)}
	if o.keyPrefix != "" {
		keyOpts = append(keyOpts, WithKeyBuilderPrefix(o.keyPrefix))
	}

	metrics, err := NewMetrics(o.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("xlimit: init metrics: %w", err)
	}

	node := o.node
	if node == "" {
		if hostname, err := os.Hostname(); err == nil {
			node = hostname
		}
	}

	l := &Limiter{
		store:   store,
		keys:    NewKeyBuilder(keyOpts...),
		opts:    o,
		metrics: metrics,
		node:    node,
	}

	// 本地降级存储只在策略需要时创建
	if o.fallback == FallbackLocal {
		var memOpts []MemoryStoreOption
		if o.podCountProvider != nil {
			memOpts = append(memOpts, WithMemoryPodCount(o.podCountProvider))
		}
		l.local = NewMemoryStore(memOpts...)
	}

	var initial *RuleSet
	if len(o.rules) > 0 {
		initial, err = NewRuleSet(o.rules)
		if err != nil {
			return nil, err
		}
	}
	l.registry = NewRegistry(initial, o.logger)

	if o.provider != nil {
		stop, err := l.registry.Bind(context.Background(), o.provider)
		if err != nil {
			if initial == nil {
				return nil, fmt.Errorf("xlimit: bind rule provider: %w", err)
			}
			// 静态规则可用时提供器首次加载失败降级为告警
			o.logger.Warn(context.Background(), "rule provider initial load failed, using static rules",
				slog.Any("error", err),
			)
		} else {
			l.stopWatch = stop
		}
	}

	return l, nil
}

// Registry 返回规则注册表，用于运维侧查看或手动换装规则。
func (l *Limiter) Registry() *Registry {
	return l.registry
}

// Check 对单位成本执行一次限流判定。
func (l *Limiter) Check(ctx context.Context, op string, id Identity) (Decision, error) {
	return l.CheckN(ctx, op, id, 0)
}

// CheckN 对指定成本执行一次限流判定。
// cost <= 0 时使用规则自身的 Cost。
// 唯一的错误是 [ErrLimiterClosed]；其余故障一律吸收为 Decision。
func (l *Limiter) CheckN(ctx context.Context, op string, id Identity, cost int64) (Decision, error) {
	if l.closed.Load() {
		return Decision{}, ErrLimiterClosed
	}

	start := time.Now()
	ctx, span := xmetrics.Start(ctx, l.opts.observer, xmetrics.SpanOptions{
		Component: observedComponent,
		Operation: "check",
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{{Key: "operation", Value: op}},
	})

	d := l.check(ctx, op, id, cost, start)

	span.End(xmetrics.Result{
		Status: xmetrics.StatusOK,
		Attrs: []xmetrics.Attr{
			{Key: "allowed", Value: d.Allowed},
			{Key: "fail_open", Value: d.FailOpen},
		},
	})
	return d, nil
}

// check 执行判定主流程，返回的 Decision 已完成指标与事件上报。
func (l *Limiter) check(ctx context.Context, op string, id Identity, cost int64, start time.Time) Decision {
	rule, ok := l.registry.Get(op)
	if !ok {
		// 未配置规则按放行兜底，限流器的缺省姿态是不拦截
		l.opts.logger.Warn(ctx, "no rule for operation, failing open",
			slog.String("operation", op),
		)
		d := failOpenDecision(Rule{ID: op}, "")
		l.report(ctx, Rule{ID: op}, d, start, 0, "rule_not_found")
		return d
	}

	if !rule.IsEnabled() {
		return Decision{
			Allowed:   true,
			Remaining: int(rule.Capacity),
			Limit:     rule.Capacity,
			RuleID:    rule.ID,
		}
	}

	key, err := l.keys.BuildKey(rule, id)
	if err != nil {
		// 作用域标识缺失是调用方集成问题，惩罚终端用户没有意义
		l.opts.logger.Warn(ctx, "scope resolution failed, failing open",
			slog.String("operation", op),
			slog.String("scope", string(rule.Scope)),
			slog.Any("error", err),
		)
		d := failOpenDecision(rule, "")
		l.report(ctx, rule, d, start, 0, "scope_resolution")
		return d
	}

	if cost <= 0 {
		cost = rule.Cost
	}

	// 判定用独立的超时上下文：请求被取消也要把状态写完，
	// 半程放弃会让桶状态与判定结果脱节
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.storeTimeout)
	storeStart := time.Now()
	d, err := l.store.Evaluate(storeCtx, key, rule, time.Now(), cost)
	cancel()
	storeDuration := time.Since(storeStart)

	if err != nil {
		d = l.fallback(ctx, rule, key, cost, err)
		l.report(ctx, rule, d, start, storeDuration, "store_error")
		return d
	}

	d.RuleID = rule.ID
	d.Key = key
	l.report(ctx, rule, d, start, storeDuration, "")
	return d
}

// fallback 按配置策略吸收存储故障。
func (l *Limiter) fallback(ctx context.Context, rule Rule, key string, cost int64, cause error) Decision {
	l.opts.logger.Error(ctx, "store evaluate failed, applying fallback",
		slog.String("rule", rule.ID),
		slog.String("strategy", string(l.opts.fallback)),
		slog.Any("error", cause),
	)

	switch l.opts.fallback {
	case FallbackLocal:
		// 走到这里原请求可能已被取消，降级判定与配额分摊查询
		// 同样要完整跑完，不跟随取消
		localCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.storeTimeout)
		d, err := l.local.Evaluate(localCtx, key, rule, time.Now(), cost)
		cancel()
		if err != nil {
			return failOpenDecision(rule, key)
		}
		d.RuleID = rule.ID
		d.Key = key
		d.FailOpen = true
		return d

	case FallbackClose:
		return Decision{
			Allowed:   false,
			Remaining: 0,
			Limit:     rule.Capacity,
			RuleID:    rule.ID,
			Key:       key,
		}

	default:
		return failOpenDecision(rule, key)
	}
}

// report 上报指标与审计事件。failReason 非空表示这次判定经历了兜底。
func (l *Limiter) report(ctx context.Context, rule Rule, d Decision, start time.Time, storeDuration time.Duration, failReason string) {
	l.metrics.RecordCheck(ctx, rule.ID, l.store.Type(), d, storeDuration)
	if failReason != "" {
		l.metrics.RecordFailOpen(ctx, rule.ID, failReason)
	}

	if l.opts.eventSink == nil {
		return
	}

	outcome := xevent.KindAllowed
	switch {
	case failReason != "":
		// FallbackLocal/FallbackClose 的结果可能是拒绝，
		// 但兜底事件只记一条 fail_open，不再叠加 denied
		outcome = xevent.KindFailOpen
	case !d.Allowed:
		outcome = xevent.KindDenied
	}

	// 每次判定固定产生 checked + 结果事件各一条，
	// 同一 CorrelationID 串联
	base := xevent.Event{
		CorrelationID: xid.CorrelationID(),
		RuleID:        rule.ID,
		Key:           d.Key,
		Scope:         string(rule.Scope),
		Decision: xevent.DecisionSnapshot{
			Allowed:    d.Allowed,
			RetryAfter: d.RetryAfter,
			Remaining:  d.Remaining,
			Limit:      d.Limit,
			FailOpen:   d.FailOpen,
		},
		Latency: time.Since(start),
		Node:    l.node,
		At:      time.Now(),
	}

	// 事件发布不占用请求的取消信号
	eventCtx := context.WithoutCancel(ctx)
	for _, kind := range []xevent.Kind{xevent.KindChecked, outcome} {
		e := base
		e.ID = xid.EventID()
		e.Kind = kind
		if err := l.opts.eventSink.Publish(eventCtx, e); err != nil {
			l.opts.logger.Debug(ctx, "event publish failed",
				slog.String("rule", rule.ID),
				slog.String("kind", string(kind)),
				slog.Any("error", err),
			)
		}
	}
}

// Peek 查询桶状态，不消耗令牌。
// 未知操作返回 [ErrRuleNotFound]：这是运维接口，不做放行兜底。
func (l *Limiter) Peek(ctx context.Context, op string, id Identity) (BucketState, bool, error) {
	if l.closed.Load() {
		return BucketState{}, false, ErrLimiterClosed
	}

	rule, ok := l.registry.Get(op)
	if !ok {
		return BucketState{}, false, fmt.Errorf("%w: %s", ErrRuleNotFound, op)
	}
	key, err := l.keys.BuildKey(rule, id)
	if err != nil {
		return BucketState{}, false, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, l.opts.storeTimeout)
	defer cancel()
	return l.store.Peek(storeCtx, key, rule, time.Now())
}

// Reset 清空指定操作与身份对应的桶。
func (l *Limiter) Reset(ctx context.Context, op string, id Identity) error {
	if l.closed.Load() {
		return ErrLimiterClosed
	}

	rule, ok := l.registry.Get(op)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, op)
	}
	key, err := l.keys.BuildKey(rule, id)
	if err != nil {
		return err
	}

	storeCtx, cancel := context.WithTimeout(ctx, l.opts.storeTimeout)
	defer cancel()
	return l.store.Reset(storeCtx, key)
}

// Close 关闭限流器。幂等；关闭后所有操作返回 [ErrLimiterClosed]。
// 事件接收器由调用者管理，这里不关闭。
func (l *Limiter) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		if l.stopWatch != nil {
			l.stopWatch()
		}
		err = l.store.Close()
		if l.local != nil {
			if cerr := l.local.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}
