package xbreaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/ratekit/pkg/observability/xlog"
)

// =============================================================================
// 默认配置
// =============================================================================

const (
	// defaultTimeout 打开状态持续时长，超时后进入半开试探
	defaultTimeout = 60 * time.Second

	// defaultInterval 关闭状态下统计窗口的重置周期
	defaultInterval = 60 * time.Second

	// defaultMaxRequests 半开状态下允许的试探请求数
	defaultMaxRequests = 1

	// defaultConsecutiveFailures 默认熔断阈值
	defaultConsecutiveFailures = 5
)

// =============================================================================
// 熔断器
// =============================================================================

// Breaker 熔断器。对 gobreaker 的薄封装，补充状态变更日志与回调。
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

// options 熔断器配置
type options struct {
	tripPolicy    TripPolicy
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	logger        xlog.Logger
	onStateChange func(name string, from, to gobreaker.State)
}

// Option 配置选项
type Option func(*options)

// WithTripPolicy 设置熔断判定策略
func WithTripPolicy(policy TripPolicy) Option {
	return func(o *options) {
		if policy != nil {
			o.tripPolicy = policy
		}
	}
}

// WithTimeout 设置打开状态持续时长
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithInterval 设置关闭状态下统计窗口的重置周期
func WithInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.interval = interval
		}
	}
}

// WithMaxRequests 设置半开状态下允许的试探请求数
func WithMaxRequests(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRequests = n
		}
	}
}

// WithLogger 设置日志记录器，状态变更会以 Warn 级别记录
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOnStateChange 设置状态变更回调，在日志之外额外触发
func WithOnStateChange(fn func(name string, from, to gobreaker.State)) Option {
	return func(o *options) {
		o.onStateChange = fn
	}
}

// NewBreaker 创建熔断器。
// 默认策略为连续失败 5 次熔断，打开 60 秒后半开试探 1 个请求。
func NewBreaker(name string, opts ...Option) (*Breaker, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	o := &options{
		tripPolicy:  ConsecutiveFailures(defaultConsecutiveFailures),
		timeout:     defaultTimeout,
		interval:    defaultInterval,
		maxRequests: defaultMaxRequests,
		logger:      xlog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: o.maxRequests,
		Interval:    o.interval,
		Timeout:     o.timeout,
		ReadyToTrip: o.tripPolicy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.Warn(context.Background(), "breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if o.onStateChange != nil {
				o.onStateChange(name, from, to)
			}
		},
	}

	return &Breaker{
		name: name,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}, nil
}

// Name 返回熔断器名称
func (b *Breaker) Name() string {
	return b.name
}

// State 返回当前状态
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Counts 返回当前统计窗口数据
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// Do 在熔断器保护下执行 fn。
// 熔断器拒绝时返回 BreakerError；fn 自身的错误原样返回。
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}

	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return wrapBreakerError(b.name, err)
}

// Execute 在熔断器保护下执行带返回值的 fn
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}

	result, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, wrapBreakerError(b.name, err)
	}

	v, ok := result.(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}
