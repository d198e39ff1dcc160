package xevent

import (
	"fmt"
	"time"

	"github.com/omeyang/ratekit/pkg/observability/xlog"
	"github.com/omeyang/ratekit/pkg/observability/xsampling"
	"github.com/omeyang/ratekit/pkg/resilience/xretry"
)

const (
	defaultQueueSize      = 4096
	defaultWorkers        = 2
	defaultPublishTimeout = 3 * time.Second
	defaultCloseTimeout   = 5 * time.Second
)

type dispatcherOptions struct {
	queueSize      int
	workers        int
	publishTimeout time.Duration
	closeTimeout   time.Duration
	logger         xlog.Logger
	retryer        *xretry.Retryer
	sampler        xsampling.Sampler
	suppressWindow time.Duration
}

// DispatcherOption 配置 [Dispatcher]。
type DispatcherOption func(*dispatcherOptions)

// WithQueueSize 设置有界队列容量，默认 4096。
func WithQueueSize(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.queueSize = n
	}
}

// WithWorkers 设置排空 worker 数量，默认 2。
func WithWorkers(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.workers = n
	}
}

// WithPublishTimeout 设置单条事件下发的超时，默认 3s。
func WithPublishTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.publishTimeout = d
		}
	}
}

// WithCloseTimeout 设置 Close 时等待队列排空的上限，默认 5s。
func WithCloseTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.closeTimeout = d
		}
	}
}

// WithLogger 设置结构化日志，默认不输出。
func WithLogger(logger xlog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRetryer 设置下发失败的重试执行器。
// 默认最多尝试 3 次，固定 50ms 间隔。
func WithRetryer(r *xretry.Retryer) DispatcherOption {
	return func(o *dispatcherOptions) {
		if r != nil {
			o.retryer = r
		}
	}
}

// WithSampler 设置 checked/allowed 事件的采样器。
// 默认不采样（全量下发）。denied/fail_open 永不经过采样。
func WithSampler(s xsampling.Sampler) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.sampler = s
	}
}

// WithSuppressWindow 启用 denied 风暴抑制，窗口内同键 denied
// 折叠为计数。默认关闭（0）。
func WithSuppressWindow(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.suppressWindow = d
	}
}

func defaultDispatcherOptions() *dispatcherOptions {
	policy, _ := xretry.NewMaxAttempts(3)
	return &dispatcherOptions{
		queueSize:      defaultQueueSize,
		workers:        defaultWorkers,
		publishTimeout: defaultPublishTimeout,
		closeTimeout:   defaultCloseTimeout,
		logger:         xlog.Nop(),
		retryer: xretry.NewRetryer(
			xretry.WithRetryPolicy(policy),
			xretry.WithBackoffPolicy(xretry.NewFixedBackoff(50*time.Millisecond)),
		),
	}
}

func (o *dispatcherOptions) validate() error {
	if o.queueSize <= 0 {
		return fmt.Errorf("%w: queue size %d <= 0", ErrInvalidConfig, o.queueSize)
	}
	if o.workers <= 0 {
		return fmt.Errorf("%w: workers %d <= 0", ErrInvalidConfig, o.workers)
	}
	return nil
}
