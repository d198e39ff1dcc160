package eventcore

import (
	"context"
	"time"

	"github.com/omeyang/ratekit/pkg/resilience/xretry"
)

// DrainFunc 单次排空函数签名。
// 返回 error 时触发退避后重试，返回 nil 时重置退避。
type DrainFunc func(ctx context.Context) error

// DrainLoopOptions 排空循环配置。
type DrainLoopOptions struct {
	// Backoff 退避策略，默认指数退避 100ms..30s。
	Backoff xretry.BackoffPolicy

	// OnError 错误回调，可选，用于记录日志或指标。
	OnError func(err error)
}

// DrainLoopOption 配置函数类型。
type DrainLoopOption func(*DrainLoopOptions)

// WithBackoff 设置退避策略，nil 被忽略。
func WithBackoff(backoff xretry.BackoffPolicy) DrainLoopOption {
	return func(o *DrainLoopOptions) {
		if backoff != nil {
			o.Backoff = backoff
		}
	}
}

// WithOnError 设置错误回调。
func WithOnError(onError func(err error)) DrainLoopOption {
	return func(o *DrainLoopOptions) {
		o.OnError = onError
	}
}

// DefaultBackoff 返回排空循环的默认退避策略。
func DefaultBackoff() xretry.BackoffPolicy {
	return xretry.NewExponentialBackoff(100*time.Millisecond, 30*time.Second)
}

// RunDrainLoop 循环执行 drain，直到 ctx 终止。
//
// 单次执行失败时按退避策略等待后继续，成功时重置退避计数。
// 事件链路的失败不影响限流判定主路径，循环永不因业务错误退出。
// ctx 终止时返回 ctx.Err()。
func RunDrainLoop(ctx context.Context, drain DrainFunc, opts ...DrainLoopOption) error {
	options := &DrainLoopOptions{
		Backoff: DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(options)
	}

	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := drain(ctx); err != nil {
				attempt++

				if options.OnError != nil {
					options.OnError(err)
				}

				delay := options.Backoff.NextDelay(attempt)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			} else {
				attempt = 0
			}
		}
	}
}
