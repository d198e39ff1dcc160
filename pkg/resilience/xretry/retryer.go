package xretry

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// Retryer 重试执行器，组合重试判定与退避计算两个策略。
// 底层基于 avast/retry-go/v5。
type Retryer struct {
	retryPolicy   RetryPolicy
	backoffPolicy BackoffPolicy
	onRetry       func(attempt int, err error)
}

// RetryerOption 配置 [Retryer]。
type RetryerOption func(*Retryer)

// WithRetryPolicy 设置重试判定策略，nil 被忽略。
func WithRetryPolicy(p RetryPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.retryPolicy = p
		}
	}
}

// WithBackoffPolicy 设置退避策略，nil 被忽略。
func WithBackoffPolicy(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoffPolicy = p
		}
	}
}

// WithOnRetry 设置每次重试前的回调，attempt 从 1 开始计。
func WithOnRetry(fn func(attempt int, err error)) RetryerOption {
	return func(r *Retryer) {
		if fn != nil {
			r.onRetry = fn
		}
	}
}

// NewRetryer 创建重试执行器。
// 默认最多尝试 3 次，指数退避 100ms..2s。
func NewRetryer(opts ...RetryerOption) *Retryer {
	defaultPolicy, _ := NewMaxAttempts(3)
	r := &Retryer{
		retryPolicy:   defaultPolicy,
		backoffPolicy: NewExponentialBackoff(100*time.Millisecond, 2*time.Second),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do 执行 fn，按策略重试直至成功、耗尽预算或 ctx 终止。
// 返回最后一次失败的错误；被 [Permanent] 标记的错误立即终止。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	return retry.New(r.buildOptions(ctx)...).Do(func() error {
		return fn(ctx)
	})
}

// DoWithResult 执行带返回值的 fn，重试语义与 [Retryer.Do] 一致。
// 泛型方法受语言限制，只能做成包级函数。
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		r = NewRetryer()
	}
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	return retry.NewWithData[T](r.buildOptions(ctx)...).Do(func() (T, error) {
		return fn(ctx)
	})
}

// buildOptions 把策略对翻译为 retry-go 的选项。
// 每次调用重建选项切片，RetryIf 闭包内的计数器不跨调用复用。
func (r *Retryer) buildOptions(ctx context.Context) []retry.Option {
	policy := r.retryPolicy
	if policy == nil {
		policy, _ = NewMaxAttempts(3)
	}
	backoff := r.backoffPolicy
	if backoff == nil {
		backoff = NewExponentialBackoff(100*time.Millisecond, 2*time.Second)
	}

	opts := make([]retry.Option, 0, 6)
	opts = append(opts, retry.Context(ctx))

	// MaxAttempts <= 0 表示不限次，终止完全交给 ctx
	if max := policy.MaxAttempts(); max <= 0 {
		opts = append(opts, retry.UntilSucceeded())
	} else {
		opts = append(opts, retry.Attempts(uint(max)))
	}

	// attemptCount 是已失败次数（1-based），与 ShouldRetry 的语义一致。
	// 原子计数防止执行器被并发复用时产生数据竞争。
	var attemptCount atomic.Int64
	opts = append(opts, retry.RetryIf(func(err error) bool {
		count := int(attemptCount.Add(1))
		if IsPermanent(err) {
			return false
		}
		return policy.ShouldRetry(count, err)
	}))

	// retry-go v5 的 DelayType 参数 n 从 1 开始，与 NextDelay 对齐
	opts = append(opts, retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
		return backoff.NextDelay(uintToInt(n))
	}))

	if r.onRetry != nil {
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			// OnRetry 的 n 从 0 开始，转成 1-based
			r.onRetry(uintToInt(n)+1, err)
		}))
	}

	opts = append(opts, retry.LastErrorOnly(true))
	return opts
}

func uintToInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}
