package xlimit

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/ratekit/pkg/resilience/xbreaker"
)

// breakerStore 带熔断保护的桶存储装饰器。
//
// 仅保护判定路径 Evaluate：存储持续故障时打开熔断，后续判定立即
// 返回 ErrStoreUnavailable 而不是逐个等待超时，由上层走降级路径。
// Peek/Reset 是低频运维操作，直接透传。
type breakerStore struct {
	inner   Store
	breaker *xbreaker.Breaker
}

// NewBreakerStore 用熔断器包装存储。
// 熔断策略由调用者通过 breaker 配置；传入 nil breaker 时原样返回 inner。
func NewBreakerStore(inner Store, breaker *xbreaker.Breaker) (Store, error) {
	if inner == nil {
		return nil, ErrNilStore
	}
	if breaker == nil {
		return inner, nil
	}
	return &breakerStore{inner: inner, breaker: breaker}, nil
}

// Evaluate 实现 Store 接口。熔断器打开时立即失败。
func (s *breakerStore) Evaluate(ctx context.Context, key string, rule Rule, now time.Time, cost int64) (Decision, error) {
	d, err := xbreaker.Execute(ctx, s.breaker, func(ctx context.Context) (Decision, error) {
		return s.inner.Evaluate(ctx, key, rule, now, cost)
	})
	if err != nil {
		if xbreaker.IsBreakerError(err) {
			return Decision{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return Decision{}, err
	}
	return d, nil
}

// Peek 实现 Store 接口。
func (s *breakerStore) Peek(ctx context.Context, key string, rule Rule, now time.Time) (BucketState, bool, error) {
	return s.inner.Peek(ctx, key, rule, now)
}

// Reset 实现 Store 接口。
func (s *breakerStore) Reset(ctx context.Context, key string) error {
	return s.inner.Reset(ctx, key)
}

// Close 实现 Store 接口。
func (s *breakerStore) Close() error {
	return s.inner.Close()
}

// Type 实现 Store 接口。
func (s *breakerStore) Type() string {
	return "breaker(" + s.inner.Type() + ")"
}

var _ Store = (*breakerStore)(nil)
