package xlimit

import (
	"context"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/omeyang/ratekit/pkg/util/xkeylock"
)

// StoreTypeMemory 内存存储的类型标识
const StoreTypeMemory = "memory"

const (
	// defaultMemoryStoreSize 内存桶上限，超出时 LRU 淘汰。
	// 被淘汰或过期的桶在下次判定时按满桶重建，语义等价于
	// 长时间未访问后补满的桶。
	defaultMemoryStoreSize = 100_000

	// defaultMemoryStoreTTL 桶条目的回收时长
	defaultMemoryStoreTTL = 10 * time.Minute
)

// memoryBucket 单个桶的内存状态。访问前必须持有对应键的条带锁。
type memoryBucket struct {
	tokens float64
	last   time.Time
}

// memoryStore 进程内桶存储。
//
// 用于测试、单实例部署和 FallbackLocal 降级。条带锁保证同键判定
// 原子；LRU+TTL 仅作回收优化，不影响判定语义。降级场景下配额按
// Pod 数分摊。
type memoryStore struct {
	buckets  *expirable.LRU[string, *memoryBucket]
	locks    *xkeylock.Striped
	podCount PodCountProvider
}

// MemoryStoreOption 配置内存存储。
type MemoryStoreOption func(*memoryStore)

// WithMemoryPodCount 设置 Pod 数量提供器。
// 生效时按 ceil(容量/Pod 数) 分摊每实例配额，用于降级场景。
func WithMemoryPodCount(provider PodCountProvider) MemoryStoreOption {
	return func(s *memoryStore) {
		if provider != nil {
			s.podCount = provider
		}
	}
}

// NewMemoryStore 创建内存桶存储。
func NewMemoryStore(opts ...MemoryStoreOption) Store {
	s := &memoryStore{
		buckets: expirable.NewLRU[string, *memoryBucket](defaultMemoryStoreSize, nil, defaultMemoryStoreTTL),
		locks:   xkeylock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate 实现 Store 接口。
func (s *memoryStore) Evaluate(ctx context.Context, key string, rule Rule, now time.Time, cost int64) (Decision, error) {
	capacity := s.effectiveCapacity(ctx, rule.Capacity)

	unlock := s.locks.Lock(key)
	defer unlock()

	b, ok := s.buckets.Get(key)
	if !ok {
		// 首次观测按满桶初始化
		b = &memoryBucket{tokens: float64(capacity), last: now}
	}

	out := evaluateBucket(capacity, rule.RefillPerMinute, b.tokens, b.last, now, cost)

	b.tokens = out.tokens
	b.last = now
	s.buckets.Add(key, b)

	return Decision{
		Allowed:    out.allowed,
		RetryAfter: out.retryAfter,
		Remaining:  out.remaining,
		Limit:      rule.Capacity,
		ResetAfter: resetAfterSeconds(Rule{Capacity: capacity, RefillPerMinute: rule.RefillPerMinute}, out.tokens),
	}, nil
}

// Peek 实现 Store 接口。
func (s *memoryStore) Peek(_ context.Context, key string, _ Rule, _ time.Time) (BucketState, bool, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	b, ok := s.buckets.Get(key)
	if !ok {
		return BucketState{}, false, nil
	}
	return BucketState{Tokens: b.tokens, Last: b.last}, true, nil
}

// Reset 实现 Store 接口。
func (s *memoryStore) Reset(_ context.Context, key string) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	s.buckets.Remove(key)
	return nil
}

// Close 实现 Store 接口。
func (s *memoryStore) Close() error {
	s.buckets.Purge()
	return nil
}

// Type 实现 Store 接口。
func (s *memoryStore) Type() string {
	return StoreTypeMemory
}

// effectiveCapacity 按 Pod 数分摊容量，向上取整且至少为 1。
// 提供器出错时按不分摊处理，宁可放多不可误杀。
func (s *memoryStore) effectiveCapacity(ctx context.Context, capacity int64) int64 {
	if s.podCount == nil {
		return capacity
	}
	n, err := s.podCount.GetPodCount(ctx)
	if err != nil || n <= 1 {
		return capacity
	}
	divided := int64(math.Ceil(float64(capacity) / float64(n)))
	if divided < 1 {
		divided = 1
	}
	return divided
}

var _ Store = (*memoryStore)(nil)
