package xlimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreTypeRedis Redis 存储的类型标识
const StoreTypeRedis = "redis"

// redisStore 基于 Redis 的桶存储。
// refill-check-consume 由服务端 Lua 脚本原子完成，一次判定一个
// 往返；键上的哈希标签保证集群模式下脚本单 slot 执行。
type redisStore struct {
	client  redis.UniversalClient
	scripts *scripts
}

// NewRedisStore 创建 Redis 桶存储。
// 客户端由调用者管理，Close 不关闭连接。
func NewRedisStore(client redis.UniversalClient) (Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &redisStore{
		client:  client,
		scripts: getScripts(),
	}, nil
}

// Evaluate 实现 Store 接口。
func (s *redisStore) Evaluate(ctx context.Context, key string, rule Rule, now time.Time, cost int64) (Decision, error) {
	args := []any{
		now.UnixMicro(),
		rule.Capacity * microPerToken,
		rule.RefillPerSecond() * microPerToken,
		cost * microPerToken,
		int64(rule.TTL().Seconds()),
	}

	result, err := s.evalInt64Slice(ctx, s.scripts.evaluate, []string{key}, args...)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: evaluate script: %w", ErrStoreUnavailable, err)
	}
	// evaluate 返回 {allowed, retry_after_micros, remaining, tokens_micro}
	if err := validateScriptResult(result, 4); err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	tokens := float64(result[3]) / microPerToken
	return Decision{
		Allowed:    result[0] == 1,
		RetryAfter: float64(result[1]) / microPerToken,
		Remaining:  int(result[2]),
		Limit:      rule.Capacity,
		ResetAfter: resetAfterSeconds(rule, tokens),
	}, nil
}

// Peek 实现 Store 接口。
func (s *redisStore) Peek(ctx context.Context, key string, rule Rule, _ time.Time) (BucketState, bool, error) {
	result, err := s.evalInt64Slice(ctx, s.scripts.peek, []string{key})
	if err != nil {
		return BucketState{}, false, fmt.Errorf("%w: peek script: %w", ErrStoreUnavailable, err)
	}
	// peek 返回 {present, tokens_micro, last_micros}
	if err := validateScriptResult(result, 3); err != nil {
		return BucketState{}, false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if result[0] == 0 {
		return BucketState{}, false, nil
	}
	return BucketState{
		Tokens: float64(result[1]) / microPerToken,
		Last:   time.UnixMicro(result[2]),
	}, true, nil
}

// Reset 实现 Store 接口。
func (s *redisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: del: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Close 实现 Store 接口。Redis 客户端由调用者管理，这里不关闭。
func (s *redisStore) Close() error {
	return nil
}

// Type 实现 Store 接口。
func (s *redisStore) Type() string {
	return StoreTypeRedis
}

// evalInt64Slice 执行 Lua 脚本并安全转换返回值为 []int64。
// 防止 Redis 返回非预期类型时 panic。
func (s *redisStore) evalInt64Slice(ctx context.Context, script *redis.Script, keys []string, args ...any) ([]int64, error) {
	val, err := script.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return nil, err
	}
	return convertScriptResult(val)
}

// resetAfterSeconds 桶从当前令牌数补满的预估秒数。
func resetAfterSeconds(rule Rule, tokens float64) float64 {
	missing := float64(rule.Capacity) - tokens
	if missing <= 0 {
		return 0
	}
	return math.Ceil(missing / rule.RefillPerSecond())
}

var _ Store = (*redisStore)(nil)
