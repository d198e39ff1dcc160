package xlimit

import (
	"context"
	"time"
)

//go:generate mockgen -source=store.go -destination=mock_store_test.go -package=xlimit

// BucketState 桶的持久化状态快照。
type BucketState struct {
	// Tokens 上次观测后的令牌数。
	Tokens float64 `json:"tokens"`
	// Last 上次观测时间。
	Last time.Time `json:"last"`
}

// Store 桶存储抽象。
//
// Evaluate 必须原子完成 refill-check-consume：并发判定不允许
// 交错读写同一个桶。实现必须并发安全；所有故障以包装了
// [ErrStoreUnavailable] 的错误返回，不向调用方泄露裸传输错误。
type Store interface {
	// Evaluate 对 key 执行一次扣减 cost 的判定并写回新状态。
	// 返回的 Decision 不含 RuleID/Key 注记，由调用方补齐。
	Evaluate(ctx context.Context, key string, rule Rule, now time.Time, cost int64) (Decision, error)

	// Peek 读取桶状态，不消耗令牌。桶不存在时第二个返回值为 false。
	Peek(ctx context.Context, key string, rule Rule, now time.Time) (BucketState, bool, error)

	// Reset 删除桶，下次判定按满桶初始化。
	Reset(ctx context.Context, key string) error

	// Close 释放存储资源。
	Close() error

	// Type 返回存储类型标识，用于日志和指标。
	Type() string
}
