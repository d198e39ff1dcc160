package xdlock

import "context"

// Handle 表示一次成功的锁获取。
// 每次 TryLock 成功返回新的 handle，内部封装唯一标识，
// 只有持有该标识的 handle 才能释放对应的锁。
type Handle interface {
	// Unlock 释放锁。
	// 返回 ErrNotLocked 表示锁已过期或被其他获取覆盖。
	Unlock(ctx context.Context) error

	// Key 返回锁的完整 key，用于日志记录
	Key() string
}

// Locker 分布式锁接口。
//
// TryLock 非阻塞式获取: 成功返回 Handle，被其他实例持有返回
// (nil, nil)，锁服务异常返回错误。后台任务只需要这一种语义，
// 抢不到锁就跳过本轮，不做阻塞等待。
type Locker interface {
	TryLock(ctx context.Context, key string) (Handle, error)
}

// =============================================================================
// Noop 实现
// =============================================================================

// noopLocker 总是成功的空实现，单实例部署无需真实互斥。
type noopLocker struct{}

// NewNoopLocker 创建空锁实现
func NewNoopLocker() Locker {
	return noopLocker{}
}

func (noopLocker) TryLock(_ context.Context, key string) (Handle, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	return noopHandle{key: key}, nil
}

type noopHandle struct{ key string }

func (noopHandle) Unlock(context.Context) error { return nil }
func (h noopHandle) Key() string                { return h.key }

var (
	_ Locker = noopLocker{}
	_ Handle = noopHandle{}
)
