package xdlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const defaultExpiry = 30 * time.Second

// redisLocker 基于 redsync 的 Redis 锁
type redisLocker struct {
	rs     *redsync.Redsync
	prefix string
	expiry time.Duration
}

// RedisLockerOption 配置 Redis 锁
type RedisLockerOption func(*redisLocker)

// WithLockPrefix 设置锁 key 前缀，默认 "ratekit:lock:"
func WithLockPrefix(prefix string) RedisLockerOption {
	return func(l *redisLocker) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithLockExpiry 设置锁的 TTL，默认 30 秒。
// TTL 应大于任务执行时间，否则锁会提前失效。
func WithLockExpiry(d time.Duration) RedisLockerOption {
	return func(l *redisLocker) {
		if d > 0 {
			l.expiry = d
		}
	}
}

// NewRedisLocker 创建 Redis 分布式锁。
// 客户端生命周期由调用者管理。
func NewRedisLocker(client redis.UniversalClient, opts ...RedisLockerOption) (Locker, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	l := &redisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: "ratekit:lock:",
		expiry: defaultExpiry,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// TryLock 实现 Locker 接口
func (l *redisLocker) TryLock(ctx context.Context, key string) (Handle, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	fullKey := l.prefix + key
	// Tries(1): 非阻塞语义，抢不到立即返回
	mutex := l.rs.NewMutex(fullKey,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("xdlock: acquire %s: %w", fullKey, err)
	}

	return &redisHandle{mutex: mutex, key: fullKey}, nil
}

type redisHandle struct {
	mutex *redsync.Mutex
	key   string
}

// Unlock 释放锁。ctx 已取消时改用独立的清理上下文，
// 避免锁残留到 TTL 到期。
func (h *redisHandle) Unlock(ctx context.Context) error {
	if ctx == nil || ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return ErrNotLocked
		}
		return fmt.Errorf("xdlock: unlock %s: %w", h.key, err)
	}
	if !ok {
		return ErrNotLocked
	}
	return nil
}

func (h *redisHandle) Key() string {
	return h.key
}

var (
	_ Locker = (*redisLocker)(nil)
	_ Handle = (*redisHandle)(nil)
)
