package xmongo

import (
	"time"

	"github.com/omeyang/ratekit/internal/storageopt"
	"github.com/omeyang/ratekit/pkg/observability/xlog"
)

const (
	// defaultRetention 审计事件默认保留期
	defaultRetention = 7 * 24 * time.Hour

	// defaultInsertBatchSize 单次 InsertMany 的文档数上限。
	// 过大的批次会触碰 MongoDB 的 16MB 请求限制。
	defaultInsertBatchSize = 1000

	// maxPageSize 分页查询每页上限
	maxPageSize = 1000
)

type storeOptions struct {
	retention          time.Duration
	insertBatchSize    int
	healthTimeout      time.Duration
	slowQueryThreshold time.Duration
	logger             xlog.Logger
}

func defaultStoreOptions() *storeOptions {
	return &storeOptions{
		retention:       defaultRetention,
		insertBatchSize: defaultInsertBatchSize,
		healthTimeout:   storageopt.DefaultHealthTimeout,
		logger:          xlog.Nop(),
	}
}

// StoreOption 配置审计存储
type StoreOption func(*storeOptions)

// WithRetention 设置事件保留期，体现在 TTL 索引上，默认 7 天。
// 修改保留期需要重建索引（EnsureIndexes 使用 collMod 以外的简单建法，
// 变更时先删除旧的 at TTL 索引）。
func WithRetention(d time.Duration) StoreOption {
	return func(o *storeOptions) {
		if d > 0 {
			o.retention = d
		}
	}
}

// WithInsertBatchSize 设置单次批量写入的文档数上限，默认 1000
func WithInsertBatchSize(n int) StoreOption {
	return func(o *storeOptions) {
		if n > 0 {
			o.insertBatchSize = n
		}
	}
}

// WithHealthTimeout 设置健康检查超时，默认 5 秒
func WithHealthTimeout(d time.Duration) StoreOption {
	return func(o *storeOptions) {
		if d > 0 {
			o.healthTimeout = d
		}
	}
}

// WithSlowQueryThreshold 设置慢查询阈值，0 关闭检测
func WithSlowQueryThreshold(d time.Duration) StoreOption {
	return func(o *storeOptions) {
		o.slowQueryThreshold = d
	}
}

// WithLogger 设置日志记录器，默认静默
func WithLogger(logger xlog.Logger) StoreOption {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
