package xclickhouse

import (
	"time"

	"github.com/omeyang/ratekit/internal/storageopt"
	"github.com/omeyang/ratekit/pkg/observability/xlog"
)

const (
	// defaultTopOffendersLimit TopOffenders 默认返回条数
	defaultTopOffendersLimit = 20

	// maxTopOffendersLimit TopOffenders 返回条数上限
	maxTopOffendersLimit = 1000
)

type storeOptions struct {
	healthTimeout      time.Duration
	slowQueryThreshold time.Duration
	logger             xlog.Logger
}

func defaultStoreOptions() *storeOptions {
	return &storeOptions{
		healthTimeout: storageopt.DefaultHealthTimeout,
		logger:        xlog.Nop(),
	}
}

// StoreOption 配置审计存储
type StoreOption func(*storeOptions)

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
