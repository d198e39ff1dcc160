package xclickhouse

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/ratekit/pkg/distributed/xdlock"
	"github.com/omeyang/ratekit/pkg/observability/xlog"
)

const (
	// defaultRetentionPeriod 默认保留期
	defaultRetentionPeriod = 30 * 24 * time.Hour

	// defaultRetentionSchedule 默认每天凌晨三点执行
	defaultRetentionSchedule = "0 3 * * *"

	// defaultRetentionLockKey 多实例互斥锁的 key
	defaultRetentionLockKey = "audit-retention"

	// retentionRunTimeout 单轮清理的超时
	retentionRunTimeout = 5 * time.Minute
)

type retentionOptions struct {
	period   time.Duration
	schedule string
	lockKey  string
	logger   xlog.Logger
}

// RetentionOption 配置清理任务
type RetentionOption func(*retentionOptions)

// WithRetentionPeriod 设置事件保留期，默认 30 天
func WithRetentionPeriod(d time.Duration) RetentionOption {
	return func(o *retentionOptions) {
		if d > 0 {
			o.period = d
		}
	}
}

// WithRetentionSchedule 设置 cron 表达式，默认每天 03:00
func WithRetentionSchedule(spec string) RetentionOption {
	return func(o *retentionOptions) {
		if spec != "" {
			o.schedule = spec
		}
	}
}

// WithRetentionLockKey 设置互斥锁 key
func WithRetentionLockKey(key string) RetentionOption {
	return func(o *retentionOptions) {
		if key != "" {
			o.lockKey = key
		}
	}
}

// WithRetentionLogger 设置日志记录器，默认静默
func WithRetentionLogger(logger xlog.Logger) RetentionOption {
	return func(o *retentionOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// RetentionJob 周期清理超过保留期的审计事件。
// 多实例部署时通过分布式锁保证同一轮只有一个实例执行，
// 抢不到锁的实例跳过本轮。
type RetentionJob struct {
	store  *Store
	locker xdlock.Locker
	cron   *cron.Cron
	opts   *retentionOptions
}

// NewRetentionJob 创建清理任务。locker 传 nil 时退化为单实例模式。
func NewRetentionJob(store *Store, locker xdlock.Locker, opts ...RetentionOption) (*RetentionJob, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if locker == nil {
		locker = xdlock.NewNoopLocker()
	}

	options := &retentionOptions{
		period:   defaultRetentionPeriod,
		schedule: defaultRetentionSchedule,
		lockKey:  defaultRetentionLockKey,
		logger:   xlog.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &RetentionJob{
		store:  store,
		locker: locker,
		cron:   cron.New(),
		opts:   options,
	}, nil
}

// Start 注册调度并启动。表达式非法时返回错误。
func (j *RetentionJob) Start() error {
	_, err := j.cron.AddFunc(j.opts.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), retentionRunTimeout)
		defer cancel()
		j.runOnce(ctx)
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop 停止调度，等待进行中的清理结束
func (j *RetentionJob) Stop() {
	<-j.cron.Stop().Done()
}

func (j *RetentionJob) runOnce(ctx context.Context) {
	handle, err := j.locker.TryLock(ctx, j.opts.lockKey)
	if err != nil {
		j.opts.logger.Warn(ctx, "retention lock failed", slog.Any("error", err))
		return
	}
	if handle == nil {
		j.opts.logger.Debug(ctx, "retention skipped, held by another instance")
		return
	}
	defer func() {
		if err := handle.Unlock(ctx); err != nil {
			j.opts.logger.Warn(ctx, "retention unlock failed", slog.Any("error", err))
		}
	}()

	cutoff := time.Now().Add(-j.opts.period)
	if err := j.store.DeleteBefore(ctx, cutoff); err != nil {
		j.opts.logger.Warn(ctx, "retention purge failed",
			slog.Time("cutoff", cutoff),
			slog.Any("error", err),
		)
		return
	}
	j.opts.logger.Info(ctx, "retention purge submitted", slog.Time("cutoff", cutoff))
}
