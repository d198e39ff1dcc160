package xclickhouse

import (
	"context"
	"log/slog"
	"time"

	"github.com/omeyang/ratekit/internal/eventcore"
	"github.com/omeyang/ratekit/pkg/observability/xevent"
)

// SinkOption 配置审计事件汇
type SinkOption func(*sinkConfig)

type sinkConfig struct {
	batchSize     int
	flushInterval time.Duration
}

// WithSinkBatchSize 设置攒批大小，默认 256
func WithSinkBatchSize(n int) SinkOption {
	return func(c *sinkConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithSinkFlushInterval 设置定时落库间隔，默认 5 秒
func WithSinkFlushInterval(d time.Duration) SinkOption {
	return func(c *sinkConfig) {
		if d > 0 {
			c.flushInterval = d
		}
	}
}

// auditSink 把事件攒批写入 Store，实现 xevent.Sink
type auditSink struct {
	batcher *eventcore.Batcher[xevent.Event]
}

// Sink 返回把事件批量落库的 xevent.Sink。
// 落库失败的批次丢弃并记日志，审计允许有损，不反压判定路径。
func (s *Store) Sink(opts ...SinkOption) xevent.Sink {
	cfg := &sinkConfig{
		batchSize:     eventcore.DefaultBatchSize,
		flushInterval: eventcore.DefaultFlushInterval,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	batcher := eventcore.NewBatcher(
		func(ctx context.Context, batch []xevent.Event) error {
			return s.InsertEvents(ctx, batch)
		},
		eventcore.WithBatchSize[xevent.Event](cfg.batchSize),
		eventcore.WithFlushInterval[xevent.Event](cfg.flushInterval),
		eventcore.WithFlushOnError[xevent.Event](func(err error) {
			s.opts.logger.Warn(context.Background(), "audit batch insert failed",
				slog.Any("error", err),
			)
		}),
	)
	return &auditSink{batcher: batcher}
}

// Publish 实现 xevent.Sink 接口
func (a *auditSink) Publish(ctx context.Context, e xevent.Event) error {
	return a.batcher.Add(ctx, e)
}

// Close 实现 xevent.Sink 接口，落盘剩余缓冲
func (a *auditSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.batcher.Close(ctx)
}

var _ xevent.Sink = (*auditSink)(nil)
