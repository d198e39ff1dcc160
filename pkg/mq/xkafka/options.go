package xkafka

import (
	"time"

	"github.com/omeyang/ratekit/internal/eventcore"
	"github.com/omeyang/ratekit/pkg/observability/xlog"
)

const (
	defaultFlushTimeout  = 10 * time.Second
	defaultHealthTimeout = 5 * time.Second
)

type sinkOptions struct {
	flushTimeout  time.Duration
	healthTimeout time.Duration
	tracer        eventcore.Tracer
	logger        xlog.Logger
}

func defaultSinkOptions() *sinkOptions {
	return &sinkOptions{
		flushTimeout:  defaultFlushTimeout,
		healthTimeout: defaultHealthTimeout,
		tracer:        eventcore.NoopTracer{},
		logger:        xlog.Nop(),
	}
}

// SinkOption 配置 Kafka 事件汇
type SinkOption func(*sinkOptions)

// WithFlushTimeout 设置 Close 时等待消息投递完成的超时，默认 10 秒
func WithFlushTimeout(d time.Duration) SinkOption {
	return func(o *sinkOptions) {
		if d > 0 {
			o.flushTimeout = d
		}
	}
}

// WithHealthTimeout 设置健康检查超时，默认 5 秒
func WithHealthTimeout(d time.Duration) SinkOption {
	return func(o *sinkOptions) {
		if d > 0 {
			o.healthTimeout = d
		}
	}
}

// WithTracer 设置消息头追踪注入器，默认不注入
func WithTracer(tracer eventcore.Tracer) SinkOption {
	return func(o *sinkOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithLogger 设置日志记录器，默认静默
func WithLogger(logger xlog.Logger) SinkOption {
	return func(o *sinkOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
