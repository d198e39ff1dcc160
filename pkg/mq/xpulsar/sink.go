package xpulsar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/omeyang/ratekit/internal/eventcore"
	"github.com/omeyang/ratekit/pkg/observability/xevent"
	"github.com/omeyang/ratekit/pkg/observability/xlog"
)

// pulsarProducer Sink 需要的最小生产者能力，便于注入测试替身。
// pulsar.Producer 天然满足此接口。
type pulsarProducer interface {
	SendAsync(ctx context.Context, msg *pulsar.ProducerMessage, callback func(pulsar.MessageID, *pulsar.ProducerMessage, error))
	FlushWithCtx(ctx context.Context) error
	Close()
}

var _ pulsarProducer = (pulsar.Producer)(nil)

// SinkStats 事件汇统计
type SinkStats struct {
	Published int64
	Bytes     int64
	Errors    int64
}

type sinkOptions struct {
	flushTimeout time.Duration
	tracer       eventcore.Tracer
	logger       xlog.Logger
	producerOpts func(*pulsar.ProducerOptions)
}

// SinkOption 配置 Pulsar 事件汇
type SinkOption func(*sinkOptions)

// WithFlushTimeout 设置 Close 时等待发送完成的超时，默认 10 秒
func WithFlushTimeout(d time.Duration) SinkOption {
	return func(o *sinkOptions) {
		if d > 0 {
			o.flushTimeout = d
		}
	}
}

// WithTracer 设置消息属性追踪注入器，默认不注入
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

// WithProducerOptions 在创建 producer 前调整原生选项（压缩、批量等）
func WithProducerOptions(fn func(*pulsar.ProducerOptions)) SinkOption {
	return func(o *sinkOptions) {
		if fn != nil {
			o.producerOpts = fn
		}
	}
}

func defaultSinkOptions() *sinkOptions {
	return &sinkOptions{
		flushTimeout: 10 * time.Second,
		tracer:       eventcore.NoopTracer{},
		logger:       xlog.Nop(),
	}
}

// Sink 把限流判定事件写入 Pulsar topic，实现 xevent.Sink。
type Sink struct {
	producer pulsarProducer
	topic    string
	opts     *sinkOptions

	closed    atomic.Bool
	published atomic.Int64
	bytes     atomic.Int64
	errors    atomic.Int64
}

// NewSink 创建 Pulsar 事件汇。
// 客户端由调用者管理生命周期，Sink 只关闭自己创建的 producer。
func NewSink(client pulsar.Client, topic string, opts ...SinkOption) (*Sink, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	options := defaultSinkOptions()
	for _, opt := range opts {
		opt(options)
	}

	producerOptions := pulsar.ProducerOptions{Topic: topic}
	if options.producerOpts != nil {
		options.producerOpts(&producerOptions)
		// topic 不允许被覆盖
		producerOptions.Topic = topic
	}

	producer, err := client.CreateProducer(producerOptions)
	if err != nil {
		return nil, fmt.Errorf("xpulsar: create producer: %w", err)
	}
	return newSink(producer, topic, options), nil
}

func newSink(producer pulsarProducer, topic string, options *sinkOptions) *Sink {
	return &Sink{
		producer: producer,
		topic:    topic,
		opts:     options,
	}
}

// Publish 实现 xevent.Sink 接口。
// 异步发送，投递结果在回调中统计。
func (s *Sink) Publish(ctx context.Context, e xevent.Event) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("xpulsar: marshal event: %w", err)
	}

	properties := map[string]string{
		"kind":    string(e.Kind),
		"rule_id": e.RuleID,
	}
	s.opts.tracer.Inject(ctx, properties)

	msg := &pulsar.ProducerMessage{
		Payload:    payload,
		Key:        e.Key,
		Properties: properties,
		EventTime:  e.At,
	}

	size := int64(len(payload))
	s.producer.SendAsync(ctx, msg, func(_ pulsar.MessageID, _ *pulsar.ProducerMessage, err error) {
		if err != nil {
			s.errors.Add(1)
			s.opts.logger.Warn(context.Background(), "event publish failed",
				slog.String("topic", s.topic),
				slog.Any("error", err),
			)
			return
		}
		s.published.Add(1)
		s.bytes.Add(size)
	})
	return nil
}

// Stats 返回投递统计
func (s *Sink) Stats() SinkStats {
	return SinkStats{
		Published: s.published.Load(),
		Bytes:     s.bytes.Load(),
		Errors:    s.errors.Load(),
	}
}

// Close 实现 xevent.Sink 接口。
// 等待在途消息发送完成（受 flushTimeout 限制）后关闭 producer。
func (s *Sink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.flushTimeout)
	defer cancel()

	flushErr := s.producer.FlushWithCtx(ctx)
	s.producer.Close()

	if flushErr != nil {
		return fmt.Errorf("xpulsar: flush: %w", flushErr)
	}
	return nil
}

var _ xevent.Sink = (*Sink)(nil)
