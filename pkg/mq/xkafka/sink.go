package xkafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/omeyang/ratekit/pkg/observability/xevent"
)

// kafkaProducer Sink 需要的最小生产者能力，便于注入测试替身。
// *kafka.Producer 天然满足此接口。
type kafkaProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Len() int
	Close()
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
}

var _ kafkaProducer = (*kafka.Producer)(nil)

// SinkStats 事件汇统计。
// Produced 统计确认投递成功的消息数，入队成功不计入。
type SinkStats struct {
	Produced    int64
	Bytes       int64
	Errors      int64
	QueueLength int
}

// Sink 把限流判定事件写入 Kafka topic，实现 xevent.Sink。
type Sink struct {
	producer kafkaProducer
	topic    string
	opts     *sinkOptions

	// mu 保护 GetMetadata、Flush、Close 等管理操作。
	// Produce 本身线程安全，不需要加锁。
	mu     sync.Mutex
	closed atomic.Bool

	produced  atomic.Int64
	bytes     atomic.Int64
	errors    atomic.Int64
	drainDone chan struct{}
}

// NewSink 创建 Kafka 事件汇。
// config 必须包含 "bootstrap.servers"。
func NewSink(config *kafka.ConfigMap, topic string, opts ...SinkOption) (*Sink, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	// 复制配置，避免修改调用方传入的 ConfigMap
	cloned := &kafka.ConfigMap{}
	for k, v := range *config {
		if err := cloned.SetKey(k, v); err != nil {
			return nil, fmt.Errorf("xkafka: clone config key %q: %w", k, err)
		}
	}

	producer, err := kafka.NewProducer(cloned)
	if err != nil {
		return nil, fmt.Errorf("xkafka: create producer: %w", err)
	}
	return newSink(producer, topic, opts...), nil
}

func newSink(producer kafkaProducer, topic string, opts ...SinkOption) *Sink {
	options := defaultSinkOptions()
	for _, opt := range opts {
		opt(options)
	}

	s := &Sink{
		producer:  producer,
		topic:     topic,
		opts:      options,
		drainDone: make(chan struct{}),
	}
	go s.drainDeliveryReports()
	return s
}

// drainDeliveryReports 消费投递回执并累计统计。
// Events 通道在 producer.Close 后关闭，循环随之退出。
func (s *Sink) drainDeliveryReports() {
	defer close(s.drainDone)

	for e := range s.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				s.errors.Add(1)
				s.opts.logger.Warn(context.Background(), "event delivery failed",
					slog.String("topic", s.topic),
					slog.Any("error", ev.TopicPartition.Error),
				)
				continue
			}
			s.produced.Add(1)
			s.bytes.Add(int64(len(ev.Value)))
		case kafka.Error:
			s.opts.logger.Warn(context.Background(), "kafka producer error",
				slog.String("topic", s.topic),
				slog.String("code", ev.Code().String()),
				slog.String("error", ev.Error()),
			)
		}
	}
}

// Publish 实现 xevent.Sink 接口。
// 异步入队，入队失败（本地队列满）返回错误。
func (s *Sink) Publish(ctx context.Context, e xevent.Event) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("xkafka: marshal event: %w", err)
	}

	headers := map[string]string{
		"kind":    string(e.Kind),
		"rule_id": e.RuleID,
	}
	s.opts.tracer.Inject(ctx, headers)

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.topic, Partition: kafka.PartitionAny},
		// 以限流键分区，同一 bucket 的事件保持顺序
		Key:     []byte(e.Key),
		Value:   value,
		Headers: kafkaHeaders(headers),
	}

	if err := s.producer.Produce(msg, nil); err != nil {
		s.errors.Add(1)
		return fmt.Errorf("xkafka: produce event: %w", err)
	}
	return nil
}

func kafkaHeaders(m map[string]string) []kafka.Header {
	headers := make([]kafka.Header, 0, len(m))
	for k, v := range m {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

// Health 检查与 Broker 的连接。
// 外部 ctx 取消时立即返回，元数据请求仍受 healthTimeout 限制。
func (s *Sink) Health(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	done := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed.Load() {
			done <- ErrClosed
			return
		}
		_, err := s.producer.GetMetadata(&s.topic, false, int(s.opts.healthTimeout.Milliseconds()))
		if err != nil {
			done <- fmt.Errorf("xkafka: health check: %w", err)
			return
		}
		done <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Stats 返回投递统计
func (s *Sink) Stats() SinkStats {
	var queueLen int
	if !s.closed.Load() {
		s.mu.Lock()
		if !s.closed.Load() {
			queueLen = s.producer.Len()
		}
		s.mu.Unlock()
	}

	return SinkStats{
		Produced:    s.produced.Load(),
		Bytes:       s.bytes.Load(),
		Errors:      s.errors.Load(),
		QueueLength: queueLen,
	}
}

// Close 实现 xevent.Sink 接口。
// 等待在途消息投递完成（受 flushTimeout 限制），重复调用返回 ErrClosed。
func (s *Sink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.producer.Flush(int(s.opts.flushTimeout.Milliseconds()))
	s.producer.Close()
	<-s.drainDone

	if remaining > 0 {
		return fmt.Errorf("%w: %d messages still in queue", ErrFlushTimeout, remaining)
	}
	return nil
}

var _ xevent.Sink = (*Sink)(nil)
