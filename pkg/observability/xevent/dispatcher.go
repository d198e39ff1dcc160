package xevent

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/ratekit/pkg/util/xid"
)

// Stats 分发器的累计计数快照。
type Stats struct {
	// Enqueued 成功入队的事件数。
	Enqueued uint64
	// Published 成功下发到 sink 的事件数。
	Published uint64
	// Dropped 队列溢出时被丢弃的事件数（丢最旧）。
	Dropped uint64
	// Failed 重试耗尽后仍下发失败的事件数。
	Failed uint64
	// Suppressed 被拒绝风暴抑制折叠的事件数。
	Suppressed uint64
	// SampledOut 被采样器丢弃的事件数。
	SampledOut uint64
	// Panics sink 发生 panic 被隔离的次数。
	Panics uint64
}

// Dispatcher 异步事件分发器。
//
// Publish 把事件写入有界队列后立即返回，worker 在后台排空到
// 下游 sink。队列满时丢弃最旧的事件，保证请求路径永不阻塞。
// Dispatcher 本身实现 Sink，可以层叠组合。
type Dispatcher struct {
	opts       *dispatcherOptions
	sink       Sink
	suppressor *Suppressor
	queue      chan Event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	enqueued   atomic.Uint64
	published  atomic.Uint64
	dropped    atomic.Uint64
	failed     atomic.Uint64
	suppressed atomic.Uint64
	sampledOut atomic.Uint64
	panics     atomic.Uint64
}

// NewDispatcher 创建分发器并启动 worker。
func NewDispatcher(sink Sink, opts ...DispatcherOption) (*Dispatcher, error) {
	if sink == nil {
		return nil, ErrNilSink
	}

	options := defaultDispatcherOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		opts:  options,
		sink:  sink,
		queue: make(chan Event, options.queueSize),
	}

	if options.suppressWindow > 0 {
		sup, err := NewSuppressor(options.suppressWindow, WithSummaryFunc(d.publishSummary))
		if err != nil {
			return nil, err
		}
		d.suppressor = sup
	}

	d.wg.Add(options.workers)
	for range options.workers {
		go d.worker()
	}
	return d, nil
}

// Publish 实现 Sink 接口。
// 非阻塞：事件入队或被丢弃后立即返回。关闭后返回 [ErrClosed]。
func (d *Dispatcher) Publish(_ context.Context, e Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	if d.opts.sampler != nil && (e.Kind == KindChecked || e.Kind == KindAllowed) {
		if !d.opts.sampler.ShouldSample(e.Key) {
			d.sampledOut.Add(1)
			return nil
		}
	}

	if d.suppressor != nil && !d.suppressor.Allow(e) {
		d.suppressed.Add(1)
		return nil
	}

	d.enqueue(e)
	return nil
}

// publishSummary 把抑制窗口的折叠计数以合成 denied 事件下发。
// 由抑制器的过期回调触发，可能与 Close 并发。
func (d *Dispatcher) publishSummary(ruleID, key string, count uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.enqueue(Event{
		ID:      xid.EventID(),
		Kind:    KindDenied,
		RuleID:  ruleID,
		Key:     key,
		At:      time.Now(),
		Repeats: count,
	})
}

// enqueue 入队，满时丢最旧。调用方必须持有 mu 读锁且已检查 closed。
func (d *Dispatcher) enqueue(e Event) {
	for {
		select {
		case d.queue <- e:
			d.enqueued.Add(1)
			return
		default:
		}
		select {
		case <-d.queue:
			d.dropped.Add(1)
		default:
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for e := range d.queue {
		d.deliver(e)
	}
}

// deliver 下发单条事件：有限重试加 panic 隔离。
// sink 的 panic 只损失当前事件，不击穿 worker。
func (d *Dispatcher) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.opts.logger.Error(context.Background(), "event sink panicked",
				slog.Any("panic", r),
				slog.String("event_id", e.ID),
				slog.String("rule_id", e.RuleID),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.publishTimeout)
	defer cancel()

	err := d.opts.retryer.Do(ctx, func(ctx context.Context) error {
		return d.sink.Publish(ctx, e)
	})
	if err != nil {
		d.failed.Add(1)
		d.opts.logger.Warn(ctx, "event publish failed",
			slog.String("event_id", e.ID),
			slog.String("rule_id", e.RuleID),
			slog.String("kind", string(e.Kind)),
			slog.Any("error", err),
		)
		return
	}
	d.published.Add(1)
}

// Stats 返回累计计数快照。
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued:   d.enqueued.Load(),
		Published:  d.published.Load(),
		Dropped:    d.dropped.Load(),
		Failed:     d.failed.Load(),
		Suppressed: d.suppressed.Load(),
		SampledOut: d.sampledOut.Load(),
		Panics:     d.panics.Load(),
	}
}

// Close 实现 Sink 接口。
// 停止接收新事件，等待队列排空（受 closeTimeout 约束），
// 然后关闭下游 sink。幂等。
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d.opts.closeTimeout):
		d.opts.logger.Warn(context.Background(), "event queue drain timed out",
			slog.Duration("timeout", d.opts.closeTimeout),
		)
	}

	if d.suppressor != nil {
		d.suppressor.Close()
	}
	return d.sink.Close()
}

var _ Sink = (*Dispatcher)(nil)
