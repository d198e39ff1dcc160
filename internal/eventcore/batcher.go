package eventcore

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultBatchSize 默认批量大小
	DefaultBatchSize = 256
	// DefaultFlushInterval 默认刷新间隔
	DefaultFlushInterval = 5 * time.Second
)

// FlushFunc 批量落盘回调。
// batch 在回调返回后会被复用，实现方需要保留数据时必须拷贝。
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// Batcher 把单条写入聚合成批量写入。
// 攒够 size 条或到达 interval 时触发 flush，两者先到为准。
// Add 与后台刷新并发安全。
type Batcher[T any] struct {
	size     int
	interval time.Duration
	flush    FlushFunc[T]
	onError  func(err error)

	mu     sync.Mutex
	buf    []T
	closed bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// BatcherOption 配置 Batcher
type BatcherOption[T any] func(*Batcher[T])

// WithBatchSize 设置触发刷新的批量大小
func WithBatchSize[T any](n int) BatcherOption[T] {
	return func(b *Batcher[T]) {
		if n > 0 {
			b.size = n
		}
	}
}

// WithFlushInterval 设置定时刷新间隔
func WithFlushInterval[T any](d time.Duration) BatcherOption[T] {
	return func(b *Batcher[T]) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithFlushOnError 设置刷新失败回调。
// 失败的批次直接丢弃，审计事件允许有损。
func WithFlushOnError[T any](fn func(err error)) BatcherOption[T] {
	return func(b *Batcher[T]) {
		if fn != nil {
			b.onError = fn
		}
	}
}

// NewBatcher 创建批量聚合器并启动后台定时刷新。
func NewBatcher[T any](flush FlushFunc[T], opts ...BatcherOption[T]) *Batcher[T] {
	b := &Batcher[T]{
		size:     DefaultBatchSize,
		interval: DefaultFlushInterval,
		flush:    flush,
		onError:  func(error) {},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.buf = make([]T, 0, b.size)

	go b.loop()
	return b
}

// Add 追加一条记录，攒满批量时同步触发刷新。
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.buf = append(b.buf, item)
	if len(b.buf) < b.size {
		b.mu.Unlock()
		return nil
	}
	batch := b.takeLocked()
	b.mu.Unlock()

	return b.flush(ctx, batch)
}

// Flush 立即刷新当前缓冲
func (b *Batcher[T]) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.takeLocked()
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return b.flush(ctx, batch)
}

// takeLocked 取走缓冲内容，调用方必须持有 b.mu
func (b *Batcher[T]) takeLocked() []T {
	batch := b.buf
	b.buf = make([]T, 0, b.size)
	return batch
}

func (b *Batcher[T]) loop() {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.Flush(context.Background()); err != nil {
				b.onError(err)
			}
		}
	}
}

// Close 停止定时刷新并落盘剩余缓冲。幂等。
func (b *Batcher[T]) Close(ctx context.Context) error {
	var flushErr error
	b.stopOnce.Do(func() {
		close(b.stop)
		<-b.done

		b.mu.Lock()
		b.closed = true
		batch := b.takeLocked()
		b.mu.Unlock()

		if len(batch) > 0 {
			flushErr = b.flush(ctx, batch)
		}
	})
	return flushErr
}
