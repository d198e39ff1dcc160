package storageopt

import (
	"context"
	"time"
)

// SlowQueryHook 慢查询回调，在请求路径上同步执行。
// 钩子应保持轻量（记日志、计数），耗时操作会直接放大请求延迟。
type SlowQueryHook[T any] func(ctx context.Context, info T, duration time.Duration)

// SlowQueryDetector 按阈值检测慢查询并触发回调。
// 零值可用: 阈值为 0 时检测关闭。
type SlowQueryDetector[T any] struct {
	threshold time.Duration
	hook      SlowQueryHook[T]
	counter   *QueryCounter
}

// NewSlowQueryDetector 创建慢查询检测器。
// counter 可为 nil，仅触发 hook。
func NewSlowQueryDetector[T any](threshold time.Duration, hook SlowQueryHook[T], counter *QueryCounter) *SlowQueryDetector[T] {
	return &SlowQueryDetector[T]{
		threshold: threshold,
		hook:      hook,
		counter:   counter,
	}
}

// Observe 记录一次操作耗时，达到阈值时计数并触发回调。
// 返回是否判定为慢查询。
func (d *SlowQueryDetector[T]) Observe(ctx context.Context, info T, duration time.Duration) bool {
	if d == nil || d.threshold <= 0 || duration < d.threshold {
		return false
	}

	if d.counter != nil {
		d.counter.IncSlowQuery()
	}
	if d.hook != nil {
		d.hook(ctx, info, duration)
	}
	return true
}
