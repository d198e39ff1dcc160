package xevent

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/ratekit/pkg/observability/xsampling"
)

// Sink 事件的下游出口。
// 实现必须并发安全；Publish 不应长时间阻塞（分发器自带队列削峰，
// 但 sink 内部仍应设置自己的发送超时）。
type Sink interface {
	// Publish 下发一条事件。
	Publish(ctx context.Context, e Event) error
	// Close 关闭 sink 并释放资源。
	Close() error
}

// SinkFunc 函数适配器，Close 为空操作。
type SinkFunc func(ctx context.Context, e Event) error

// Publish 实现 Sink 接口。
func (f SinkFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Close 实现 Sink 接口。
func (SinkFunc) Close() error {
	return nil
}

// MultiSink 把事件并发扇出到多个 sink。
// 任一 sink 失败不阻止其余 sink 收到事件，错误合并返回。
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink 创建扇出 sink，nil 成员被忽略。
func NewMultiSink(sinks ...Sink) *MultiSink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

// Publish 实现 Sink 接口。
func (m *MultiSink) Publish(ctx context.Context, e Event) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range m.sinks {
		g.Go(func() error {
			return s.Publish(ctx, e)
		})
	}
	return g.Wait()
}

// Close 实现 Sink 接口，关闭全部成员并合并错误。
func (m *MultiSink) Close() error {
	errs := make([]error, 0, len(m.sinks))
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FilterSink 只把指定类别的事件透传给下游。
// 审计类 sink 用它过滤出 denied/fail_open。
type FilterSink struct {
	next  Sink
	kinds map[Kind]struct{}
}

// NewFilterSink 创建过滤 sink。
func NewFilterSink(next Sink, kinds ...Kind) (*FilterSink, error) {
	if next == nil {
		return nil, ErrNilSink
	}
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return &FilterSink{next: next, kinds: set}, nil
}

// NewAuditFilter 创建审计事件过滤 sink，只透传 denied 和 fail_open。
func NewAuditFilter(next Sink) (*FilterSink, error) {
	return NewFilterSink(next, KindDenied, KindFailOpen)
}

// Publish 实现 Sink 接口，类别不匹配的事件被静默丢弃。
func (f *FilterSink) Publish(ctx context.Context, e Event) error {
	if _, ok := f.kinds[e.Kind]; !ok {
		return nil
	}
	return f.next.Publish(ctx, e)
}

// Close 实现 Sink 接口。
func (f *FilterSink) Close() error {
	return f.next.Close()
}

// SampledSink 对 checked/allowed 事件按键做一致性采样。
// denied 和 fail_open 不经过采样，策略相关事件必须全量保留。
type SampledSink struct {
	next    Sink
	sampler xsampling.Sampler
}

// NewSampledSink 创建采样 sink。sampler 为 nil 时全量透传。
func NewSampledSink(next Sink, sampler xsampling.Sampler) (*SampledSink, error) {
	if next == nil {
		return nil, ErrNilSink
	}
	if sampler == nil {
		sampler = xsampling.Always()
	}
	return &SampledSink{next: next, sampler: sampler}, nil
}

// Publish 实现 Sink 接口。
func (s *SampledSink) Publish(ctx context.Context, e Event) error {
	if e.Kind == KindChecked || e.Kind == KindAllowed {
		if !s.sampler.ShouldSample(e.Key) {
			return nil
		}
	}
	return s.next.Publish(ctx, e)
}

// Close 实现 Sink 接口。
func (s *SampledSink) Close() error {
	return s.next.Close()
}

var (
	_ Sink = SinkFunc(nil)
	_ Sink = (*MultiSink)(nil)
	_ Sink = (*FilterSink)(nil)
	_ Sink = (*SampledSink)(nil)
)
