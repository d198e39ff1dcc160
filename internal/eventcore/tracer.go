package eventcore

import "context"

// Tracer 定义事件消息头的追踪信息注入与提取能力。
//
// 实现者应使用 W3C Trace Context 标准的 Header 名称：
//   - traceparent: 追踪 ID 和 Span ID
//   - tracestate: 厂商特定信息
type Tracer interface {
	// Inject 将追踪信息注入到消息头。
	Inject(ctx context.Context, headers map[string]string)

	// Extract 从消息头提取追踪信息，返回携带追踪上下文的 Context。
	Extract(headers map[string]string) context.Context
}

// NoopTracer 是 Tracer 的空实现，用于不需要链路追踪的场景。
type NoopTracer struct{}

// Inject 空实现，不做任何操作。
func (NoopTracer) Inject(_ context.Context, _ map[string]string) {}

// Extract 空实现，返回 Background Context。
func (NoopTracer) Extract(_ map[string]string) context.Context {
	return context.Background()
}

var _ Tracer = NoopTracer{}
