package eventcore

import (
	"context"

	"github.com/omeyang/ratekit/pkg/context/xctx"

	"go.opentelemetry.io/otel/propagation"
)

// requestIDHeader 事件消息头中请求 ID 的键名。
// 追踪采样可能丢弃链路，请求 ID 单独透传保证审计事件始终可回溯。
const requestIDHeader = "x-request-id"

type otelTracerConfig struct {
	propagator propagation.TextMapPropagator
}

// OTelTracerOption 定义 OTelTracer 的配置选项。
type OTelTracerOption func(*otelTracerConfig)

// WithOTelPropagator 设置自定义的 Propagator。
func WithOTelPropagator(propagator propagation.TextMapPropagator) OTelTracerOption {
	return func(cfg *otelTracerConfig) {
		if propagator != nil {
			cfg.propagator = propagator
		}
	}
}

// OTelTracer 基于 OpenTelemetry 的链路追踪实现。
// 在 W3C 追踪头之外，还透传 xctx 的请求 ID。
type OTelTracer struct {
	propagator propagation.TextMapPropagator
}

// NewOTelTracer 创建 OTelTracer。
func NewOTelTracer(opts ...OTelTracerOption) OTelTracer {
	cfg := &otelTracerConfig{
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return OTelTracer{propagator: cfg.propagator}
}

// Inject 将追踪信息和请求 ID 注入到消息头。
func (t OTelTracer) Inject(ctx context.Context, headers map[string]string) {
	if headers == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t.propagator.Inject(ctx, propagation.MapCarrier(headers))
	if id := xctx.RequestID(ctx); id != "" {
		headers[requestIDHeader] = id
	}
}

// Extract 从消息头提取追踪信息和请求 ID。
func (t OTelTracer) Extract(headers map[string]string) context.Context {
	if headers == nil {
		return context.Background()
	}
	ctx := t.propagator.Extract(context.Background(), propagation.MapCarrier(headers))
	if id := headers[requestIDHeader]; id != "" {
		ctx = xctx.WithRequestID(ctx, id)
	}
	return ctx
}

var _ Tracer = OTelTracer{}
