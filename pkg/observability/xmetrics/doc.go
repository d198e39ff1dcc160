// Package xmetrics 提供统一的观测抽象。
//
// [Observer] 是追踪/指标的窄接口：业务代码只依赖
// Start(ctx, opts) -> Span 和 Span.End(result)，不直接依赖
// OpenTelemetry API。生产环境用 [NewOTelObserver] 接入 otel，
// 测试和默认场景用 [NoopObserver]。
//
//	ctx, span := xmetrics.Start(ctx, observer, xmetrics.SpanOptions{
//	    Component: "xlimit",
//	    Operation: "check",
//	    Kind:      xmetrics.KindInternal,
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
//
// 指标记录使用 context.WithoutCancel：请求已取消/超时的场景
// 恰恰是最需要被观测到的场景。
package xmetrics
