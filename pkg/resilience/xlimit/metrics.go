package xlimit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// 指标名称常量
const (
	// metricNameChecksTotal 限流判定总数计数器，按规则与结果分维度
	metricNameChecksTotal = "ratelimit_checks_total"
	// metricNameFailOpenTotal 放行降级次数计数器
	metricNameFailOpenTotal = "ratelimit_failopen_total"
	// metricNameStoreLatency 存储判定耗时直方图
	metricNameStoreLatency = "ratelimit_store_latency"
)

// 判定结果维度取值
const (
	outcomeAllowed  = "allowed"
	outcomeDenied   = "denied"
	outcomeFailOpen = "fail_open"
)

// Metrics 限流指标收集器
type Metrics struct {
	checksTotal   metric.Int64Counter
	failOpenTotal metric.Int64Counter
	storeLatency  metric.Float64Histogram
}

// NewMetrics 创建指标收集器。
// meterProvider 为 nil 时返回 nil，所有记录方法对 nil 接收者安全。
func NewMetrics(meterProvider metric.MeterProvider) (*Metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}

	meter := meterProvider.Meter("ratekit.xlimit",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	checksTotal, err := meter.Int64Counter(
		metricNameChecksTotal,
		metric.WithDescription("限流判定总数"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	failOpenTotal, err := meter.Int64Counter(
		metricNameFailOpenTotal,
		metric.WithDescription("存储故障放行降级次数"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	storeLatency, err := meter.Float64Histogram(
		metricNameStoreLatency,
		metric.WithDescription("存储判定耗时"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0,
		),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checksTotal:   checksTotal,
		failOpenTotal: failOpenTotal,
		storeLatency:  storeLatency,
	}, nil
}

// RecordCheck 记录一次限流判定。
// 使用 context.WithoutCancel 确保请求被取消时指标仍能记录。
func (m *Metrics) RecordCheck(ctx context.Context, ruleID, storeType string, d Decision, storeDuration time.Duration) {
	if m == nil {
		return
	}

	metricsCtx := context.WithoutCancel(ctx)

	outcome := outcomeDenied
	switch {
	case d.FailOpen:
		outcome = outcomeFailOpen
	case d.Allowed:
		outcome = outcomeAllowed
	}

	attrs := []attribute.KeyValue{
		attribute.String("rule", ruleID),
		attribute.String("outcome", outcome),
	}
	m.checksTotal.Add(metricsCtx, 1, metric.WithAttributes(attrs...))

	if storeDuration > 0 {
		m.storeLatency.Record(metricsCtx, storeDuration.Seconds(),
			metric.WithAttributes(
				attribute.String("rule", ruleID),
				attribute.String("store", storeType),
			))
	}
}

// RecordFailOpen 记录一次放行降级
func (m *Metrics) RecordFailOpen(ctx context.Context, ruleID, reason string) {
	if m == nil {
		return
	}

	metricsCtx := context.WithoutCancel(ctx)

	m.failOpenTotal.Add(metricsCtx, 1, metric.WithAttributes(
		attribute.String("rule", ruleID),
		attribute.String("reason", reason),
	))
}
