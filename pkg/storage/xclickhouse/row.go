package xclickhouse

import (
	"time"

	"github.com/omeyang/ratekit/pkg/observability/xevent"
)

// eventRow 审计事件的列存模型。
// 判定快照字段摊平到顶层列，limit 是 ClickHouse 保留字，
// 列名用 limit_value 规避。
type eventRow struct {
	EventID       string    `ch:"event_id"`
	CorrelationID string    `ch:"correlation_id"`
	Kind          string    `ch:"kind"`
	RuleID        string    `ch:"rule_id"`
	Key           string    `ch:"key"`
	Scope         string    `ch:"scope"`
	Allowed       bool      `ch:"allowed"`
	RetryAfter    float64   `ch:"retry_after_seconds"`
	Remaining     int32     `ch:"remaining"`
	Limit         int64     `ch:"limit_value"`
	FailOpen      bool      `ch:"fail_open"`
	LatencyMicros int64     `ch:"latency_micros"`
	Node          string    `ch:"node"`
	At            time.Time `ch:"at"`
	Repeats       uint64    `ch:"repeats"`
}

func toRow(e xevent.Event) eventRow {
	return eventRow{
		EventID:       e.ID,
		CorrelationID: e.CorrelationID,
		Kind:          string(e.Kind),
		RuleID:        e.RuleID,
		Key:           e.Key,
		Scope:         e.Scope,
		Allowed:       e.Decision.Allowed,
		RetryAfter:    e.Decision.RetryAfter,
		Remaining:     int32(e.Decision.Remaining),
		Limit:         e.Decision.Limit,
		FailOpen:      e.Decision.FailOpen,
		LatencyMicros: e.Latency.Microseconds(),
		Node:          e.Node,
		At:            e.At,
		Repeats:       e.Repeats,
	}
}
