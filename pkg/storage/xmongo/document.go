package xmongo

import (
	"time"

	"github.com/omeyang/ratekit/pkg/observability/xevent"
)

// eventDocument 审计事件的存储模型。
// 判定快照字段摊平到顶层，方便按 allowed/fail_open 建立查询条件。
type eventDocument struct {
	EventID       string    `bson:"event_id"`
	CorrelationID string    `bson:"correlation_id,omitempty"`
	Kind          string    `bson:"kind"`
	RuleID        string    `bson:"rule_id"`
	Key           string    `bson:"key"`
	Scope         string    `bson:"scope"`
	Allowed       bool      `bson:"allowed"`
	RetryAfter    float64   `bson:"retry_after_seconds,omitempty"`
	Remaining     int       `bson:"remaining"`
	Limit         int64     `bson:"limit"`
	FailOpen      bool      `bson:"fail_open,omitempty"`
	LatencyMicros int64     `bson:"latency_micros"`
	Node          string    `bson:"node,omitempty"`
	At            time.Time `bson:"at"`
	Repeats       uint64    `bson:"repeats,omitempty"`
}

func toDocument(e xevent.Event) eventDocument {
	return eventDocument{
		EventID:       e.ID,
		CorrelationID: e.CorrelationID,
		Kind:          string(e.Kind),
		RuleID:        e.RuleID,
		Key:           e.Key,
		Scope:         e.Scope,
		Allowed:       e.Decision.Allowed,
		RetryAfter:    e.Decision.RetryAfter,
		Remaining:     e.Decision.Remaining,
		Limit:         e.Decision.Limit,
		FailOpen:      e.Decision.FailOpen,
		LatencyMicros: e.Latency.Microseconds(),
		Node:          e.Node,
		At:            e.At,
		Repeats:       e.Repeats,
	}
}

func fromDocument(d eventDocument) xevent.Event {
	return xevent.Event{
		ID:            d.EventID,
		CorrelationID: d.CorrelationID,
		Kind:          xevent.Kind(d.Kind),
		RuleID:        d.RuleID,
		Key:           d.Key,
		Scope:         d.Scope,
		Decision: xevent.DecisionSnapshot{
			Allowed:    d.Allowed,
			RetryAfter: d.RetryAfter,
			Remaining:  d.Remaining,
			Limit:      d.Limit,
			FailOpen:   d.FailOpen,
		},
		Latency: time.Duration(d.LatencyMicros) * time.Microsecond,
		Node:    d.Node,
		At:      d.At,
		Repeats: d.Repeats,
	}
}
