package xevent

import (
	"time"
)

// Kind 事件类别。
type Kind string

const (
	// KindChecked 每次判定都产生，不区分结果。
	KindChecked Kind = "checked"
	// KindAllowed 判定放行。
	KindAllowed Kind = "allowed"
	// KindDenied 判定拒绝。
	KindDenied Kind = "denied"
	// KindFailOpen 存储故障放行兜底。
	KindFailOpen Kind = "fail_open"
)

// Valid 判断 k 是否为已知事件类别。
func (k Kind) Valid() bool {
	switch k {
	case KindChecked, KindAllowed, KindDenied, KindFailOpen:
		return true
	}
	return false
}

// DecisionSnapshot 判定结果在事件中的快照。
// 与 xlimit.Decision 字段对齐，但独立定义以避免反向依赖。
type DecisionSnapshot struct {
	Allowed    bool    `json:"allowed"`
	RetryAfter float64 `json:"retry_after_seconds"`
	Remaining  int     `json:"remaining"`
	Limit      int64   `json:"limit"`
	FailOpen   bool    `json:"fail_open,omitempty"`
}

// Event 一次限流判定产生的事件。
type Event struct {
	// ID 事件唯一标识（sonyflake base36）。
	ID string `json:"id"`
	// CorrelationID 关联同一次判定产生的多条事件（uuid）。
	CorrelationID string `json:"correlation_id,omitempty"`
	// Kind 事件类别。
	Kind Kind `json:"kind"`
	// RuleID 命中的规则。
	RuleID string `json:"rule_id"`
	// Key 完整限流键。
	Key string `json:"key"`
	// Scope 规则的作用域名。
	Scope string `json:"scope"`
	// Decision 判定结果快照。
	Decision DecisionSnapshot `json:"decision"`
	// Latency 判定耗时（JSON 序列化为纳秒整数）。
	Latency time.Duration `json:"latency"`
	// Node 产生事件的实例标识。
	Node string `json:"node,omitempty"`
	// At 事件时间。
	At time.Time `json:"at"`
	// Repeats 抑制窗口内被折叠的同键 denied 次数。
	Repeats uint64 `json:"repeats,omitempty"`
}
