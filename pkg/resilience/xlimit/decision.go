package xlimit

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// Decision 一次限流判定的结果。
// 限流拒绝永远是数据而非错误：Allowed=false 不伴随 error。
type Decision struct {
	// Allowed 是否放行。
	Allowed bool `json:"allowed"`

	// RetryAfter 拒绝时距下次可满足的秒数，放行时为 0。
	RetryAfter float64 `json:"retry_after_seconds"`

	// Remaining 剩余令牌数，向下取整，永不虚报。
	Remaining int `json:"remaining"`

	// Limit 规则容量。
	Limit int64 `json:"limit"`

	// ResetAfter 桶补满的预估秒数，用于 X-RateLimit-Reset。
	ResetAfter float64 `json:"reset_after_seconds,omitempty"`

	// RuleID 命中的规则。
	RuleID string `json:"rule_id"`

	// Key 渲染后的限流键。
	Key string `json:"key"`

	// FailOpen 是否为故障放行兜底。
	FailOpen bool `json:"fail_open,omitempty"`
}

// RetryAfterDuration 返回 RetryAfter 对应的时长。
func (d Decision) RetryAfterDuration() time.Duration {
	return time.Duration(d.RetryAfter * float64(time.Second))
}

// retryAfterHeader 返回 Retry-After 响应头的值：向上取整且至少 1 秒。
// HTTP 头只接受整数秒，取整向上保证客户端不会过早重试。
func (d Decision) retryAfterHeader() string {
	secs := int64(math.Ceil(d.RetryAfter))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// SetHeaders 写入 X-RateLimit-* 响应头。
func (d Decision) SetHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(int64(math.Ceil(d.ResetAfter)), 10))
}

// failOpenDecision 构造故障放行兜底判定。
// 剩余量按容量上报：兜底期间不应暗示调用方已接近限额。
func failOpenDecision(rule Rule, key string) Decision {
	return Decision{
		Allowed:   true,
		Remaining: int(rule.Capacity),
		Limit:     rule.Capacity,
		RuleID:    rule.ID,
		Key:       key,
		FailOpen:  true,
	}
}
