package xevent

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// denyCounter 一个 (rule, key) 对在抑制窗口内的折叠计数。
type denyCounter struct {
	ruleID string
	key    string
	n      atomic.Uint64
}

// SummaryFunc 窗口结束时收到折叠计数的回调。
// count 为窗口内被抑制（未下发）的 denied 次数。
type SummaryFunc func(ruleID, key string, count uint64)

// Suppressor 拒绝风暴抑制器。
//
// 同一 (rule, key) 在窗口内的首个 denied 事件正常下发，窗口内的
// 后续 denied 折叠为计数；窗口条目过期时通过 SummaryFunc 报告
// 累计次数。checked/allowed/fail_open 不受影响。
type Suppressor struct {
	cache     *ristretto.Cache[string, *denyCounter]
	window    time.Duration
	onSummary SummaryFunc
}

// SuppressorOption 配置 [Suppressor]。
type SuppressorOption func(*Suppressor)

// WithSummaryFunc 设置窗口结束回调。
func WithSummaryFunc(fn SummaryFunc) SuppressorOption {
	return func(s *Suppressor) {
		s.onSummary = fn
	}
}

// NewSuppressor 创建抑制器，window 必须 > 0。
func NewSuppressor(window time.Duration, opts ...SuppressorOption) (*Suppressor, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: suppress window %v <= 0", ErrInvalidConfig, window)
	}

	s := &Suppressor{window: window}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *denyCounter]{
		NumCounters:            100_000,
		MaxCost:                10_000,
		BufferItems:            64,
		TtlTickerDurationInSec: 1,
		OnEvict: func(item *ristretto.Item[*denyCounter]) {
			c := item.Value
			if c == nil || s.onSummary == nil {
				return
			}
			if n := c.n.Load(); n > 0 {
				s.onSummary(c.ruleID, c.key, n)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("xevent: create suppressor cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Allow 判断事件是否应下发。
// 仅 denied 事件可能被抑制，其余类别恒通过。
func (s *Suppressor) Allow(e Event) bool {
	if e.Kind != KindDenied {
		return true
	}

	key := e.RuleID + "\x00" + e.Key
	if c, ok := s.cache.Get(key); ok {
		c.n.Add(1)
		return false
	}

	s.cache.SetWithTTL(key, &denyCounter{ruleID: e.RuleID, key: e.Key}, 1, s.window)
	return true
}

// Wait 等待内部缓存的异步写入落地，仅测试使用。
func (s *Suppressor) Wait() {
	s.cache.Wait()
}

// Close 释放抑制器资源。
func (s *Suppressor) Close() {
	s.cache.Close()
}
