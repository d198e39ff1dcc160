package xlimit

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Scope 限流作用域，决定请求身份如何映射到限流键。
type Scope string

const (
	// ScopeIP 按归一化后的客户端 IP 限流
	ScopeIP Scope = "ip"
	// ScopeUser 按认证主体限流
	ScopeUser Scope = "user"
	// ScopeUserResource 按主体与资源的组合限流
	ScopeUserResource Scope = "user_resource"
	// ScopeGlobal 全局单桶限流
	ScopeGlobal Scope = "global"
)

// Valid 判断作用域是否已知。
func (s Scope) Valid() bool {
	switch s {
	case ScopeIP, ScopeUser, ScopeUserResource, ScopeGlobal:
		return true
	}
	return false
}

// keyTTLMargin 桶键 TTL 在完全补满耗时之上的安全余量。
// 覆盖时钟偏差和写入延迟，保证桶不会在仍有消费价值时被回收。
const keyTTLMargin = 60 * time.Second

// Rule 限流规则，每个操作 ID 恰好绑定一条。
type Rule struct {
	// ID 操作标识，限流键的组成部分。
	ID string `json:"id" koanf:"id"`

	// Scope 作用域。
	Scope Scope `json:"scope" koanf:"scope"`

	// Capacity 桶容量，同时是突发上限。
	Capacity int64 `json:"capacity" koanf:"capacity"`

	// RefillPerMinute 每分钟补充的令牌数。
	RefillPerMinute float64 `json:"refill_per_minute" koanf:"refill_per_minute"`

	// Cost 单次请求的默认扣减量，配置中省略时按 1 处理。
	Cost int64 `json:"cost" koanf:"cost"`

	// Enabled 规则开关，nil 视为启用。
	Enabled *bool `json:"enabled,omitempty" koanf:"enabled"`
}

// IsEnabled 返回规则是否启用，未显式设置时默认启用。
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Validate 校验规则字段，违反时返回包装了 [ErrInvalidRule] 或
// [ErrUnknownScope] 的错误。
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty rule id", ErrInvalidRule)
	}
	if !r.Scope.Valid() {
		return fmt.Errorf("%w: rule %q scope %q", ErrUnknownScope, r.ID, r.Scope)
	}
	if r.Capacity <= 0 {
		return fmt.Errorf("%w: rule %q capacity %d <= 0", ErrInvalidRule, r.ID, r.Capacity)
	}
	if r.RefillPerMinute <= 0 || math.IsInf(r.RefillPerMinute, 0) || math.IsNaN(r.RefillPerMinute) {
		return fmt.Errorf("%w: rule %q refill_per_minute %v", ErrInvalidRule, r.ID, r.RefillPerMinute)
	}
	if r.Cost <= 0 {
		return fmt.Errorf("%w: rule %q cost %d <= 0", ErrInvalidRule, r.ID, r.Cost)
	}
	return nil
}

// RefillPerSecond 返回每秒补充的令牌数。
func (r Rule) RefillPerSecond() float64 {
	return r.RefillPerMinute / 60
}

// TTL 返回桶键的存活时长：空桶完全补满的耗时加安全余量。
// 超过这个时长未被访问的桶等价于满桶，可以安全回收。
func (r Rule) TTL() time.Duration {
	refillSeconds := float64(r.Capacity) / r.RefillPerSecond()
	return time.Duration(math.Ceil(refillSeconds))*time.Second + keyTTLMargin
}

// RuleSet 一份经过校验的不可变规则集合。
type RuleSet struct {
	rules map[string]Rule
}

// NewRuleSet 从规则列表构建规则集。
// 任一规则非法或操作 ID 重复时整体失败（加载期 fail-closed）。
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}

	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		// 配置中省略 cost 按默认 1 处理，负值仍然拒绝
		if r.Cost == 0 {
			r.Cost = 1
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, exists := m[r.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRule, r.ID)
		}
		m[r.ID] = r
	}
	return &RuleSet{rules: m}, nil
}

// Get 按操作 ID 查找规则。
func (s *RuleSet) Get(op string) (Rule, bool) {
	r, ok := s.rules[op]
	return r, ok
}

// Len 返回规则数量。
func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Rules 返回按操作 ID 排序的规则列表副本。
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
