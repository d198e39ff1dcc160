package xlimit

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/omeyang/ratekit/pkg/observability/xlog"
)

// Registry 规则注册表。
//
// 当前规则集由 atomic.Pointer 持有，热加载时整体换装：进行中的
// 判定继续使用旧快照，新判定看到新快照，不存在半新半旧的中间态。
type Registry struct {
	current atomic.Pointer[RuleSet]
	logger  xlog.Logger
}

// NewRegistry 创建规则注册表。logger 为 nil 时不输出日志。
func NewRegistry(rs *RuleSet, logger xlog.Logger) *Registry {
	if logger == nil {
		logger = xlog.Nop()
	}
	r := &Registry{logger: logger}
	if rs != nil {
		r.current.Store(rs)
	}
	return r
}

// Apply 原子换装整份规则集，nil 被忽略。
func (r *Registry) Apply(rs *RuleSet) {
	if rs == nil {
		return
	}
	r.current.Store(rs)
}

// Get 按操作 ID 查找当前规则。
func (r *Registry) Get(op string) (Rule, bool) {
	rs := r.current.Load()
	if rs == nil {
		return Rule{}, false
	}
	return rs.Get(op)
}

// Snapshot 返回当前规则集，可能为 nil。
func (r *Registry) Snapshot() *RuleSet {
	return r.current.Load()
}

// Bind 绑定规则提供器：先加载（首次失败直接返回错误），再订阅
// 变更持续换装。后续加载或校验失败保留上一份有效规则集，只记录
// 错误。返回的 stop 函数取消订阅。
func (r *Registry) Bind(ctx context.Context, provider RuleProvider) (func(), error) {
	rules, err := provider.Load(ctx)
	if err != nil {
		return nil, err
	}
	rs, err := NewRuleSet(rules)
	if err != nil {
		return nil, err
	}
	r.Apply(rs)

	stop, err := provider.Watch(ctx, func(rules []Rule, err error) {
		if err != nil {
			r.logger.Error(ctx, "rule reload failed, keeping last good set",
				slog.Any("error", err),
			)
			return
		}
		rs, err := NewRuleSet(rules)
		if err != nil {
			r.logger.Error(ctx, "rule validation failed, keeping last good set",
				slog.Any("error", err),
			)
			return
		}
		r.Apply(rs)
		r.logger.Info(ctx, "rules reloaded",
			slog.Int("count", rs.Len()),
		)
	})
	if err != nil {
		return nil, err
	}
	return stop, nil
}
