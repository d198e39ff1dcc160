package xlimit

import "context"

// RuleProvider 规则来源抽象。
//
// Load 返回当前全量规则；Watch 订阅后续变更，每次变更以全量规则
// 或加载错误回调一次。回调中的错误表示这次加载失败，订阅本身仍然
// 有效。实现必须保证回调串行执行。
type RuleProvider interface {
	// Load 加载当前全量规则
	Load(ctx context.Context) ([]Rule, error)

	// Watch 订阅规则变更，返回取消订阅的 stop 函数。
	// ctx 取消时订阅自动终止。
	Watch(ctx context.Context, fn func(rules []Rule, err error)) (stop func(), err error)
}

// StaticRules 固定规则提供器，Watch 不产生任何变更。
// 用于测试和不需要热加载的部署。
type StaticRules []Rule

// Load 实现 RuleProvider 接口
func (s StaticRules) Load(_ context.Context) ([]Rule, error) {
	rules := make([]Rule, len(s))
	copy(rules, s)
	return rules, nil
}

// Watch 实现 RuleProvider 接口
func (s StaticRules) Watch(_ context.Context, _ func([]Rule, error)) (func(), error) {
	return func() {}, nil
}

var _ RuleProvider = StaticRules(nil)
