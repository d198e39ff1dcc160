// Package xretry 提供策略化的重试执行器。
//
// 对 retry-go 做轻量封装: 重试判定 (RetryPolicy) 与退避计算
// (BackoffPolicy) 拆成两个正交接口，调用方组合出自己的策略,
// 事件分发、规则热加载等后台链路共用同一套重试语义。
//
//	r := xretry.NewRetryer(
//	    xretry.WithRetryPolicy(xretry.NewMaxAttempts(3)),
//	    xretry.WithBackoffPolicy(xretry.NewExponentialBackoff(100*time.Millisecond, 2*time.Second)),
//	)
//	err := r.Do(ctx, func(ctx context.Context) error {
//	    return sink.Publish(ctx, event)
//	})
//
// 限流判定主路径禁止内联重试（失败直接放行兜底），本包只服务
// 于旁路链路。
package xretry
