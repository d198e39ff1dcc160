// Package xbreaker 提供基于 sony/gobreaker 的熔断器封装。
//
// 核心能力:
//   - TripPolicy 可插拔的熔断判定策略（连续失败、失败率）
//   - 状态变更日志与回调，便于接入告警
//   - 泛型 Execute 辅助，避免调用侧类型断言
//
// 典型用法是包住一个不稳定的下游调用，打开状态下快速失败而不是
// 继续堆积超时:
//
//	b, _ := xbreaker.NewBreaker("redis-store",
//		xbreaker.WithTripPolicy(xbreaker.ConsecutiveFailures(5)),
//		xbreaker.WithLogger(logger),
//	)
//	err := b.Do(ctx, func(ctx context.Context) error {
//		return client.Ping(ctx).Err()
//	})
//	if xbreaker.IsOpen(err) {
//		// 下游已熔断，走降级路径
//	}
package xbreaker
