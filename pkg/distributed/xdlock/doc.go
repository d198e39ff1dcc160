// Package xdlock 提供跨实例互斥的分布式锁。
//
// 用于保护只应由单个实例执行的后台任务，例如审计事件的定期清理。
// 锁操作不在请求路径上，获取失败意味着本实例跳过本轮任务。
//
// 两种实现:
//   - NewRedisLocker: 基于 redsync 的 Redis 锁，多实例部署使用
//   - NewNoopLocker: 总是成功的空实现，单实例部署或测试使用
//
// 使用模式:
//
//	handle, err := locker.TryLock(ctx, "audit-retention")
//	if err != nil {
//	    return err // 锁服务异常
//	}
//	if handle == nil {
//	    return nil // 其他实例持有，跳过本轮
//	}
//	defer handle.Unlock(ctx)
package xdlock
