// Package distributed 提供分布式协调相关的子包。
//
// 子包列表：
//   - xdlock: 分布式锁，Redis redsync 后端，非阻塞 TryLock 语义
//
// 设计原则：
//   - 后台任务抢不到锁就跳过本轮，不做阻塞等待
//   - 限流判定热路径上不使用分布式锁
package distributed
