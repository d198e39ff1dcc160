// Package xkeylock 提供按 key 分片的进程内互斥锁。
//
// 典型用途是单机限流存储的原子性原语：对同一个桶的
// 读-改-写必须互斥，不同桶之间不应相互阻塞。分片数固定为
// 2 的幂，key 经 xxhash 映射到分片，锁的持有时间应当只覆盖
// 纯内存操作，绝不跨 I/O 持锁。
//
//	locks := xkeylock.New()
//	unlock := locks.Lock("bucket-key")
//	// ... 读-改-写内存状态 ...
//	unlock()
package xkeylock
