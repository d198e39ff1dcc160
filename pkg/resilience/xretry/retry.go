package xretry

import "time"

// RetryPolicy 重试判定策略。
// 实现必须并发安全：同一个策略实例会被多个重试器共享。
type RetryPolicy interface {
	// MaxAttempts 返回最大尝试次数（含首次执行）。
	// 返回 0 表示不限次数，由调用方 context 控制终止。
	MaxAttempts() int

	// ShouldRetry 判断第 attempt 次（从 1 开始）失败后是否继续。
	ShouldRetry(attempt int, err error) bool
}

// BackoffPolicy 退避时长策略。
type BackoffPolicy interface {
	// NextDelay 返回第 attempt 次（从 1 开始）失败后的等待时长。
	NextDelay(attempt int) time.Duration
}
