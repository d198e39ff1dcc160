package xretry

import (
	"math/rand/v2"
	"time"
)

// FixedBackoff 固定间隔退避。
type FixedBackoff struct {
	delay time.Duration
}

// NewFixedBackoff 创建固定间隔退避。
func NewFixedBackoff(delay time.Duration) *FixedBackoff {
	if delay < 0 {
		delay = 0
	}
	return &FixedBackoff{delay: delay}
}

// NextDelay 实现 BackoffPolicy 接口。
func (b *FixedBackoff) NextDelay(int) time.Duration {
	return b.delay
}

// ExponentialBackoff 指数退避，带全抖动。
//
// 第 n 次失败后的基础时长为 base * 2^(n-1)，上限 max；
// 实际等待在 [base/2, 基础时长] 内随机，避免多个消费者
// 在故障恢复瞬间同步重试。
type ExponentialBackoff struct {
	base time.Duration
	max  time.Duration
}

// NewExponentialBackoff 创建指数退避。
// base <= 0 时取 100ms，max < base 时取 base。
func NewExponentialBackoff(base, max time.Duration) *ExponentialBackoff {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if max < base {
		max = base
	}
	return &ExponentialBackoff{base: base, max: max}
}

// NextDelay 实现 BackoffPolicy 接口。
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := b.base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.max || delay <= 0 {
			delay = b.max
			break
		}
	}

	low := b.base / 2
	if delay <= low {
		return delay
	}
	return low + rand.N(delay-low)
}

// NoBackoff 零等待退避，用于测试和本地内存场景。
type NoBackoff struct{}

// NextDelay 实现 BackoffPolicy 接口。
func (NoBackoff) NextDelay(int) time.Duration {
	return 0
}

var (
	_ BackoffPolicy = (*FixedBackoff)(nil)
	_ BackoffPolicy = (*ExponentialBackoff)(nil)
	_ BackoffPolicy = NoBackoff{}
)
