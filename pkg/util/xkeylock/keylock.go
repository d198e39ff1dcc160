package xkeylock

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// defaultStripes 默认分片数。
// 分片数远大于常驻 CPU 数即可，碰撞只影响吞吐不影响正确性。
const defaultStripes = 256

// Striped 按 key 分片的互斥锁组。
// 零值不可用，通过 [New] 创建。所有方法并发安全。
type Striped struct {
	stripes []sync.Mutex
	mask    uint64
}

// Option 配置选项函数
type Option func(*config)

type config struct {
	stripes int
}

// WithStripes 设置分片数，向上取整到最近的 2 的幂。
// n <= 0 时使用默认值。
func WithStripes(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.stripes = n
		}
	}
}

// New 创建分片互斥锁组。
func New(opts ...Option) *Striped {
	cfg := &config{stripes: defaultStripes}
	for _, opt := range opts {
		opt(cfg)
	}

	n := nextPowerOfTwo(cfg.stripes)
	return &Striped{
		stripes: make([]sync.Mutex, n),
		mask:    uint64(n - 1),
	}
}

// Lock 锁住 key 所属分片，返回对应的解锁函数。
// 同一分片上的并发调用串行执行。返回的解锁函数只应调用一次。
func (s *Striped) Lock(key string) (unlock func()) {
	mu := &s.stripes[xxhash.Sum64String(key)&s.mask]
	mu.Lock()
	return mu.Unlock
}

// Len 返回分片数，用于监控和测试。
func (s *Striped) Len() int {
	return len(s.stripes)
}

// nextPowerOfTwo 返回不小于 n 的最小 2 的幂。
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
