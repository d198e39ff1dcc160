package xsampling

import (
	"errors"
	"math"
	"math/rand/v2"
)

var (
	// ErrInvalidRate 表示采样率超出 [0.0, 1.0] 或为 NaN
	ErrInvalidRate = errors.New("xsampling: rate must be in [0.0, 1.0]")
)

// Sampler 采样策略接口。
// key 为事件的限流键；实现必须并发安全。
type Sampler interface {
	// ShouldSample 判断该键的事件是否应该下发。
	ShouldSample(key string) bool
}

// SamplerFunc 函数适配器。
type SamplerFunc func(key string) bool

// ShouldSample 实现 Sampler 接口。
func (f SamplerFunc) ShouldSample(key string) bool {
	return f(key)
}

// Always 返回全量采样器。
func Always() Sampler {
	return SamplerFunc(func(string) bool { return true })
}

// Never 返回全量丢弃采样器。
func Never() Sampler {
	return SamplerFunc(func(string) bool { return false })
}

// NewRandom 创建随机采样器：每次调用独立掷骰，无键一致性。
// 适用于键基数极低、一致性无意义的场景。
func NewRandom(rate float64) (Sampler, error) {
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	return SamplerFunc(func(string) bool {
		return rand.Float64() < rate
	}), nil
}

func validateRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return ErrInvalidRate
	}
	return nil
}
