package xsampling

import (
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// thresholdScale 采样阈值的万分位刻度。
// 万分位粒度（0.01%）对事件采样已经足够，同时避免浮点比较。
const thresholdScale = 10000

// KeyBased 基于键哈希的一致性采样器。
//
// 同一个 key 在同一 rate 下的采样决策恒定，且跨进程一致
// （哈希不含进程随机因子），多实例部署下同一客户端的事件
// 在所有节点上同进同出。
type KeyBased struct {
	rate      float64
	threshold uint64
}

// NewKeyBased 创建一致性采样器。
// rate 为采样比率，范围 [0.0, 1.0]，非法时返回 [ErrInvalidRate]。
func NewKeyBased(rate float64) (*KeyBased, error) {
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	return &KeyBased{
		rate:      rate,
		threshold: uint64(rate * thresholdScale),
	}, nil
}

// ShouldSample 判断该键的事件是否应该下发。
//
// 空 key 回退到随机采样：保持采样率语义，但失去一致性。
// 空 key 通常意味着上游键构建失败，事件本身仍值得按比例保留。
func (s *KeyBased) ShouldSample(key string) bool {
	if key == "" {
		return rand.Float64() < s.rate
	}
	return xxhash.Sum64String(key)%thresholdScale < s.threshold
}

// Rate 返回采样率，用于日志和调试。
func (s *KeyBased) Rate() float64 {
	return s.rate
}

var _ Sampler = (*KeyBased)(nil)
