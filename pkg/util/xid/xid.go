package xid

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/sony/sonyflake/v2"
)

var (
	// ErrInvalidConfig 表示生成器配置无效
	ErrInvalidConfig = errors.New("xid: invalid config")

	// ErrInvalidID 表示无法解析的 ID 字符串
	ErrInvalidID = errors.New("xid: invalid id")
)

// Generator 事件 ID 生成器。并发安全。
type Generator struct {
	flake *sonyflake.Sonyflake
}

// Option 配置选项函数
type Option func(*sonyflake.Settings)

// WithMachineID 设置机器 ID 获取函数。
// 默认由 sonyflake 从私有 IP 推导；多实例部署在无私有 IP 的
// 环境（部分容器网络）下需要显式注入。
func WithMachineID(fn func() (int, error)) Option {
	return func(s *sonyflake.Settings) {
		s.MachineID = fn
	}
}

// NewGenerator 创建事件 ID 生成器。
func NewGenerator(opts ...Option) (*Generator, error) {
	var settings sonyflake.Settings
	for _, opt := range opts {
		opt(&settings)
	}

	flake, err := sonyflake.New(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &Generator{flake: flake}, nil
}

// EventID 生成时间有序的事件 ID，base36 编码。
//
// 设计决策: 雪花 ID 生成失败（时钟回拨超限）时退化为随机 ID
// 而不是返回错误。事件 ID 的消费方只要求唯一性，时间有序是
// 优化属性；让事件流水线因 ID 生成中断得不偿失。
func (g *Generator) EventID() string {
	id, err := g.flake.NextID()
	if err != nil || id <= 0 {
		return randomEventID()
	}
	return strconv.FormatInt(id, 36)
}

// CorrelationID 生成请求关联 ID（UUID v4）。
func (g *Generator) CorrelationID() string {
	return uuid.NewString()
}

// ParseEventID 解析 base36 事件 ID 为原始雪花值。
// 退化生成的随机 ID 同样可解析，但无时间语义。
func ParseEventID(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidID)
	}
	id, err := strconv.ParseInt(s, 36, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// randomEventID 生成随机退化 ID。
func randomEventID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// 随机源失败退化为 UUID（内部带自己的随机源兜底）
		return uuid.NewString()
	}
	// 清符号位，保证解析侧恒为正值
	v := int64(binary.BigEndian.Uint64(buf[:]) >> 1)
	if v == 0 {
		v = 1
	}
	return strconv.FormatInt(v, 36)
}

// =============================================================================
// 包级默认生成器
// =============================================================================

var (
	defaultGen     *Generator
	defaultGenOnce sync.Once
)

// Default 返回包级默认生成器（延迟初始化）。
// 初始化失败时返回 nil，调用方应改用 NewGenerator 显式注入机器 ID。
func Default() *Generator {
	defaultGenOnce.Do(func() {
		gen, err := NewGenerator()
		if err == nil {
			defaultGen = gen
		}
	})
	return defaultGen
}

// EventID 使用默认生成器生成事件 ID。
// 默认生成器不可用时返回随机退化 ID。
func EventID() string {
	if g := Default(); g != nil {
		return g.EventID()
	}
	return randomEventID()
}

// CorrelationID 使用默认生成器生成关联 ID。
func CorrelationID() string {
	return uuid.NewString()
}
