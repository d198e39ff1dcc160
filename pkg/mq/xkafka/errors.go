package xkafka

import (
	"errors"

	"github.com/omeyang/ratekit/internal/eventcore"
)

// 与 xpulsar 共享的错误（重导出，internal 包名不出现在错误文案中）
var (
	// ErrClosed sink 已关闭
	ErrClosed = eventcore.ErrClosed
)

// Kafka 特有错误
var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("xkafka: nil config")

	// ErrEmptyTopic topic 为空
	ErrEmptyTopic = errors.New("xkafka: empty topic")

	// ErrFlushTimeout 关闭时仍有消息未投递完成
	ErrFlushTimeout = errors.New("xkafka: flush timeout")
)
