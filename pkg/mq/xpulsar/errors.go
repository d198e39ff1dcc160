package xpulsar

import (
	"errors"

	"github.com/omeyang/ratekit/internal/eventcore"
)

// 与 xkafka 共享的错误（重导出）
var (
	// ErrNilClient 客户端为空
	ErrNilClient = eventcore.ErrNilClient

	// ErrClosed sink 已关闭
	ErrClosed = eventcore.ErrClosed
)

// ErrEmptyTopic topic 为空
var ErrEmptyTopic = errors.New("xpulsar: empty topic")
