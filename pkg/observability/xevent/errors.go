package xevent

import "errors"

var (
	// ErrNilSink 表示创建分发器时未提供下游 sink
	ErrNilSink = errors.New("xevent: nil sink")
	// ErrClosed 表示分发器已关闭
	ErrClosed = errors.New("xevent: dispatcher closed")
	// ErrInvalidConfig 表示分发器配置非法
	ErrInvalidConfig = errors.New("xevent: invalid config")
)
