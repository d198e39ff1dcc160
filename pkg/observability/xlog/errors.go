package xlog

import "errors"

var (
	// ErrUnknownLevel 表示无法识别的日志级别字符串
	ErrUnknownLevel = errors.New("xlog: unknown level")

	// ErrUnknownFormat 表示无法识别的输出格式
	ErrUnknownFormat = errors.New("xlog: unknown format")

	// ErrInvalidRotation 表示无效的轮转配置
	ErrInvalidRotation = errors.New("xlog: invalid rotation config")
)
