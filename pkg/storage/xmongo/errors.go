package xmongo

import "errors"

var (
	// ErrNilClient 客户端为空
	ErrNilClient = errors.New("xmongo: client is nil")

	// ErrEmptyDatabase 数据库名为空
	ErrEmptyDatabase = errors.New("xmongo: empty database name")

	// ErrEmptyCollection 集合名为空
	ErrEmptyCollection = errors.New("xmongo: empty collection name")

	// ErrClosed 存储已关闭
	ErrClosed = errors.New("xmongo: store is closed")
)
