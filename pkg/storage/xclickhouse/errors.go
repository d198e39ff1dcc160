package xclickhouse

import "errors"

var (
	// ErrNilConn 连接为空
	ErrNilConn = errors.New("xclickhouse: connection is nil")

	// ErrInvalidTableName 表名含非法字符
	ErrInvalidTableName = errors.New("xclickhouse: invalid table name")

	// ErrClosed 存储已关闭
	ErrClosed = errors.New("xclickhouse: store is closed")

	// ErrNilStore 存储为空
	ErrNilStore = errors.New("xclickhouse: store is nil")
)
