package xdlock

import "errors"

var (
	// ErrNilClient 客户端为空
	ErrNilClient = errors.New("xdlock: client is nil")

	// ErrEmptyKey 锁 key 为空
	ErrEmptyKey = errors.New("xdlock: key must not be empty")

	// ErrNotLocked 锁未被持有。
	// Unlock 时锁已过期或被其他持有者覆盖返回此错误。
	ErrNotLocked = errors.New("xdlock: not locked")
)
