package xnet

import "errors"

var (
	// ErrInvalidPrefix 表示无法解析的 CIDR 或 IP 字面量
	ErrInvalidPrefix = errors.New("xnet: invalid prefix")
)
