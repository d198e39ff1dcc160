package xnet

import (
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// TrustedProxies 从 CIDR 或单 IP 字面量列表构建可信代理集合。
//
// 每个元素可以是前缀（"10.0.0.0/8"、"2001:db8::/32"）或
// 单个地址（"203.0.113.7"，按 /32 或 /128 处理）。
// 任一元素无法解析时返回 [ErrInvalidPrefix]。
//
// 返回的 IPSet 不可变，可跨 goroutine 共享。
func TrustedProxies(entries []string) (*netipx.IPSet, error) {
	var b netipx.IPSetBuilder

	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, fmt.Errorf("%w: entries[%d] is empty", ErrInvalidPrefix, i)
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: entries[%d] %q: %v", ErrInvalidPrefix, i, entry, err)
			}
			b.AddPrefix(prefix.Masked())
			continue
		}

		addr, ok := ParseAddr(entry)
		if !ok {
			return nil, fmt.Errorf("%w: entries[%d] %q", ErrInvalidPrefix, i, entry)
		}
		b.Add(addr)
	}

	return b.IPSet()
}

// Contains 检查地址字面量是否落在集合内。
// set 为 nil 或地址无法解析时返回 false。
func Contains(set *netipx.IPSet, literal string) bool {
	if set == nil {
		return false
	}
	addr, ok := ParseAddr(literal)
	if !ok {
		return false
	}
	return set.Contains(addr)
}
