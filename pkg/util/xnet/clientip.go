package xnet

import (
	"strings"

	"go4.org/netipx"
)

// ClientIP 从请求来源和转发链解析真实客户端 IP。
//
// 参数:
//   - remoteAddr: 直连对端地址（http.Request.RemoteAddr 形式，host:port）
//   - forwardedFor: X-Forwarded-For 原始值（"client, proxy1, proxy2"），可为空
//   - trusted: 可信代理集合；nil 表示不信任任何转发头
//
// 解析规则:
//   - 直连对端不在可信集合内时，转发头不可信，直接返回对端地址
//   - 否则沿转发链从右向左回溯，跳过可信代理，
//     返回第一个不可信跳的规范化地址
//   - 整条链都可信时返回最左端地址（链的起点）
//   - 任何无法解析的环节归一化为 [InvalidIPLiteral]
//
// 返回值恒为规范 IP 字面量或 [InvalidIPLiteral]，永不为空。
func ClientIP(remoteAddr, forwardedFor string, trusted *netipx.IPSet) string {
	remote, ok := ParseAddr(remoteAddr)
	if !ok {
		return InvalidIPLiteral
	}

	// 直连对端不可信：转发头可被伪造，忽略
	if trusted == nil || !trusted.Contains(remote) {
		return remote.String()
	}

	hops := splitForwardedFor(forwardedFor)
	if len(hops) == 0 {
		return remote.String()
	}

	// 从右向左找第一个不可信跳
	for i := len(hops) - 1; i >= 0; i-- {
		addr, parsed := ParseAddr(hops[i])
		if !parsed {
			return InvalidIPLiteral
		}
		if !trusted.Contains(addr) {
			return addr.String()
		}
	}

	// 整条链都是可信代理，取链起点
	addr, parsed := ParseAddr(hops[0])
	if !parsed {
		return InvalidIPLiteral
	}
	return addr.String()
}

// splitForwardedFor 切分 X-Forwarded-For 值，剔除空白项。
func splitForwardedFor(v string) []string {
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	hops := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			hops = append(hops, p)
		}
	}
	return hops
}
