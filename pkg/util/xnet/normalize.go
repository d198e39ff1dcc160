package xnet

import (
	"net"
	"net/netip"
	"strings"
)

// InvalidIPLiteral 畸形地址的规范归一化结果。
//
// 设计决策: 畸形输入不报错而是归并到单一字面量。按 IP 限流时
// 抛错会中断检查路径，而把所有垃圾输入归并到同一个桶意味着
// 伪造来源的请求共享一份配额，劣化方向是安全的。
const InvalidIPLiteral = "invalid"

// ParseAddr 解析并规范化 IP 地址。
//
// 接受裸 IP（"203.0.113.1"）或 host:port（"203.0.113.1:8080"、
// "[2001:db8::1]:443"）。规范化包括:
//   - IPv4-mapped IPv6（::ffff:1.2.3.4）解映射为 IPv4
//   - 剥离 zone 后缀（fe80::1%eth0）
//
// 第二个返回值为 false 表示输入无法解析。
func ParseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}

	// host:port 形式先剥离端口
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}

	return canonical(addr), true
}

// NormalizeIP 将输入归一化为规范 IP 字面量。
// 无法解析的输入返回 [InvalidIPLiteral]，永不报错。
func NormalizeIP(s string) string {
	addr, ok := ParseAddr(s)
	if !ok {
		return InvalidIPLiteral
	}
	return addr.String()
}

// canonical 返回地址的规范形式：解映射 4-in-6，剥离 zone。
func canonical(addr netip.Addr) netip.Addr {
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	if addr.Zone() != "" {
		addr = addr.WithZone("")
	}
	return addr
}
