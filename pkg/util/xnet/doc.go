// Package xnet 提供限流身份识别所需的 IP 处理能力。
//
// 核心功能:
//
//   - NormalizeIP: 将任意输入归一化为规范 IP 字面量，
//     畸形输入归一化为固定的 [InvalidIPLiteral]，永不报错
//   - TrustedProxies: 从 CIDR/单 IP 列表构建可信代理集合
//   - ClientIP: 沿可信转发链（X-Forwarded-For）从右向左回溯，
//     返回第一个不可信跳的地址
//
// # 设计理念
//
// 限流按 IP 维度计数时，键的取值必须稳定且不可伪造：
//
//   - 归一化保证同一地址只有一种写法（IPv4-mapped IPv6 解映射、
//     zone 后缀剥离），避免同一客户端分裂为多个桶
//   - 畸形地址归并到单一 invalid 桶而不是抛错，保证检查路径
//     永不因输入异常而中断
//   - 只信任已配置的代理网段声明的转发头，防止客户端通过
//     伪造 X-Forwarded-For 逃逸自己的配额
package xnet
