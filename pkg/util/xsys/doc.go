// Package xsys 提供进程资源限制工具。
//
// 压测这类需要大量并发连接的场景，默认的打开文件数上限
// （常见 1024）很容易耗尽。[EnsureFileLimit] 在启动时把
// soft limit 提升到需要的值。
//
// Unix 平台通过 RLIMIT_NOFILE 实现；其他平台返回
// [ErrUnsupportedPlatform]，参数校验行为跨平台一致。
package xsys
