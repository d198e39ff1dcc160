// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xid: 事件标识生成，uuid 与 sonyflake 双实现
//   - xkeylock: 基于 key 的进程内互斥锁，支持 context 超时和非阻塞获取
//   - xnet: IP 地址工具库，基于 net/netip + go4.org/netipx 的增量函数（归一化、代理链解析）
//   - xsys: 系统资源限制管理，文件描述符上限
package util
