// Package storage 提供审计事件存储相关的子包。
//
// 子包列表：
//   - xmongo: MongoDB 审计存储，TTL 索引保留期与分页查询
//   - xclickhouse: ClickHouse 审计存储，批量写入与聚合分析
//
// 设计原则：
//   - 统一提供 Sink() 适配器，事件攒批落库
//   - 客户端生命周期由调用者管理
//   - 内置健康检查与读写统计
package storage
