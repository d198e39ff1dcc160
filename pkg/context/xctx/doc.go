// Package xctx 提供请求级元数据的 context 传递能力。
//
// # 功能概览
//
//   - [WithRequestID] / [RequestID]: 请求 ID 的注入与读取
//   - [WithClientIP] / [ClientIP]: 归一化客户端 IP 的注入与读取
//   - [WithPrincipal] / [Principal]: 认证主体 ID 的注入与读取
//   - [EnsureRequestID]: 缺失时自动生成请求 ID
//   - [Attrs]: 将 context 中的元数据导出为 slog 属性
//
// # 使用场景
//
// 准入中间件在请求入口注入元数据，下游的日志富化（xlog）与
// 事件发布（xevent）从同一 context 读取，保证一次请求的日志、
// 事件携带一致的关联字段。
//
//	ctx = xctx.WithRequestID(ctx, reqID)
//	ctx = xctx.WithClientIP(ctx, ip)
//	logger.Info(ctx, "admission checked") // 自动携带 request_id、client_ip
package xctx
