// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展
//   - xmetrics: 统一可观测性接口（指标、追踪、日志）
//   - xevent: 限流判定事件模型与异步分发
//   - xsampling: 采样策略，控制高频事件的上报量
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 自动从 context 中提取追踪信息注入日志
//   - 事件管道异步且允许有损，不反压判定路径
package observability
