// Package eventcore 提供事件下发链路的共享核心功能。
//
// 本包是 internal 包，仅供 xevent 及其 broker sink（xkafka/xpulsar）
// 内部使用，外部用户不应直接导入。
//
// 依赖策略: 本包作为事件族的共享内核，依赖低层工具包
// (pkg/context/xctx、pkg/resilience/xretry) 提取公共实现。
// 依赖链为：高层 pkg（xevent/xkafka/xpulsar）→ internal/eventcore
// → 低层 pkg（xctx/xretry），逻辑上仍从高到低，不构成循环依赖。
//
// 主要功能：
//   - Tracer 接口：事件消息头的追踪信息注入与提取
//   - OTelTracer / NoopTracer：基于 OpenTelemetry 的实现与空实现
//   - 共享错误定义（xkafka/xpulsar 共用，各自专用错误定义在各包内）
//   - RunDrainLoop：带退避的事件队列排空循环
package eventcore
