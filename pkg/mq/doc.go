// Package mq 提供消息队列相关的子包。
//
// 子包列表：
//   - xkafka: Kafka 事件接收器，按限流键分区保序
//   - xpulsar: Pulsar 事件接收器
//
// 设计原则：
//   - 统一实现 xevent.Sink 接口，可直接挂到限流器上
//   - 异步发送，发布失败只计数不反压判定路径
//   - 关闭时在超时内冲刷未送达消息
package mq
