// Package xsampling 为决策事件流水线提供采样策略。
//
// 高流量下 checked/allowed 事件的量级等于请求量级，全量下发
// 会压垮事件管道和下游存储。采样器按事件的限流键做一致性采样:
// 同一个键在同一采样率下的决策恒定，保证单个客户端的事件序列
// 要么完整保留、要么完整跳过，便于下游按键回放行为。
//
//	sampler, _ := xsampling.NewKeyBased(0.01)
//	if sampler.ShouldSample(event.Key) {
//	    sink.Publish(ctx, event)
//	}
//
// denied/fail_open 等策略相关事件不应经过采样，调用方直接全量
// 下发（参见 xevent 的事件分流）。
package xsampling
