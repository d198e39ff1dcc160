// Package xevent 提供限流决策事件的异步下发管道。
//
// 限流器每次判定产生 checked/allowed/denied/fail_open 事件,
// 本包负责把事件从请求路径上卸载下来：有界队列削峰（溢出时
// 丢最旧）、worker 异步排空、按 sink 做 panic 隔离和有限重试。
// 事件链路的任何故障都不回灌判定路径。
//
//	dispatcher, _ := xevent.NewDispatcher(sink,
//	    xevent.WithSampler(sampler),
//	    xevent.WithSuppressWindow(10*time.Second),
//	)
//	defer dispatcher.Close()
//	_ = dispatcher.Publish(ctx, event)
//
// 事件分流约定：checked/allowed 经过采样器，denied/fail_open
// 全量保留；重复 denied 在抑制窗口内折叠为计数。
package xevent
