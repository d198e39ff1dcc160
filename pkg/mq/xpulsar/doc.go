// Package xpulsar 提供把限流判定事件发布到 Pulsar 的事件汇。
//
// Sink 实现 xevent.Sink 接口: 事件序列化为 JSON，以限流键作为
// 消息 key 发送，同键事件保持分区内顺序。发送走 SendAsync，
// 投递结果在回调中统计，不阻塞判定路径。
//
// 使用方式:
//
//	client, err := pulsar.NewClient(pulsar.ClientOptions{
//	    URL: "pulsar://localhost:6650",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sink, err := xpulsar.NewSink(client, "persistent://public/default/ratekit-decisions")
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
//
// 客户端生命周期由调用者管理，Sink 只关闭自己创建的 producer。
package xpulsar
