// Package xkafka 提供把限流判定事件发布到 Kafka 的事件汇。
//
// Sink 实现 xevent.Sink 接口: 事件序列化为 JSON，以限流键作为
// 消息 key 写入指定 topic，同键事件落在同一分区保证顺序。
// Produce 为异步入队，投递结果由后台 goroutine 消费 delivery
// report 统计，不阻塞判定路径。
//
// 使用方式:
//
//	sink, err := xkafka.NewSink(&kafka.ConfigMap{
//	    "bootstrap.servers": "localhost:9092",
//	}, "ratekit.decisions")
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
//
//	limiter, err := xlimit.New(store, xlimit.WithEventSink(sink))
package xkafka
