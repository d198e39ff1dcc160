// Package xid 为决策事件流水线生成标识符。
//
// 两类 ID 各司其职:
//
//   - EventID: sonyflake 雪花 ID（时间有序），用于事件排序和
//     审计存储的主键；输出为 base36 字符串以缩短存储宽度
//   - CorrelationID: UUID v4，用于跨服务关联一次请求产生的
//     所有事件，无序但全局唯一
//
// 生成器并发安全。雪花 ID 生成失败（时钟回拨等罕见场景）时
// 退化为 UUID，事件流水线不因 ID 生成中断。
package xid
