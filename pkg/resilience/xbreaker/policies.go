package xbreaker

import "github.com/sony/gobreaker/v2"

// TripPolicy 熔断判定策略。
// 每次请求结束后以窗口内统计数据调用，返回 true 时熔断器打开。
type TripPolicy func(counts gobreaker.Counts) bool

// ConsecutiveFailures 连续失败 n 次后熔断
func ConsecutiveFailures(n uint32) TripPolicy {
	return func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= n
	}
}

// FailureRate 失败率超过阈值后熔断。
// ratio 取值 (0, 1]；minRequests 是窗口内最小请求数，
// 样本不足时不触发，避免低流量下误判。
func FailureRate(ratio float64, minRequests uint32) TripPolicy {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}
