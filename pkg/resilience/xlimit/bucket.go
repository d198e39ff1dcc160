package xlimit

import (
	"math"
	"time"
)

// bucketOutcome 一次令牌桶判定的完整结果。
type bucketOutcome struct {
	allowed bool
	// tokens 判定后应写回的令牌数
	tokens float64
	// retryAfter 拒绝时距下次可满足的秒数，放行时为 0
	retryAfter float64
	// remaining 对外报告的剩余量，向下取整永不虚报
	remaining int
}

// evaluateBucket 令牌桶核心算法，纯函数。
//
// 惰性补充：按距上次观测的壁钟间隔补令牌，封顶于容量；时钟回拨
// 时间隔按 0 处理（不补充也不倒扣）。无论放行还是拒绝，新状态都
// 必须写回——拒绝也推进了补充时基。cost 大于容量不是特例：按同一
// 公式算出的等待永远不够，桶永远无法满足该请求。
func evaluateBucket(capacity int64, refillPerMinute float64, tokens float64, last, now time.Time, cost int64) bucketOutcome {
	rps := refillPerMinute / 60
	cap64 := float64(capacity)

	elapsed := now.Sub(last).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	t1 := tokens + elapsed*rps
	if t1 > cap64 {
		t1 = cap64
	}

	k := float64(cost)
	if t1 >= k {
		left := t1 - k
		return bucketOutcome{
			allowed:   true,
			tokens:    left,
			remaining: int(math.Floor(left)),
		}
	}

	return bucketOutcome{
		allowed:    false,
		tokens:     t1,
		retryAfter: (k - t1) / rps,
		remaining:  int(math.Floor(t1)),
	}
}
