package xlimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateBucket_BurstThenDeny(t *testing.T) {
	// capacity=5, refill=5/min：满桶连续 5 次放行后拒绝，
	// 等待约 12s 补出下一个令牌
	now := time.Unix(1_700_000_000, 0)
	tokens := 5.0

	wantRemaining := []int{4, 3, 2, 1, 0}
	for i, want := range wantRemaining {
		out := evaluateBucket(5, 5, tokens, now, now, 1)
		assert.True(t, out.allowed, "call %d", i+1)
		assert.Equal(t, want, out.remaining, "call %d", i+1)
		tokens = out.tokens
	}

	out := evaluateBucket(5, 5, tokens, now, now, 1)
	assert.False(t, out.allowed)
	assert.InDelta(t, 12.0, out.retryAfter, 0.01)
	assert.Equal(t, 0, out.remaining)
}

func TestEvaluateBucket_BulkCost(t *testing.T) {
	// capacity=10, cost=5：两次放行耗尽，第三次拒绝
	now := time.Unix(1_700_000_000, 0)

	out := evaluateBucket(10, 60, 10, now, now, 5)
	assert.True(t, out.allowed)
	assert.Equal(t, 5, out.remaining)

	out = evaluateBucket(10, 60, out.tokens, now, now, 5)
	assert.True(t, out.allowed)
	assert.Equal(t, 0, out.remaining)

	out = evaluateBucket(10, 60, out.tokens, now, now, 5)
	assert.False(t, out.allowed)
	assert.Greater(t, out.retryAfter, 0.0)
}

func TestEvaluateBucket_Refill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	// 空桶，60/min = 1/s，过 3 秒补 3 个
	out := evaluateBucket(10, 60, 0, now, now.Add(3*time.Second), 1)
	assert.True(t, out.allowed)
	assert.Equal(t, 2, out.remaining)
	assert.InDelta(t, 2.0, out.tokens, 1e-9)
}

func TestEvaluateBucket_RefillCappedAtCapacity(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	// 长时间闲置后补充封顶于容量
	out := evaluateBucket(5, 60, 1, now, now.Add(time.Hour), 1)
	assert.True(t, out.allowed)
	assert.Equal(t, 4, out.remaining)
	assert.InDelta(t, 4.0, out.tokens, 1e-9)
}

func TestEvaluateBucket_ClockSkew(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	// now 早于 last：间隔按 0 处理，不补充也不倒扣
	out := evaluateBucket(10, 60, 3, now, now.Add(-time.Minute), 1)
	assert.True(t, out.allowed)
	assert.InDelta(t, 2.0, out.tokens, 1e-9)
}

func TestEvaluateBucket_DeniedStillAdvancesState(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	// 拒绝也写回补充后的令牌数，时基推进到 now
	out := evaluateBucket(10, 60, 0.5, now, now.Add(time.Second), 3)
	assert.False(t, out.allowed)
	assert.InDelta(t, 1.5, out.tokens, 1e-9)
	assert.Equal(t, 1, out.remaining)
	assert.InDelta(t, 1.5, out.retryAfter, 1e-9)
}

func TestEvaluateBucket_CostAboveCapacity(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	// cost > capacity 不是特例：按同一公式给出永远不够的等待
	out := evaluateBucket(5, 60, 5, now, now, 10)
	assert.False(t, out.allowed)
	assert.InDelta(t, 5.0, out.retryAfter, 1e-9)
}

func TestEvaluateBucket_RemainingNeverOverReports(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	// 内部 2.9 个令牌只报 1 个剩余（扣减后 1.9 向下取整）
	out := evaluateBucket(10, 60, 2.9, now, now, 1)
	assert.True(t, out.allowed)
	assert.Equal(t, 1, out.remaining)
}

func FuzzEvaluateBucket(f *testing.F) {
	f.Add(int64(5), 5.0, 3.0, int64(0), int64(1))
	f.Add(int64(100), 600.0, 0.0, int64(30), int64(5))
	f.Add(int64(1), 0.1, 1.0, int64(-60), int64(2))

	base := time.Unix(1_700_000_000, 0)

	f.Fuzz(func(t *testing.T, capacity int64, refill, tokens float64, elapsedSec, cost int64) {
		if capacity <= 0 || capacity > 1_000_000 {
			t.Skip()
		}
		if refill <= 0 || refill > 1e9 {
			t.Skip()
		}
		if tokens < 0 || tokens > float64(capacity) {
			t.Skip()
		}
		if cost <= 0 || cost > 1_000_000 {
			t.Skip()
		}
		if elapsedSec < -1e6 || elapsedSec > 1e6 {
			t.Skip()
		}

		out := evaluateBucket(capacity, refill, tokens, base, base.Add(time.Duration(elapsedSec)*time.Second), cost)

		// 写回值始终在 [0, capacity] 内
		assert.GreaterOrEqual(t, out.tokens, 0.0)
		assert.LessOrEqual(t, out.tokens, float64(capacity))
		// remaining 不虚报
		assert.LessOrEqual(t, float64(out.remaining), out.tokens)
		if out.allowed {
			assert.Zero(t, out.retryAfter)
		} else {
			assert.Greater(t, out.retryAfter, 0.0)
		}
	})
}
