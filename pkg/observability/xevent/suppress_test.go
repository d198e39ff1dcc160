package xevent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuppressorValidation(t *testing.T) {
	_, err := NewSuppressor(0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewSuppressor(-time.Second)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSuppressorOnlyAffectsDenied(t *testing.T) {
	s, err := NewSuppressor(time.Minute)
	require.NoError(t, err)
	defer s.Close()

	e := Event{RuleID: "login", Key: "k"}
	for _, k := range []Kind{KindChecked, KindAllowed, KindFailOpen} {
		e.Kind = k
		assert.True(t, s.Allow(e), "kind %q must always pass", k)
		assert.True(t, s.Allow(e), "kind %q must always pass twice", k)
	}
}

func TestSuppressorCollapsesRepeats(t *testing.T) {
	s, err := NewSuppressor(time.Minute)
	require.NoError(t, err)
	defer s.Close()

	deny := Event{Kind: KindDenied, RuleID: "login", Key: "k1"}
	assert.True(t, s.Allow(deny), "first denial passes")
	s.Wait()

	for range 10 {
		assert.False(t, s.Allow(deny), "repeat denial within window suppressed")
	}

	// 不同键独立计数
	other := Event{Kind: KindDenied, RuleID: "login", Key: "k2"}
	assert.True(t, s.Allow(other))
}

func TestSuppressorWindowExpiry(t *testing.T) {
	s, err := NewSuppressor(50 * time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	deny := Event{Kind: KindDenied, RuleID: "login", Key: "k1"}
	require.True(t, s.Allow(deny))
	s.Wait()
	require.False(t, s.Allow(deny))

	time.Sleep(150 * time.Millisecond)
	assert.True(t, s.Allow(deny), "denial after window expiry passes again")
}

func TestSuppressorSummaryCallback(t *testing.T) {
	var mu sync.Mutex
	type summary struct {
		ruleID, key string
		count       uint64
	}
	var got []summary

	s, err := NewSuppressor(200*time.Millisecond, WithSummaryFunc(func(ruleID, key string, count uint64) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, summary{ruleID, key, count})
	}))
	require.NoError(t, err)
	defer s.Close()

	deny := Event{Kind: KindDenied, RuleID: "login", Key: "k1"}
	require.True(t, s.Allow(deny))
	s.Wait()
	for range 3 {
		require.False(t, s.Allow(deny))
	}

	// 窗口过期后由清理 ticker 驱逐条目并触发汇总回调
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(got) > 0
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "login", got[0].ruleID)
	assert.Equal(t, "k1", got[0].key)
	assert.Equal(t, uint64(3), got[0].count)
}
