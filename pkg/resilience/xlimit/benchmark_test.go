package xlimit

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func BenchmarkEvaluateBucket(b *testing.B) {
	now := time.Unix(1_700_000_000, 0)
	later := now.Add(time.Second)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		evaluateBucket(100, 600, 50, now, later, 1)
	}
}

func BenchmarkKeyBuilder_BuildKey(b *testing.B) {
	kb := NewKeyBuilder()
	rule := validRule("search")
	id := Identity{Principal: "alice"}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := kb.BuildKey(rule, id); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryStore_Evaluate(b *testing.B) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	rule := validRule("search")
	rule.Capacity = 1 << 30

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := s.Evaluate(ctx, "k", rule, time.Now(), 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryStore_EvaluateParallel(b *testing.B) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()

	rule := validRule("search")
	rule.Capacity = 1 << 30

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := "k" + strconv.Itoa(i%64)
			if _, err := s.Evaluate(context.Background(), key, rule, time.Now(), 1); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}
