package xlimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetScripts(t *testing.T) {
	scripts := getScripts()
	require.NotNil(t, scripts)
	assert.NotNil(t, scripts.evaluate)
	assert.NotNil(t, scripts.peek)

	// 多次调用返回同一实例（单例）
	assert.Same(t, scripts, getScripts())
}

func TestWarmupScripts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()

	t.Run("nil client", func(t *testing.T) {
		assert.ErrorIs(t, WarmupScripts(ctx, nil), ErrNilClient)
	})

	t.Run("warmup succeeds and is repeatable", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.NoError(t, WarmupScripts(ctx, client))
		}
	})
}

func TestLuaScripts_Embedded(t *testing.T) {
	assert.NotEmpty(t, evaluateLuaSource)
	assert.NotEmpty(t, peekLuaSource)
}

func TestConvertScriptResult(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    []int64
		wantErr bool
	}{
		{"int64 elements", []any{int64(1), int64(2)}, []int64{1, 2}, false},
		{"int elements", []any{1, 2}, []int64{1, 2}, false},
		{"integer float64", []any{float64(3)}, []int64{3}, false},
		{"empty array", []any{}, []int64{}, false},
		{"not an array", "oops", nil, true},
		{"non-integer float64", []any{1.5}, nil, true},
		{"unexpected element type", []any{"x"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertScriptResult(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUnexpectedScriptResult)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateScriptResult(t *testing.T) {
	assert.NoError(t, validateScriptResult([]int64{1, 2, 3, 4}, 4))
	assert.ErrorIs(t, validateScriptResult([]int64{1}, 4), errUnexpectedScriptResult)
}
