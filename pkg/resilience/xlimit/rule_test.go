package xlimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule(id string) Rule {
	return Rule{
		ID:              id,
		Scope:           ScopeUser,
		Capacity:        100,
		RefillPerMinute: 600,
		Cost:            1,
	}
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Rule)
		wantErr error
	}{
		{"valid", func(r *Rule) {}, nil},
		{"empty id", func(r *Rule) { r.ID = "" }, ErrInvalidRule},
		{"unknown scope", func(r *Rule) { r.Scope = "tenant" }, ErrUnknownScope},
		{"zero capacity", func(r *Rule) { r.Capacity = 0 }, ErrInvalidRule},
		{"negative capacity", func(r *Rule) { r.Capacity = -5 }, ErrInvalidRule},
		{"zero refill", func(r *Rule) { r.RefillPerMinute = 0 }, ErrInvalidRule},
		{"negative refill", func(r *Rule) { r.RefillPerMinute = -1 }, ErrInvalidRule},
		{"zero cost", func(r *Rule) { r.Cost = 0 }, ErrInvalidRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule("test")
			tt.mutate(&r)

			err := r.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRule_IsEnabled(t *testing.T) {
	r := validRule("test")
	assert.True(t, r.IsEnabled(), "nil Enabled defaults to enabled")

	enabled := true
	r.Enabled = &enabled
	assert.True(t, r.IsEnabled())

	disabled := false
	r.Enabled = &disabled
	assert.False(t, r.IsEnabled())
}

func TestRule_TTL(t *testing.T) {
	// 容量 100，600/min = 10/s，补满 10s，加 60s 余量
	r := validRule("test")
	assert.Equal(t, 70*time.Second, r.TTL())

	// 非整秒补满时长向上取整
	r.Capacity = 101
	assert.Equal(t, 71*time.Second, r.TTL())
}

func TestNewRuleSet(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := NewRuleSet(nil)
		assert.ErrorIs(t, err, ErrNoRules)
	})

	t.Run("invalid rule fails whole set", func(t *testing.T) {
		_, err := NewRuleSet([]Rule{validRule("a"), {ID: "b"}})
		assert.ErrorIs(t, err, ErrUnknownScope)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := NewRuleSet([]Rule{validRule("a"), validRule("a")})
		assert.ErrorIs(t, err, ErrDuplicateRule)
	})

	t.Run("omitted cost defaults to one", func(t *testing.T) {
		r := validRule("a")
		r.Cost = 0
		rs, err := NewRuleSet([]Rule{r})
		require.NoError(t, err)

		got, ok := rs.Get("a")
		require.True(t, ok)
		assert.Equal(t, int64(1), got.Cost)
	})

	t.Run("negative cost still rejected", func(t *testing.T) {
		r := validRule("a")
		r.Cost = -1
		_, err := NewRuleSet([]Rule{r})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("lookup and sorted listing", func(t *testing.T) {
		rs, err := NewRuleSet([]Rule{validRule("b"), validRule("a"), validRule("c")})
		require.NoError(t, err)
		assert.Equal(t, 3, rs.Len())

		_, ok := rs.Get("missing")
		assert.False(t, ok)

		rules := rs.Rules()
		require.Len(t, rules, 3)
		assert.Equal(t, "a", rules[0].ID)
		assert.Equal(t, "b", rules[1].ID)
		assert.Equal(t, "c", rules[2].ID)
	})
}
