package xctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestID(ctx))
}

func TestRequestID_Missing(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Empty(t, RequestID(nil)) //nolint:staticcheck // nil ctx 防御
}

func TestWithRequestID_EmptyValueIgnored(t *testing.T) {
	base := context.Background()
	ctx := WithRequestID(base, "")
	assert.Equal(t, base, ctx)
}

func TestWithRequestID_NilContext(t *testing.T) {
	ctx := WithRequestID(nil, "req-1") //nolint:staticcheck // nil ctx 防御
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestEnsureRequestID_GeneratesWhenMissing(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	require.NotEmpty(t, id)
	assert.Len(t, id, 32)
	assert.Equal(t, id, RequestID(ctx))
}

func TestEnsureRequestID_KeepsExisting(t *testing.T) {
	base := WithRequestID(context.Background(), "req-keep")
	ctx, id := EnsureRequestID(base)
	assert.Equal(t, "req-keep", id)
	assert.Equal(t, base, ctx)
}

func TestClientIP_RoundTrip(t *testing.T) {
	ctx := WithClientIP(context.Background(), "203.0.113.7")
	assert.Equal(t, "203.0.113.7", ClientIP(ctx))
}

func TestPrincipal_RoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), "user-42")
	assert.Equal(t, "user-42", Principal(ctx))
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"empty context", context.Background(), 0},
		{"nil context", nil, 0},
		{
			"request id only",
			WithRequestID(context.Background(), "r1"),
			1,
		},
		{
			"all fields",
			WithPrincipal(WithClientIP(WithRequestID(context.Background(), "r1"), "198.51.100.3"), "u1"),
			3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := Attrs(tt.ctx)
			assert.Len(t, attrs, tt.want)
		})
	}
}

func TestAttrs_Keys(t *testing.T) {
	ctx := WithPrincipal(WithClientIP(WithRequestID(context.Background(), "r1"), "198.51.100.3"), "u1")
	attrs := Attrs(ctx)
	require.Len(t, attrs, 3)

	keys := make(map[string]string, len(attrs))
	for _, a := range attrs {
		keys[a.Key] = a.Value.String()
	}
	assert.Equal(t, "r1", keys[KeyRequestID])
	assert.Equal(t, "198.51.100.3", keys[KeyClientIP])
	assert.Equal(t, "u1", keys[KeyPrincipal])
}
