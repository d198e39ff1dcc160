package xctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
)

// ctxKey 私有 key 类型，避免与其他包的 context key 冲突。
type ctxKey int

const (
	keyRequestID ctxKey = iota
	keyClientIP
	keyPrincipal
)

// 日志属性 Key 常量（下划线分隔，与 OpenTelemetry 语义约定一致）。
const (
	KeyRequestID = "request_id"
	KeyClientIP  = "client_ip"
	KeyPrincipal = "principal"
)

// requestIDSize 自动生成的请求 ID 字节数（16 bytes -> 32 hex chars）。
const requestIDSize = 16

// WithRequestID 返回携带请求 ID 的派生 context。
// id 为空时返回原 context。
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestID 从 context 读取请求 ID，不存在返回空字符串。
func RequestID(ctx context.Context) string {
	return stringValue(ctx, keyRequestID)
}

// EnsureRequestID 确保 context 携带请求 ID。
// 已存在时原样返回；否则生成一个随机 ID 并注入。
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestID(ctx); id != "" {
		return ctx, id
	}
	id := newRequestID()
	return WithRequestID(ctx, id), id
}

// WithClientIP 返回携带归一化客户端 IP 的派生 context。
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, keyClientIP, ip)
}

// ClientIP 从 context 读取客户端 IP，不存在返回空字符串。
func ClientIP(ctx context.Context) string {
	return stringValue(ctx, keyClientIP)
}

// WithPrincipal 返回携带认证主体 ID 的派生 context。
func WithPrincipal(ctx context.Context, principal string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if principal == "" {
		return ctx
	}
	return context.WithValue(ctx, keyPrincipal, principal)
}

// Principal 从 context 读取认证主体 ID，不存在返回空字符串。
func Principal(ctx context.Context) string {
	return stringValue(ctx, keyPrincipal)
}

// Attrs 将 context 中的请求元数据导出为 slog 属性。
// 只导出已设置的字段，全部缺失时返回 nil。
func Attrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if v := ClientIP(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyClientIP, v))
	}
	if v := Principal(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyPrincipal, v))
	}
	return attrs
}

// stringValue 读取字符串类型的 context 值。
func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// newRequestID 生成随机请求 ID。
// 随机源失败时退化为固定零值 ID，保证调用方拿到非空 ID。
func newRequestID() string {
	buf := make([]byte, requestIDSize)
	if _, err := rand.Read(buf); err != nil {
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(buf)
}
