package xlimit

import (
	"encoding/json"
	"net/http"
)

// defaultPrincipalHeader 默认承载调用方身份的请求头
const defaultPrincipalHeader = "X-Principal"

// MiddlewareOptions HTTP 中间件配置
type MiddlewareOptions struct {
	// OperationFunc 从请求解析操作 ID，决定命中哪条规则。
	// 默认使用 "METHOD path" 形式。
	OperationFunc func(r *http.Request) string

	// PrincipalFunc 从请求解析调用方身份，user/user_resource
	// 作用域需要。默认读取 X-Principal 头。
	PrincipalFunc func(r *http.Request) string

	// ResourceFunc 从请求解析资源标识，user_resource 作用域需要。
	// 默认使用 URL 路径。
	ResourceFunc func(r *http.Request) string

	// SkipFunc 返回 true 时跳过限流检查
	SkipFunc func(r *http.Request) bool

	// DenyHandler 拒绝时的响应处理，默认返回 429 JSON
	DenyHandler func(w http.ResponseWriter, r *http.Request, d Decision)

	// EnableHeaders 是否写入 X-RateLimit-* 响应头
	EnableHeaders bool
}

// MiddlewareOption 中间件配置选项
type MiddlewareOption func(*MiddlewareOptions)

// defaultMiddlewareOptions 返回默认中间件配置
func defaultMiddlewareOptions() *MiddlewareOptions {
	return &MiddlewareOptions{
		OperationFunc: func(r *http.Request) string {
			return r.Method + " " + r.URL.Path
		},
		PrincipalFunc: func(r *http.Request) string {
			return r.Header.Get(defaultPrincipalHeader)
		},
		ResourceFunc: func(r *http.Request) string {
			return r.URL.Path
		},
		DenyHandler:   defaultDenyHandler,
		EnableHeaders: true,
	}
}

// sanitize 补齐缺失的必选字段
func (o *MiddlewareOptions) sanitize() {
	defaults := defaultMiddlewareOptions()
	if o.OperationFunc == nil {
		o.OperationFunc = defaults.OperationFunc
	}
	if o.PrincipalFunc == nil {
		o.PrincipalFunc = defaults.PrincipalFunc
	}
	if o.ResourceFunc == nil {
		o.ResourceFunc = defaults.ResourceFunc
	}
	if o.DenyHandler == nil {
		o.DenyHandler = defaults.DenyHandler
	}
}

// WithOperationFunc 设置操作 ID 解析函数
func WithOperationFunc(fn func(r *http.Request) string) MiddlewareOption {
	return func(o *MiddlewareOptions) {
		o.OperationFunc = fn
	}
}

// WithPrincipalFunc 设置调用方身份解析函数
func WithPrincipalFunc(fn func(r *http.Request) string) MiddlewareOption {
	return func(o *MiddlewareOptions) {
		o.PrincipalFunc = fn
	}
}

// WithResourceFunc 设置资源标识解析函数
func WithResourceFunc(fn func(r *http.Request) string) MiddlewareOption {
	return func(o *MiddlewareOptions) {
		o.ResourceFunc = fn
	}
}

// WithSkipFunc 设置跳过限流检查的判断函数
func WithSkipFunc(fn func(r *http.Request) bool) MiddlewareOption {
	return func(o *MiddlewareOptions) {
		o.SkipFunc = fn
	}
}

// WithDenyHandler 设置拒绝响应处理函数
func WithDenyHandler(fn func(w http.ResponseWriter, r *http.Request, d Decision)) MiddlewareOption {
	return func(o *MiddlewareOptions) {
		o.DenyHandler = fn
	}
}

// WithMiddlewareHeaders 设置是否写入 X-RateLimit-* 响应头
func WithMiddlewareHeaders(enabled bool) MiddlewareOption {
	return func(o *MiddlewareOptions) {
		o.EnableHeaders = enabled
	}
}

// denyResponse 429 响应体
type denyResponse struct {
	Error      string  `json:"error"`
	Rule       string  `json:"rule"`
	RetryAfter float64 `json:"retry_after"`
}

// defaultDenyHandler 默认拒绝响应：429 + Retry-After + JSON 错误体
func defaultDenyHandler(w http.ResponseWriter, _ *http.Request, d Decision) {
	w.Header().Set("Retry-After", d.retryAfterHeader())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(denyResponse{
		Error:      "rate limit exceeded",
		Rule:       d.RuleID,
		RetryAfter: d.RetryAfter,
	})
}
