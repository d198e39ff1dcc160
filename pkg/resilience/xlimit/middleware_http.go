package xlimit

import (
	"net/http"
)

// HTTPMiddleware 创建 HTTP 限流中间件。
//
// 从请求提取操作 ID 与调用方身份，拒绝时返回 429 并携带
// Retry-After。限流器内部错误不阻塞业务请求。
//
// 示例:
//
//	limiter, _ := xlimit.New(store, xlimit.WithRules(...))
//	mux := http.NewServeMux()
//	mux.Handle("/api/", xlimit.HTTPMiddleware(limiter)(apiHandler))
func HTTPMiddleware(limiter *Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if limiter == nil {
		panic("xlimit: HTTPMiddleware requires a non-nil Limiter")
	}

	mopts := defaultMiddlewareOptions()
	for _, opt := range opts {
		opt(mopts)
	}
	mopts.sanitize()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if mopts.SkipFunc != nil && mopts.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			if handleHTTPLimit(w, r, limiter, mopts) {
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// handleHTTPLimit 执行限流检查并处理结果。
// 返回 true 表示请求已被拒绝处理，调用方应直接返回。
func handleHTTPLimit(w http.ResponseWriter, r *http.Request, limiter *Limiter, mopts *MiddlewareOptions) bool {
	id := Identity{
		RemoteAddr:   r.RemoteAddr,
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		Principal:    mopts.PrincipalFunc(r),
		Resource:     mopts.ResourceFunc(r),
	}

	d, err := limiter.Check(r.Context(), mopts.OperationFunc(r), id)
	if err != nil {
		// 仅在限流器已关闭时出现，放行
		return false
	}

	if mopts.EnableHeaders {
		d.SetHeaders(w)
	}

	if !d.Allowed {
		mopts.DenyHandler(w, r, d)
		return true
	}

	return false
}

// HTTPMiddlewareFunc 创建 HTTP 限流中间件（函数式）。
// 适用于需要 http.HandlerFunc 的场景。
func HTTPMiddlewareFunc(limiter *Limiter, opts ...MiddlewareOption) func(http.HandlerFunc) http.HandlerFunc {
	middleware := HTTPMiddleware(limiter, opts...)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return middleware(next).ServeHTTP
	}
}
