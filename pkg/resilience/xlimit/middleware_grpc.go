package xlimit

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// gRPC metadata 键。metadata 键约定为小写。
const (
	grpcPrincipalHeader  = "x-principal"
	grpcRetryAfterHeader = "retry-after"
)

// GRPCOptions gRPC 拦截器配置
type GRPCOptions struct {
	// PrincipalFunc 从 metadata 解析调用方身份，默认读取 x-principal
	PrincipalFunc func(md metadata.MD) string

	// ResourceFunc 从请求解析资源标识，默认为空
	ResourceFunc func(ctx context.Context, fullMethod string, req any) string

	// SkipFunc 返回 true 时跳过限流检查
	SkipFunc func(fullMethod string) bool
}

// GRPCOption gRPC 拦截器配置选项
type GRPCOption func(*GRPCOptions)

// WithGRPCPrincipalFunc 设置调用方身份解析函数
func WithGRPCPrincipalFunc(fn func(md metadata.MD) string) GRPCOption {
	return func(o *GRPCOptions) {
		if fn != nil {
			o.PrincipalFunc = fn
		}
	}
}

// WithGRPCResourceFunc 设置资源标识解析函数
func WithGRPCResourceFunc(fn func(ctx context.Context, fullMethod string, req any) string) GRPCOption {
	return func(o *GRPCOptions) {
		o.ResourceFunc = fn
	}
}

// WithGRPCSkipFunc 设置跳过限流检查的判断函数
func WithGRPCSkipFunc(fn func(fullMethod string) bool) GRPCOption {
	return func(o *GRPCOptions) {
		o.SkipFunc = fn
	}
}

func defaultGRPCOptions() *GRPCOptions {
	return &GRPCOptions{
		PrincipalFunc: func(md metadata.MD) string {
			if values := md.Get(grpcPrincipalHeader); len(values) > 0 {
				return values[0]
			}
			return ""
		},
	}
}

// UnaryServerInterceptor 创建 gRPC 一元调用限流拦截器。
//
// 操作 ID 使用完整方法名（如 /pkg.Service/Method），拒绝时返回
// ResourceExhausted，并通过响应头 metadata 传递 retry-after 秒数。
func UnaryServerInterceptor(limiter *Limiter, opts ...GRPCOption) grpc.UnaryServerInterceptor {
	if limiter == nil {
		panic("xlimit: UnaryServerInterceptor requires a non-nil Limiter")
	}

	gopts := defaultGRPCOptions()
	for _, opt := range opts {
		opt(gopts)
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if gopts.SkipFunc != nil && gopts.SkipFunc(info.FullMethod) {
			return handler(ctx, req)
		}

		id := grpcIdentity(ctx, gopts)
		if gopts.ResourceFunc != nil {
			id.Resource = gopts.ResourceFunc(ctx, info.FullMethod, req)
		}

		d, err := limiter.Check(ctx, info.FullMethod, id)
		if err != nil {
			// 仅在限流器已关闭时出现，放行
			return handler(ctx, req)
		}

		if !d.Allowed {
			_ = grpc.SetHeader(ctx, metadata.Pairs(grpcRetryAfterHeader, d.retryAfterHeader()))
			return nil, status.Errorf(codes.ResourceExhausted,
				"rate limit exceeded for %s, retry after %.1fs", d.RuleID, d.RetryAfter)
		}

		return handler(ctx, req)
	}
}

// StreamServerInterceptor 创建 gRPC 流式调用限流拦截器。
// 在流建立时判定一次，不对流内消息计数。
func StreamServerInterceptor(limiter *Limiter, opts ...GRPCOption) grpc.StreamServerInterceptor {
	if limiter == nil {
		panic("xlimit: StreamServerInterceptor requires a non-nil Limiter")
	}

	gopts := defaultGRPCOptions()
	for _, opt := range opts {
		opt(gopts)
	}

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if gopts.SkipFunc != nil && gopts.SkipFunc(info.FullMethod) {
			return handler(srv, ss)
		}

		ctx := ss.Context()
		id := grpcIdentity(ctx, gopts)

		d, err := limiter.Check(ctx, info.FullMethod, id)
		if err != nil {
			return handler(srv, ss)
		}

		if !d.Allowed {
			_ = ss.SetHeader(metadata.Pairs(grpcRetryAfterHeader, d.retryAfterHeader()))
			return status.Errorf(codes.ResourceExhausted,
				"rate limit exceeded for %s, retry after %.1fs", d.RuleID, d.RetryAfter)
		}

		return handler(srv, ss)
	}
}

// grpcIdentity 从 gRPC 上下文提取请求身份
func grpcIdentity(ctx context.Context, gopts *GRPCOptions) Identity {
	id := Identity{}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		id.RemoteAddr = p.Addr.String()
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		id.Principal = gopts.PrincipalFunc(md)
		if values := md.Get("x-forwarded-for"); len(values) > 0 {
			id.ForwardedFor = values[0]
		}
	}

	return id
}
