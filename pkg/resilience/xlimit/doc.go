// Package xlimit 提供分布式限流核心，保护共享资源免受流量过载影响。
//
// # 设计理念
//
// xlimit 基于令牌桶算法实现跨实例一致的限流判定：桶状态存放在
// Redis，refill-check-consume 由服务端 Lua 脚本原子完成，判定路径
// 无锁无重试。存储故障时默认放行兜底（fail-open），限流器永远不会
// 因为自身故障而拒绝业务请求。
//
// # 核心概念
//
//   - Rule：限流规则，按操作 ID 绑定容量、补充速率和作用域
//   - Registry：规则注册表，atomic.Pointer 整体换装支持热加载
//   - Identity：一次请求的调用方身份（IP、主体、资源）
//   - KeyBuilder：把规则与身份渲染为带哈希标签的限流键
//   - Store：桶存储抽象，Redis / 内存 / 熔断包装三种实现
//   - Limiter：判定入口，Check/CheckN/Peek/Reset
//   - Decision：判定结果，永远是数据而非错误
//
// # 快速开始
//
//	store := xlimit.NewRedisStore(redisClient)
//	limiter, err := xlimit.New(store,
//	    xlimit.WithRules(xlimit.Rule{
//	        ID:              "login",
//	        Scope:           xlimit.ScopeIP,
//	        Capacity:        10,
//	        RefillPerMinute: 60,
//	        Cost:            1,
//	    }),
//	    xlimit.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer limiter.Close(context.Background())
//
//	d, _ := limiter.Check(ctx, "login", xlimit.Identity{
//	    RemoteAddr:   r.RemoteAddr,
//	    ForwardedFor: r.Header.Get("X-Forwarded-For"),
//	})
//	if !d.Allowed {
//	    // 429，d.RetryAfter 秒后重试
//	}
//
// # 准入拦截
//
//	mux.Handle("/login", xlimit.HTTPMiddleware(limiter, "login")(handler))
//	server := grpc.NewServer(grpc.UnaryInterceptor(
//	    xlimit.UnaryServerInterceptor(limiter),
//	))
//
// # 降级策略
//
// 存储故障时支持三种策略：
//   - FallbackOpen：放行所有请求（默认）
//   - FallbackLocal：降级到本地内存桶，配额按 Pod 数分摊
//   - FallbackClose：拒绝所有请求
//
// # 规则热加载
//
//	provider, _ := xlimit.NewFileProvider("rules.yaml")
//	stop, err := limiter.Registry().Bind(ctx, provider)
//
// 加载失败保留上一份有效规则集，永不带病换装。
//
// # 可观测性
//
// 集成 xlog 结构化日志、xmetrics 追踪 span、OpenTelemetry 指标
// （ratelimit_checks_total、ratelimit_failopen_total、
// ratelimit_store_latency），并通过 xevent.Sink 下发决策事件。
package xlimit
