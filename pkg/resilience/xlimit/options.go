package xlimit

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/ratekit/pkg/observability/xevent"
	"github.com/omeyang/ratekit/pkg/observability/xlog"
	"github.com/omeyang/ratekit/pkg/observability/xmetrics"
)

// =============================================================================
// 降级策略
// =============================================================================

// FallbackStrategy 存储不可用时的降级策略
type FallbackStrategy string

const (
	// FallbackOpen 放行降级：存储不可用时放行全部请求。
	// 默认策略，限流器是保护层而不是准入门禁。
	FallbackOpen FallbackStrategy = "open"

	// FallbackLocal 本地降级：退到进程内存储继续限流，
	// 配额按实例数分摊。
	FallbackLocal FallbackStrategy = "local"

	// FallbackClose 拒绝降级：存储不可用时拒绝全部请求。
	// 仅适用于宁可误杀不可放过的场景。
	FallbackClose FallbackStrategy = "close"
)

// Valid 检查降级策略是否合法
func (s FallbackStrategy) Valid() bool {
	switch s {
	case FallbackOpen, FallbackLocal, FallbackClose:
		return true
	default:
		return false
	}
}

// =============================================================================
// 默认配置
// =============================================================================

const (
	// defaultStoreTimeout 单次存储判定的超时上限。
	// 判定在请求热路径上，宁可快速降级也不拖慢业务请求。
	defaultStoreTimeout = 250 * time.Millisecond
)

// options 限流器内部配置
type options struct {
	rules            []Rule
	provider         RuleProvider
	keyPrefix        string
	trustedProxies   []string
	fallback         FallbackStrategy
	storeTimeout     time.Duration
	node             string
	logger           xlog.Logger
	observer         xmetrics.Observer
	meterProvider    metric.MeterProvider
	eventSink        xevent.Sink
	podCountProvider PodCountProvider
	initErr          error // 选项构造阶段的错误，延迟到 New 时返回
}

// Option 配置选项函数
type Option func(*options)

// defaultOptions 返回默认配置
func defaultOptions() *options {
	return &options{
		fallback:     FallbackOpen,
		storeTimeout: defaultStoreTimeout,
		logger:       xlog.Nop(),
	}
}

// validate 验证选项组合
// 设计决策: Option 函数签名不支持返回错误，构造阶段的错误暂存在
// initErr 中，在 New 时统一检查。
func (o *options) validate() error {
	if o.initErr != nil {
		return o.initErr
	}
	if len(o.rules) == 0 && o.provider == nil {
		return ErrNoRules
	}
	if !o.fallback.Valid() {
		return fmt.Errorf("%w: unknown fallback strategy %q", ErrInvalidRule, o.fallback)
	}
	return nil
}

// WithRules 设置静态限流规则，与 WithRuleProvider 二选一或组合。
// 同时设置时静态规则作为初始集，提供器加载成功后整体覆盖。
func WithRules(rules ...Rule) Option {
	return func(o *options) {
		o.rules = append(o.rules, rules...)
	}
}

// WithRuleProvider 设置规则提供器，支持热加载
func WithRuleProvider(provider RuleProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithKeyPrefix 设置桶键前缀，默认 "ratekit"
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

// WithTrustedProxies 设置可信代理网段。
// 影响 ip 作用域的客户端地址解析，见 KeyBuilder。
func WithTrustedProxies(cidrs ...string) Option {
	return func(o *options) {
		o.trustedProxies = append(o.trustedProxies, cidrs...)
	}
}

// WithFallback 设置存储不可用时的降级策略，默认 FallbackOpen
func WithFallback(strategy FallbackStrategy) Option {
	return func(o *options) {
		o.fallback = strategy
	}
}

// WithStoreTimeout 设置单次存储判定的超时上限
func WithStoreTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.storeTimeout = timeout
		}
	}
}

// WithNode 设置节点标识，写入审计事件的 Node 字段。
// 默认取主机名。
func WithNode(node string) Option {
	return func(o *options) {
		o.node = node
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置可观测性观察者
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithMeterProvider 设置 OpenTelemetry MeterProvider，启用指标收集
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = provider
	}
}

// WithEventSink 设置审计事件接收器。
// 通常传入 xevent.Dispatcher，也可以是任意 Sink 实现。
// 接收器的生命周期由调用者管理，Close 不关闭。
func WithEventSink(sink xevent.Sink) Option {
	return func(o *options) {
		o.eventSink = sink
	}
}

// WithPodCountProvider 设置实例数量提供器。
// 仅 FallbackLocal 策略使用，用于本地降级时分摊配额。
func WithPodCountProvider(provider PodCountProvider) Option {
	return func(o *options) {
		o.podCountProvider = provider
	}
}
