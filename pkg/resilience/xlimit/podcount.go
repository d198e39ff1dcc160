package xlimit

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// PodCountProvider 动态实例数量提供器。
// 本地降级时用于配额分摊：每实例配额 = ceil(全局配额 / 实例数)。
type PodCountProvider interface {
	// GetPodCount 获取当前实例数量，至少为 1
	GetPodCount(ctx context.Context) (int, error)
}

// =============================================================================
// 静态提供器
// =============================================================================

// StaticPodCount 固定实例数量，适用于实例数已知且稳定的部署
type StaticPodCount int

// GetPodCount 实现 PodCountProvider 接口
func (s StaticPodCount) GetPodCount(_ context.Context) (int, error) {
	if s <= 0 {
		return 1, nil
	}
	return int(s), nil
}

// =============================================================================
// 环境变量提供器
// =============================================================================

// EnvPodCount 从环境变量读取实例数量。
// 适合由部署系统（Helm、operator）注入副本数的场景。
type EnvPodCount struct {
	// EnvVar 环境变量名称
	EnvVar string
	// DefaultCount 环境变量未设置或无效时的默认值
	DefaultCount int
	// CacheDuration 缓存时长，0 表示每次都读取
	CacheDuration time.Duration

	mu          sync.RWMutex
	cachedCount int
	cachedAt    time.Time
}

// NewEnvPodCount 创建环境变量实例数量提供器
func NewEnvPodCount(envVar string, defaultCount int) *EnvPodCount {
	if defaultCount <= 0 {
		defaultCount = 1
	}
	return &EnvPodCount{
		EnvVar:       envVar,
		DefaultCount: defaultCount,
	}
}

// WithCacheDuration 设置缓存时长
func (e *EnvPodCount) WithCacheDuration(d time.Duration) *EnvPodCount {
	e.CacheDuration = d
	return e
}

// GetPodCount 实现 PodCountProvider 接口
func (e *EnvPodCount) GetPodCount(_ context.Context) (int, error) {
	if e.CacheDuration > 0 {
		e.mu.RLock()
		if e.cachedCount > 0 && time.Since(e.cachedAt) < e.CacheDuration {
			count := e.cachedCount
			e.mu.RUnlock()
			return count, nil
		}
		e.mu.RUnlock()
	}

	count := e.DefaultCount
	if value := os.Getenv(e.EnvVar); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			count = parsed
		}
	}

	if e.CacheDuration > 0 {
		e.mu.Lock()
		e.cachedCount = count
		e.cachedAt = time.Now()
		e.mu.Unlock()
	}

	return count, nil
}

// =============================================================================
// Kubernetes 提供器
// =============================================================================

// defaultPodCountCacheTTL Endpoints 查询结果的缓存时长。
// 实例数变化不需要即时感知，分摊配额允许短暂偏差。
const defaultPodCountCacheTTL = 30 * time.Second

// KubernetesPodCount 通过 Kubernetes Endpoints 统计就绪实例数。
// 统计的是 Service 后端的 ready 地址数，滚动更新期间未就绪的
// 实例不计入，避免分母虚高导致配额过度收缩。
type KubernetesPodCount struct {
	client    kubernetes.Interface
	namespace string
	service   string
	cacheTTL  time.Duration

	mu          sync.RWMutex
	cachedCount int
	cachedAt    time.Time
}

// KubernetesPodCountOption 配置 Kubernetes 提供器
type KubernetesPodCountOption func(*KubernetesPodCount)

// WithPodCountCacheTTL 设置 Endpoints 查询缓存时长
func WithPodCountCacheTTL(ttl time.Duration) KubernetesPodCountOption {
	return func(k *KubernetesPodCount) {
		if ttl > 0 {
			k.cacheTTL = ttl
		}
	}
}

// NewKubernetesPodCount 创建 Kubernetes 实例数量提供器
func NewKubernetesPodCount(client kubernetes.Interface, namespace, service string, opts ...KubernetesPodCountOption) (*KubernetesPodCount, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if namespace == "" || service == "" {
		return nil, fmt.Errorf("%w: namespace and service are required", ErrInvalidRule)
	}

	k := &KubernetesPodCount{
		client:    client,
		namespace: namespace,
		service:   service,
		cacheTTL:  defaultPodCountCacheTTL,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// GetPodCount 实现 PodCountProvider 接口。
// 查询失败时若有历史缓存则沿用旧值，没有才返回错误。
func (k *KubernetesPodCount) GetPodCount(ctx context.Context) (int, error) {
	k.mu.RLock()
	if k.cachedCount > 0 && time.Since(k.cachedAt) < k.cacheTTL {
		count := k.cachedCount
		k.mu.RUnlock()
		return count, nil
	}
	stale := k.cachedCount
	k.mu.RUnlock()

	endpoints, err := k.client.CoreV1().Endpoints(k.namespace).Get(ctx, k.service, metav1.GetOptions{})
	if err != nil {
		if stale > 0 {
			return stale, nil
		}
		return 0, fmt.Errorf("xlimit: get endpoints %s/%s: %w", k.namespace, k.service, err)
	}

	count := 0
	for _, subset := range endpoints.Subsets {
		count += len(subset.Addresses)
	}
	if count < 1 {
		count = 1
	}

	k.mu.Lock()
	k.cachedCount = count
	k.cachedAt = time.Now()
	k.mu.Unlock()

	return count, nil
}

var (
	_ PodCountProvider = StaticPodCount(0)
	_ PodCountProvider = (*EnvPodCount)(nil)
	_ PodCountProvider = (*KubernetesPodCount)(nil)
)
