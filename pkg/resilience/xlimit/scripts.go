package xlimit

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/ratekit/pkg/resilience/xretry"
)

// =============================================================================
// Lua 脚本嵌入
// =============================================================================

var (
	//go:embed lua/evaluate.lua
	evaluateLuaSource string

	//go:embed lua/peek.lua
	peekLuaSource string
)

// microPerToken 令牌的微令牌刻度。
// 脚本内以整数微令牌存储，避免浮点序列化误差跨实例放大。
const microPerToken = 1_000_000

// =============================================================================
// 脚本管理器 - 单例模式确保脚本只创建一次
// =============================================================================

// scripts 持有所有 Redis 脚本实例
type scripts struct {
	evaluate *redis.Script
	peek     *redis.Script
}

var (
	globalScripts     *scripts
	globalScriptsOnce sync.Once
)

// getScripts 获取脚本实例（线程安全的单例）。
// redis.Script 自带 EVALSHA 优先、NOSCRIPT 时回退 EVAL 的语义。
func getScripts() *scripts {
	globalScriptsOnce.Do(func() {
		globalScripts = &scripts{
			evaluate: redis.NewScript(evaluateLuaSource),
			peek:     redis.NewScript(peekLuaSource),
		}
	})
	return globalScripts
}

// =============================================================================
// 脚本预热
// =============================================================================

// WarmupScripts 预热脚本，将脚本加载到 Redis 脚本缓存。
//
// 建议在应用启动时调用，避免首次判定承担编译开销。加载失败会按
// 退避重试数次；最终失败返回错误但不影响后续使用（首次执行时
// EVAL 回退会重新编译）。
func WarmupScripts(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return ErrNilClient
	}

	s := getScripts()
	r := xretry.NewRetryer()

	if err := r.Do(ctx, func(ctx context.Context) error {
		return s.evaluate.Load(ctx, client).Err()
	}); err != nil {
		return fmt.Errorf("load evaluate script: %w", err)
	}
	if err := r.Do(ctx, func(ctx context.Context) error {
		return s.peek.Load(ctx, client).Err()
	}); err != nil {
		return fmt.Errorf("load peek script: %w", err)
	}

	return nil
}

// =============================================================================
// 脚本结果转换
// =============================================================================

// validateScriptResult 校验 Lua 脚本返回值长度
func validateScriptResult(result []int64, minLen int) error {
	if len(result) < minLen {
		return fmt.Errorf("%w: got %d elements, want >= %d", errUnexpectedScriptResult, len(result), minLen)
	}
	return nil
}

// convertScriptResult 将 Lua 脚本返回值安全转换为 []int64。
// 提取为纯函数，便于直接测试各种输入类型（int64、int、float64、未知类型）。
func convertScriptResult(val any) ([]int64, error) {
	// Redis Lua 脚本返回数组时，go-redis 会解析为 []any
	arr, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", errUnexpectedScriptResult, val)
	}

	result := make([]int64, len(arr))
	for i, v := range arr {
		switch n := v.(type) {
		case int64:
			result[i] = n
		case int:
			result[i] = int64(n)
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%w: element %d is non-integer float64 %g", errUnexpectedScriptResult, i, n)
			}
			result[i] = int64(n)
		default:
			return nil, fmt.Errorf("%w: element %d is %T, expected number", errUnexpectedScriptResult, i, v)
		}
	}

	return result, nil
}
