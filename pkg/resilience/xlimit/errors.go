package xlimit

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// =============================================================================
// 配置错误（加载期，fail-closed）
// =============================================================================

var (
	// ErrInvalidRule 表示限流规则字段非法
	ErrInvalidRule = errors.New("xlimit: invalid rule")

	// ErrDuplicateRule 表示规则集中出现重复的操作 ID
	ErrDuplicateRule = errors.New("xlimit: duplicate rule")

	// ErrNoRules 表示规则集为空
	ErrNoRules = errors.New("xlimit: no rules")

	// ErrUnknownScope 表示规则声明了未知作用域
	ErrUnknownScope = errors.New("xlimit: unknown scope")
)

// =============================================================================
// 作用域解析错误（运行期，调用方吸收为放行兜底）
// =============================================================================

var (
	// ErrMissingPrincipal 表示 user/user_resource 作用域缺少主体标识
	ErrMissingPrincipal = errors.New("xlimit: missing principal")

	// ErrMissingResource 表示 user_resource 作用域缺少资源标识
	ErrMissingResource = errors.New("xlimit: missing resource")
)

// IsScopeResolutionError 检查错误是否为作用域解析失败。
// 此类错误在判定路径上被吸收为放行兜底，不会向调用方传播。
func IsScopeResolutionError(err error) bool {
	return errors.Is(err, ErrMissingPrincipal) || errors.Is(err, ErrMissingResource)
}

// =============================================================================
// 存储与生命周期错误
// =============================================================================

var (
	// ErrStoreUnavailable 表示桶存储不可用，触发降级策略
	ErrStoreUnavailable = errors.New("xlimit: store unavailable")

	// ErrLimiterClosed 表示限流器已关闭
	ErrLimiterClosed = errors.New("xlimit: limiter closed")

	// ErrNilClient 表示传入的存储客户端为空
	ErrNilClient = errors.New("xlimit: nil client")

	// ErrNilStore 表示传入的存储实现为空
	ErrNilStore = errors.New("xlimit: nil store")

	// ErrRuleNotFound 表示操作 ID 没有对应规则（仅 Peek/Reset 返回，
	// 判定路径上的规则缺失走放行兜底）
	ErrRuleNotFound = errors.New("xlimit: rule not found")

	// errUnexpectedScriptResult 表示 Lua 脚本返回了非预期结构
	errUnexpectedScriptResult = errors.New("xlimit: unexpected script result")
)

// storeRelatedErrors 包含所有判定为存储故障的已知错误
var storeRelatedErrors = []error{
	ErrStoreUnavailable,
	context.DeadlineExceeded,
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
	io.EOF,
	io.ErrUnexpectedEOF,
}

// IsStoreError 检查错误是否为存储故障。
// 使用错误链检查而非字符串匹配；存储故障触发放行兜底而非拒绝。
func IsStoreError(err error) bool {
	if err == nil {
		return false
	}

	for _, target := range storeRelatedErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	return isNetworkError(err)
}

// isNetworkError 检查是否是网络相关错误
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
