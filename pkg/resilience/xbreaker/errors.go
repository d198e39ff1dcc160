package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

// 配置错误
var (
	// ErrEmptyName 熔断器名称为空
	ErrEmptyName = errors.New("xbreaker: empty breaker name")

	// ErrNilContext 上下文为空
	ErrNilContext = errors.New("xbreaker: nil context")

	// ErrNilFunc 执行函数为空
	ErrNilFunc = errors.New("xbreaker: nil function")
)

// BreakerError 熔断器拒绝执行时的错误。
// 携带熔断器名称与当前状态，便于日志与监控区分是哪个下游被熔断。
type BreakerError struct {
	// Err 底层错误（gobreaker.ErrOpenState 或 ErrTooManyRequests）
	Err error
	// Name 熔断器名称
	Name string
	// State 拒绝时的熔断器状态
	State gobreaker.State
}

// Error 实现 error 接口
func (e *BreakerError) Error() string {
	return fmt.Sprintf("xbreaker: breaker %q rejected request (state=%s): %v", e.Name, e.State, e.Err)
}

// Unwrap 支持 errors.Is/As
func (e *BreakerError) Unwrap() error {
	return e.Err
}

// IsOpen 判断错误是否因熔断器处于打开状态
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// IsTooManyRequests 判断错误是否因半开状态下请求超限
func IsTooManyRequests(err error) bool {
	return errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsBreakerError 判断错误是否由熔断器拒绝产生（而非业务函数本身失败）
func IsBreakerError(err error) bool {
	var be *BreakerError
	return errors.As(err, &be)
}

// wrapBreakerError 将 gobreaker 的拒绝错误包装为 BreakerError。
// 业务函数自身的错误原样返回，不做包装。
func wrapBreakerError(name string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return &BreakerError{Err: err, Name: name, State: gobreaker.StateOpen}
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return &BreakerError{Err: err, Name: name, State: gobreaker.StateHalfOpen}
	default:
		return err
	}
}
