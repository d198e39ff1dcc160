package xretry

import "errors"

var (
	// ErrNilContext 表示调用方传入了 nil context
	ErrNilContext = errors.New("xretry: nil context")
	// ErrNilFunc 表示待执行函数为 nil
	ErrNilFunc = errors.New("xretry: nil function")
	// ErrInvalidConfig 表示重试器配置非法
	ErrInvalidConfig = errors.New("xretry: invalid config")
)

// Permanent 将 err 标记为不可重试。
// 重试器遇到被标记的错误立即终止并原样返回底层错误。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent 判断 err 是否被 [Permanent] 标记。
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}
