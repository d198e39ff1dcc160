package xrun

import (
	"errors"
	"fmt"
	"os"
)

// ErrSignal 因收到系统信号而终止。
// 使用 errors.Is(err, ErrSignal) 判断。
var ErrSignal = errors.New("received signal")

// ErrNilFunc 任务函数为空
var ErrNilFunc = errors.New("xrun: nil function")

// ErrInvalidInterval Ticker 间隔必须为正数
var ErrInvalidInterval = errors.New("xrun: interval must be positive")

// SignalError 携带触发终止的具体信号。
//
//	var sigErr *xrun.SignalError
//	if errors.As(err, &sigErr) {
//	    fmt.Printf("signal: %v\n", sigErr.Signal)
//	}
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "received signal <nil>"
	}
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Is 支持 errors.Is(err, ErrSignal)
func (e *SignalError) Is(target error) bool {
	return target == ErrSignal
}

func (e *SignalError) Unwrap() error {
	return ErrSignal
}
