package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/ratekit/pkg/observability/xlog"
)

// Group 管理一组并发任务，任一任务出错时取消其余任务。
//
// Go 可从多个 goroutine 并发调用；Wait 只应调用一次。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	logger   xlog.Logger
}

// Option 配置 Group
type Option func(*Group)

// WithLogger 设置日志记录器，默认静默
func WithLogger(logger xlog.Logger) Option {
	return func(g *Group) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGroup 创建 Group 及派生 context。
// 任一任务返回错误时派生 context 被取消。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)

	g := &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		logger:   xlog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, egCtx
}

// Go 启动一个任务。fn 应监听 ctx.Done() 响应取消。
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		return fn(g.ctx)
	})
}

// GoWithName 与 Go 相同，但记录任务生命周期日志
func (g *Group) GoWithName(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		g.logger.Debug(g.ctx, "task starting", slog.String("task", name))
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Warn(g.ctx, "task exited with error",
				slog.String("task", name),
				slog.Any("error", err),
			)
		} else {
			g.logger.Debug(g.ctx, "task stopped", slog.String("task", name))
		}
		return err
	})
}

// Cancel 主动取消所有任务。
// cause 作为取消原因由 Wait 返回；cause 不应包装 context.Canceled，
// 否则会被当作普通取消过滤掉。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回 Group 的 context
func (g *Group) Context() context.Context {
	return g.ctx
}

// Wait 等待所有任务完成，返回第一个非 nil 错误。
//
// 普通的 context 取消被过滤为 nil；Cancel(cause) 或信号处理设置的
// 显式原因（如 *SignalError）会保留并返回。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()

	if errors.Is(err, context.Canceled) {
		if g.causeCtx.Err() != nil {
			if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
				return cause
			}
			return nil
		}
		// 取消来自任务内部而非 Group，不过滤
		return err
	}

	// 所有任务返回 nil 时仍需回传显式的 Cancel(cause)
	if err == nil && g.causeCtx.Err() != nil {
		if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
	}
	return err
}

// =============================================================================
// 便捷函数
// =============================================================================

// DefaultSignals 返回默认监听的信号列表。
// 每次调用返回新切片，调用者可安全修改。
func DefaultSignals() []os.Signal {
	return []os.Signal{
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	}
}

// Run 运行一组任务并监听退出信号。
//
// 收到信号时所有任务通过 ctx 收到取消，Run 返回 *SignalError。
func Run(ctx context.Context, services ...func(ctx context.Context) error) error {
	g, _ := NewGroup(ctx)

	g.Go(func(ctx context.Context) error {
		testc := testSigChan(ctx)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, DefaultSignals()...)
		defer signal.Stop(sigCh)

		var sig os.Signal
		select {
		case sig = <-testc:
		case sig = <-sigCh:
		case <-ctx.Done():
			return ctx.Err()
		}

		g.cancel(&SignalError{Signal: sig})
		return nil
	})

	for _, svc := range services {
		g.Go(svc)
	}
	return g.Wait()
}

// Ticker 返回周期性执行 fn 的任务函数。
// immediate 为 true 时启动即执行一次；fn 返回错误即终止。
func Ticker(interval time.Duration, immediate bool, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if interval <= 0 {
			return ErrInvalidInterval
		}
		if fn == nil {
			return ErrNilFunc
		}

		if immediate {
			if err := fn(ctx); err != nil {
				return err
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					return err
				}
			}
		}
	}
}

// 测试通过 context 注入信号通道，避免向进程发送真实信号。
type testSigChanKey struct{}

func testSigChan(ctx context.Context) <-chan os.Signal {
	c, ok := ctx.Value(testSigChanKey{}).(<-chan os.Signal)
	if !ok {
		return nil
	}
	return c
}

func withTestSigChan(ctx context.Context, c <-chan os.Signal) context.Context {
	return context.WithValue(ctx, testSigChanKey{}, c)
}
