// Package xrun 基于 errgroup 管理多个长驻任务的并发运行与协调关闭。
//
// 典型用法是 CLI 的 watch/bench 这类需要同时跑规则监听、
// 输出汇报和信号处理的命令:
//
//	err := xrun.Run(ctx,
//	    func(ctx context.Context) error { return watchRules(ctx) },
//	    xrun.Ticker(time.Second, false, reportProgress),
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常的信号退出
//	}
//
// 任一任务返回错误时，其余任务通过 context 收到取消信号。
package xrun
