package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/ratekit/pkg/lifecycle/xrun"
	"github.com/omeyang/ratekit/pkg/resilience/xlimit"
	"github.com/omeyang/ratekit/pkg/util/xsys"
)

const (
	// benchFileLimit 压测前把 NOFILE 软限制抬到的下限，
	// 高并发连 Redis 时避免 EMFILE。
	benchFileLimit = 65536

	defaultBenchRate     = 100
	defaultBenchDuration = 10 * time.Second
	defaultBenchWorkers  = 8
)

func createBenchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "本地压测，报告放行/拒绝/兜底计数与延迟分位",
		Flags: append(identityFlags(),
			&cli.IntFlag{
				Name:  "rate",
				Usage: "每秒判定次数",
				Value: defaultBenchRate,
			},
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "压测时长",
				Value:   defaultBenchDuration,
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "并发 worker 数",
				Value:   defaultBenchWorkers,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdBench(ctx, cmd)
		},
	}
}

// benchResult 压测汇总。
type benchResult struct {
	Total     int64
	Allowed   int64
	Denied    int64
	FailOpen  int64
	Errors    int64
	Latencies []time.Duration
}

// percentile 返回已排序延迟序列的 p 分位（0 < p <= 100）。
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted))*p/100) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func cmdBench(ctx context.Context, cmd *cli.Command) error {
	rate := cmd.Int("rate")
	if rate <= 0 {
		return &usageError{errors.New("--rate 必须为正数")}
	}
	workers := cmd.Int("workers")
	if workers <= 0 {
		return &usageError{errors.New("--workers 必须为正数")}
	}
	duration := cmd.Duration("duration")

	if err := xsys.EnsureFileLimit(benchFileLimit); err != nil {
		fmt.Fprintf(os.Stderr, "警告: 抬升文件描述符上限失败: %v\n", err)
	}

	limiter, cleanup, err := buildLimiter(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	op := cmd.String("op")
	id := identityFromFlags(cmd)

	result := runBench(ctx, limiter, op, id, rate, workers, duration)
	printBenchResult(result, duration)

	if result.Errors > 0 {
		return &exitError{code: 1}
	}
	return nil
}

// runBench 以固定速率发起判定，worker 并发消费。
func runBench(ctx context.Context, limiter *xlimit.Limiter, op string, id xlimit.Identity, rate, workers int, duration time.Duration) *benchResult {
	result := &benchResult{}

	var (
		allowed  atomic.Int64
		denied   atomic.Int64
		failOpen atomic.Int64
		errCount atomic.Int64

		mu        sync.Mutex
		latencies []time.Duration
	)

	ticks := make(chan struct{}, workers)
	benchCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	g, _ := xrun.NewGroup(benchCtx)

	// 配速器: 到时长后关闭通道结束所有 worker
	g.Go(func(ctx context.Context) error {
		defer close(ticks)
		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				select {
				case ticks <- struct{}{}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})

	for range workers {
		g.Go(func(ctx context.Context) error {
			for range ticks {
				// 时长到点后剩余配额不再计入
				if ctx.Err() != nil {
					return nil
				}
				start := time.Now()
				d, err := limiter.Check(ctx, op, id)
				elapsed := time.Since(start)

				if err != nil {
					errCount.Add(1)
					continue
				}
				switch {
				case d.FailOpen:
					failOpen.Add(1)
				case d.Allowed:
					allowed.Add(1)
				default:
					denied.Add(1)
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
			return nil
		})
	}

	// 到时长后 Wait 带回 DeadlineExceeded，这是压测的正常结束方式
	_ = g.Wait()

	result.Allowed = allowed.Load()
	result.Denied = denied.Load()
	result.FailOpen = failOpen.Load()
	result.Errors = errCount.Load()
	result.Total = result.Allowed + result.Denied + result.FailOpen + result.Errors
	result.Latencies = latencies
	sort.Slice(result.Latencies, func(i, j int) bool { return result.Latencies[i] < result.Latencies[j] })
	return result
}

func printBenchResult(r *benchResult, duration time.Duration) {
	fmt.Printf("压测完成 (%s)\n", duration)
	fmt.Printf("  总判定:   %d\n", r.Total)
	fmt.Printf("  放行:     %d\n", r.Allowed)
	fmt.Printf("  拒绝:     %d\n", r.Denied)
	fmt.Printf("  故障兜底: %d\n", r.FailOpen)
	fmt.Printf("  错误:     %d\n", r.Errors)
	if len(r.Latencies) > 0 {
		fmt.Printf("  延迟: p50=%s p95=%s p99=%s max=%s\n",
			percentile(r.Latencies, 50),
			percentile(r.Latencies, 95),
			percentile(r.Latencies, 99),
			r.Latencies[len(r.Latencies)-1],
		)
	}
}
