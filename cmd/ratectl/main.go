// ratectl 是 ratekit 限流部署的运维命令行工具。
//
// 用法:
//
//	ratectl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-r, --rules    规则文件路径 (YAML/JSON)
//	-a, --redis    Redis 地址，逗号分隔；留空使用进程内存储
//	-t, --timeout  单次操作超时时间 (默认: 5s)
//
// 命令:
//
//	check          执行一次真实限流判定并打印结果
//	peek           查看桶状态（不消耗令牌）
//	reset          清空指定身份的桶
//	rules validate 校验规则文件
//	rules watch    监视规则文件变更并打印重载结果
//	bench          本地压测，报告放行/拒绝/兜底计数与延迟分位
//
// 退出码:
//
//	0: 成功（check 命令: 判定放行）
//	1: 失败（check 命令: 判定拒绝）
//	2: 参数错误或规则文件非法
//
// 示例:
//
//	ratectl -r rules.yaml -a 127.0.0.1:6379 check --op search --user alice
//	ratectl -r rules.yaml check --op search --ip 10.0.0.7 --n 5
//	ratectl -r rules.yaml -a 127.0.0.1:6379 peek --op search --user alice
//	ratectl -r rules.yaml -a 127.0.0.1:6379 reset --op search --user alice
//	ratectl -r rules.yaml rules validate
//	ratectl -r rules.yaml bench --op search --rate 200 --duration 10s
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// defaultTimeout 默认单次操作超时。
const defaultTimeout = 5 * time.Second

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "ratectl",
		Usage:   "ratekit 限流运维工具",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rules",
				Aliases: []string{"r"},
				Usage:   "规则文件路径 (YAML/JSON)",
			},
			&cli.StringFlag{
				Name:    "redis",
				Aliases: []string{"a"},
				Usage:   "Redis 地址，逗号分隔；留空使用进程内存储",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "单次操作超时时间",
				Value:   defaultTimeout,
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run() int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Run(ctx, os.Args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr.err)
			return 2
		}
		if _, ok := err.(cli.ExitCoder); ok {
			// ExitErrHandler 已输出错误详情
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	return 0
}
