package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/ratekit/pkg/lifecycle/xrun"
	"github.com/omeyang/ratekit/pkg/resilience/xlimit"
)

// exitError 表示需要非零退出码但已完成输出的场景。
// 命令内部已完成所有输出，main 只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 表示参数错误，映射到退出码 2。
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createCheckCommand(),
		createPeekCommand(),
		createResetCommand(),
		createRulesCommand(),
		createBenchCommand(),
	}
}

// identityFlags 定位目标桶的公共参数。
func identityFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "op",
			Aliases:  []string{"o"},
			Usage:    "操作 ID（规则的 id 字段）",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "ip",
			Usage: "调用方直连地址 (host 或 host:port)",
		},
		&cli.StringFlag{
			Name:  "xff",
			Usage: "X-Forwarded-For 链原文",
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "认证主体标识",
		},
		&cli.StringFlag{
			Name:  "resource",
			Usage: "资源区分符 (user_resource 作用域)",
		},
	}
}

func identityFromFlags(cmd *cli.Command) xlimit.Identity {
	return xlimit.Identity{
		RemoteAddr:   cmd.String("ip"),
		ForwardedFor: cmd.String("xff"),
		Principal:    cmd.String("user"),
		Resource:     cmd.String("resource"),
	}
}

func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "执行一次真实限流判定并打印结果",
		Flags: append(identityFlags(),
			&cli.IntFlag{
				Name:    "n",
				Usage:   "本次判定的成本，0 使用规则自身 Cost",
				Aliases: []string{"cost"},
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdCheck(ctx, cmd)
		},
	}
}

func createPeekCommand() *cli.Command {
	return &cli.Command{
		Name:  "peek",
		Usage: "查看桶状态（不消耗令牌）",
		Flags: identityFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdPeek(ctx, cmd)
		},
	}
}

func createResetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "清空指定身份的桶",
		Flags: identityFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdReset(ctx, cmd)
		},
	}
}

func createRulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "规则文件运维",
		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "校验规则文件，非法时退出码 2",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return cmdRulesValidate(ctx, cmd)
				},
			},
			{
				Name:  "watch",
				Usage: "监视规则文件变更并打印重载结果",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return cmdRulesWatch(ctx, cmd)
				},
			},
		},
	}
}

// =============================================================================
// 限流器装配
// =============================================================================

// splitAddrs 解析逗号分隔的地址列表。
func splitAddrs(s string) []string {
	var addrs []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// loadRules 加载并返回规则文件内容。
func loadRules(ctx context.Context, cmd *cli.Command) ([]xlimit.Rule, error) {
	path := cmd.String("rules")
	if path == "" {
		return nil, &usageError{errors.New("--rules 不能为空")}
	}

	provider, err := xlimit.NewFileProvider(path)
	if err != nil {
		return nil, &usageError{err}
	}
	return provider.Load(ctx)
}

// buildLimiter 按全局参数装配限流器。
// 返回的 cleanup 负责关闭限流器与 Redis 客户端。
func buildLimiter(ctx context.Context, cmd *cli.Command) (*xlimit.Limiter, func(), error) {
	rules, err := loadRules(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	var (
		store   xlimit.Store
		client  redis.UniversalClient
		cleanup = func() {}
	)

	if addrs := splitAddrs(cmd.String("redis")); len(addrs) > 0 {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: addrs})
		store, err = xlimit.NewRedisStore(client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	} else {
		store = xlimit.NewMemoryStore()
	}

	limiter, err := xlimit.New(store,
		xlimit.WithRules(rules...),
		xlimit.WithStoreTimeout(cmd.Duration("timeout")),
	)
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, nil, err
	}

	cleanup = func() {
		_ = limiter.Close()
		if client != nil {
			_ = client.Close()
		}
	}
	return limiter, cleanup, nil
}

// =============================================================================
// 命令实现
// =============================================================================

// cmdCheck 执行真实判定。
// 设计决策: 拒绝通过 exitError 映射为退出码 1，
// 使脚本能直接用退出码判断放行与否。
func cmdCheck(ctx context.Context, cmd *cli.Command) error {
	limiter, cleanup, err := buildLimiter(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	d, err := limiter.CheckN(ctx, cmd.String("op"), identityFromFlags(cmd), int64(cmd.Int("n")))
	if err != nil {
		return err
	}

	printJSON(d)
	if !d.Allowed {
		return &exitError{code: 1}
	}
	return nil
}

func cmdPeek(ctx context.Context, cmd *cli.Command) error {
	limiter, cleanup, err := buildLimiter(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	state, ok, err := limiter.Peek(ctx, cmd.String("op"), identityFromFlags(cmd))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("桶不存在（视同满额）")
		return nil
	}

	printJSON(state)
	return nil
}

func cmdReset(ctx context.Context, cmd *cli.Command) error {
	limiter, cleanup, err := buildLimiter(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	op := cmd.String("op")
	if err := limiter.Reset(ctx, op, identityFromFlags(cmd)); err != nil {
		return err
	}

	fmt.Printf("已清空操作 %q 对应的桶\n", op)
	return nil
}

// cmdRulesValidate 校验规则文件。非法规则映射到退出码 2。
func cmdRulesValidate(ctx context.Context, cmd *cli.Command) error {
	rules, err := loadRules(ctx, cmd)
	if err != nil {
		var uerr *usageError
		if errors.As(err, &uerr) {
			return err
		}
		fmt.Fprintf(os.Stderr, "规则文件非法: %v\n", err)
		return &exitError{code: 2}
	}

	if _, err := xlimit.NewRuleSet(rules); err != nil {
		fmt.Fprintf(os.Stderr, "规则文件非法: %v\n", err)
		return &exitError{code: 2}
	}

	fmt.Printf("规则文件合法，共 %d 条规则\n", len(rules))
	return nil
}

// cmdRulesWatch 监视规则文件，打印每次重载结果，直到收到退出信号。
func cmdRulesWatch(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("rules")
	if path == "" {
		return &usageError{errors.New("--rules 不能为空")}
	}

	provider, err := xlimit.NewFileProvider(path)
	if err != nil {
		return &usageError{err}
	}

	err = xrun.Run(ctx, func(ctx context.Context) error {
		stop, err := provider.Watch(ctx, func(rules []xlimit.Rule, err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "重载失败: %v\n", err)
				return
			}
			if _, err := xlimit.NewRuleSet(rules); err != nil {
				fmt.Fprintf(os.Stderr, "重载失败: %v\n", err)
				return
			}
			fmt.Printf("已重载 %d 条规则\n", len(rules))
		})
		if err != nil {
			return err
		}
		defer stop()

		fmt.Printf("监视 %s 中，Ctrl+C 退出\n", path)
		<-ctx.Done()
		return nil
	})

	// 信号退出是正常结束
	var sigErr *xrun.SignalError
	if errors.As(err, &sigErr) {
		return nil
	}
	return err
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
