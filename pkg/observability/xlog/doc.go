// Package xlog 提供 context 优先的结构化日志能力。
//
// # 设计理念
//
//   - 强制 context 传递：所有日志方法第一个参数是 ctx，
//     自动注入 xctx 中的请求元数据（request_id、client_ip、principal）
//   - 类型安全：方法签名只接受 slog.Attr，避免隐式 key-value 转换
//   - 动态级别：通过 Leveler 接口运行时调整级别
//   - 生命周期：Build() 返回 cleanup 函数，负责轮转器等资源释放
//
// # 快速开始
//
//	logger, cleanup, err := xlog.New().
//	    SetFormat("json").
//	    SetLevelString("info").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
//
//	logger.Info(ctx, "admission checked",
//	    slog.String("rule", "login"),
//	    slog.Bool("allowed", true),
//	)
//
// # 日志轮转
//
// 通过 SetRotation 启用基于 lumberjack 的按大小轮转：
//
//	logger, cleanup, err := xlog.New().
//	    SetRotation("/var/log/ratekit/admission.log",
//	        xlog.WithMaxSizeMB(100),
//	        xlog.WithMaxBackups(7),
//	    ).
//	    Build()
//
// # 测试
//
// 使用 [Nop] 获取丢弃所有输出的 Logger。
package xlog
