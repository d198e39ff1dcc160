package eventcore

import "errors"

// 共享错误定义（xkafka 和 xpulsar 共同使用）。
// 设计决策: 错误前缀使用 "sink:" 而非 "eventcore:"，因为这些错误被
// xkafka/xpulsar 重导出给终端用户，internal 包名不应出现在错误文案中。
var (
	// ErrNilClient 表示传入的客户端为空。
	ErrNilClient = errors.New("sink: nil client")

	// ErrNilEvent 表示传入的事件为空。
	ErrNilEvent = errors.New("sink: nil event")

	// ErrClosed 表示 sink 已关闭。
	ErrClosed = errors.New("sink: closed")
)
