package xlog

import (
	"context"
	"log/slog"

	"github.com/omeyang/ratekit/pkg/context/xctx"
)

// enrichAttrs 从 context 导出请求元数据属性。
// 字段由准入中间件在请求入口通过 xctx 注入。
func enrichAttrs(ctx context.Context) []slog.Attr {
	return xctx.Attrs(ctx)
}
