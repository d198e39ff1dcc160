package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Builder 日志配置构建器
type Builder struct {
	output    io.Writer
	levelVar  *slog.LevelVar
	format    string
	addSource bool
	enrich    bool
	rotator   *lumberjack.Logger
	err       error
}

// New 创建配置构建器。
// 默认输出到 stderr，text 格式，Info 级别，启用 context 元数据注入。
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	return &Builder{
		output:   os.Stderr,
		levelVar: levelVar,
		format:   "text",
		enrich:   true,
	}
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w != nil {
		b.output = w
	}
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	if normalized == "" {
		b.format = "text"
		return b
	}
	if normalized != "text" && normalized != "json" {
		b.err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		return b
	}
	b.format = normalized
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetEnrich 是否启用 context 元数据自动注入（request_id、client_ip 等）。
// 默认启用。
func (b *Builder) SetEnrich(enable bool) *Builder {
	b.enrich = enable
	return b
}

// RotationOption 轮转配置选项
type RotationOption func(*lumberjack.Logger)

// WithMaxSizeMB 设置单文件最大体积（MB），超过后轮转。默认 100。
func WithMaxSizeMB(size int) RotationOption {
	return func(l *lumberjack.Logger) {
		l.MaxSize = size
	}
}

// WithMaxBackups 设置保留的历史文件数。默认 7。
func WithMaxBackups(n int) RotationOption {
	return func(l *lumberjack.Logger) {
		l.MaxBackups = n
	}
}

// WithMaxAgeDays 设置历史文件最长保留天数。默认不限制。
func WithMaxAgeDays(days int) RotationOption {
	return func(l *lumberjack.Logger) {
		l.MaxAge = days
	}
}

// WithCompress 设置是否压缩历史文件。默认不压缩。
func WithCompress(enable bool) RotationOption {
	return func(l *lumberjack.Logger) {
		l.Compress = enable
	}
}

// SetRotation 设置基于 lumberjack 的按大小轮转输出。
// 设置后覆盖 SetOutput 指定的目标。
func (b *Builder) SetRotation(filename string, opts ...RotationOption) *Builder {
	if filename == "" {
		b.err = fmt.Errorf("%w: empty filename", ErrInvalidRotation)
		return b
	}

	rotator := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100,
		MaxBackups: 7,
	}
	for _, opt := range opts {
		opt(rotator)
	}

	b.rotator = rotator
	return b
}

// Build 构建 Logger。
// 返回的 cleanup 函数负责释放轮转器等资源，必须在进程退出前调用。
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	output := b.output
	cleanup := func() error { return nil }
	if b.rotator != nil {
		output = b.rotator
		rotator := b.rotator
		cleanup = func() error { return rotator.Close() }
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     b.levelVar,
		AddSource: b.addSource,
	}

	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(output, handlerOpts)
	}

	return &xlogger{
		handler:  handler,
		levelVar: b.levelVar,
		enrich:   b.enrich,
	}, cleanup, nil
}
