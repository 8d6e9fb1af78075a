package clog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// loggerImpl 是 Logger 接口的具体实现
type loggerImpl struct {
	handler   slog.Handler
	level     *slog.LevelVar
	out       io.Writer
	addSource bool
	namespace []string
	baseAttrs []Field
}

// newLogger 创建 Logger 实例（内部使用）
func newLogger(config *Config, options *options) (Logger, error) {
	level := &slog.LevelVar{}
	parsed, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	level.Set(toSlogLevel(parsed))

	out, err := openOutput(config.Output)
	if err != nil {
		return nil, err
	}

	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}

	return &loggerImpl{
		handler:   handler,
		level:     level,
		out:       out,
		addSource: config.AddSource,
		namespace: options.namespaceParts,
	}, nil
}

// openOutput 解析输出目标（内部使用）
func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
}

func (l *loggerImpl) Debug(msg string, fields ...Field) {
	l.log(context.Background(), DebugLevel, msg, fields...)
}

func (l *loggerImpl) Info(msg string, fields ...Field) {
	l.log(context.Background(), InfoLevel, msg, fields...)
}

func (l *loggerImpl) Warn(msg string, fields ...Field) {
	l.log(context.Background(), WarnLevel, msg, fields...)
}

func (l *loggerImpl) Error(msg string, fields ...Field) {
	l.log(context.Background(), ErrorLevel, msg, fields...)
}

func (l *loggerImpl) Fatal(msg string, fields ...Field) {
	l.log(context.Background(), FatalLevel, msg, fields...)
	l.Flush()
	os.Exit(1)
}

func (l *loggerImpl) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields...)
}

func (l *loggerImpl) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields...)
}

func (l *loggerImpl) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields...)
}

func (l *loggerImpl) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields...)
}

func (l *loggerImpl) FatalContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, FatalLevel, msg, fields...)
	l.Flush()
	os.Exit(1)
}

// With 创建带有预设字段的子 Logger
func (l *loggerImpl) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	clone := *l
	clone.baseAttrs = append(append([]Field{}, l.baseAttrs...), fields...)
	return &clone
}

// WithNamespace 创建扩展命名空间的子 Logger
func (l *loggerImpl) WithNamespace(parts ...string) Logger {
	if len(parts) == 0 {
		return l
	}
	clone := *l
	clone.namespace = append(append([]string{}, l.namespace...), parts...)
	return &clone
}

// SetLevel 动态调整日志级别
//
// 注意：level 由所有派生的子 Logger 共享。
func (l *loggerImpl) SetLevel(level Level) error {
	l.level.Set(toSlogLevel(level))
	return nil
}

// Flush 同步缓冲区（仅对文件输出有效）
func (l *loggerImpl) Flush() {
	if f, ok := l.out.(*os.File); ok {
		_ = f.Sync()
	}
}

// log 统一的日志写入入口（内部使用）
func (l *loggerImpl) log(ctx context.Context, level Level, msg string, fields ...Field) {
	sl := toSlogLevel(level)
	if !l.handler.Enabled(ctx, sl) {
		return
	}

	var pc uintptr
	if l.addSource {
		// 跳过 Callers、log 和级别方法三层调用
		var pcs [1]uintptr
		runtime.Callers(3, pcs[:])
		pc = pcs[0]
	}

	record := slog.NewRecord(time.Now(), sl, msg, pc)
	if ns := strings.Join(l.namespace, "."); ns != "" {
		record.AddAttrs(slog.String(NamespaceKey, ns))
	}
	record.AddAttrs(l.baseAttrs...)
	record.AddAttrs(fields...)

	_ = l.handler.Handle(ctx, record)
}
