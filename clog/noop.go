package clog

import "context"

// Discard 返回一个丢弃所有日志的 Logger
//
// 组件（如熔断器管理器）在未注入 Logger 时以此为默认值，
// 调用方因此无需在每个日志点做 nil 判断。
func Discard() Logger {
	return noopLogger{}
}

// noopLogger 所有方法均为空操作
type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...Field) {}
func (noopLogger) Info(msg string, fields ...Field)  {}
func (noopLogger) Warn(msg string, fields ...Field)  {}
func (noopLogger) Error(msg string, fields ...Field) {}
func (noopLogger) Fatal(msg string, fields ...Field) {}

func (noopLogger) DebugContext(ctx context.Context, msg string, fields ...Field) {}
func (noopLogger) InfoContext(ctx context.Context, msg string, fields ...Field)  {}
func (noopLogger) WarnContext(ctx context.Context, msg string, fields ...Field)  {}
func (noopLogger) ErrorContext(ctx context.Context, msg string, fields ...Field) {}
func (noopLogger) FatalContext(ctx context.Context, msg string, fields ...Field) {}

func (l noopLogger) With(fields ...Field) Logger          { return l }
func (l noopLogger) WithNamespace(parts ...string) Logger { return l }

func (noopLogger) SetLevel(level Level) error { return nil }
func (noopLogger) Flush()                     {}
