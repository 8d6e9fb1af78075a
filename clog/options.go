package clog

// NamespaceKey 是日志中命名空间的字段名，用于标识组件来源
const NamespaceKey = "namespace"

// Option 函数式选项，用于配置 Logger 实例
type Option func(*options)

// options 内部选项结构，存储 Logger 的配置选项
type options struct {
	namespaceParts []string
}

// WithNamespace 设置日志命名空间，支持多级命名空间
//
// 命名空间会以 "." 连接，作为日志中的 namespace 字段。
//
// 示例：
//
//	// 设置为 "gateway.breaker"
//	clog.WithNamespace("gateway", "breaker")
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// applyOptions 应用所有选项并返回配置（内部使用）
func applyOptions(opts ...Option) *options {
	o := &options{
		namespaceParts: []string{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
