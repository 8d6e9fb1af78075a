package breaker

import (
	"github.com/codingjam/bridge-mcp/clog"
	"github.com/codingjam/bridge-mcp/metrics"
)

// Option 定义可选参数
type Option func(*options)

type options struct {
	logger     clog.Logger
	meter      metrics.Meter
	classifier Classifier
	clock      Clock
}

// WithLogger 设置日志记录器
// 传入的 logger 会自动添加 "breaker" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 设置监控指标记录器
// 传入 nil 时不记录指标
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithClassifier 设置错误分类策略，替换 DefaultClassifier
// 网关可注入领域感知的分类器，把自有错误类型映射到类别名
func WithClassifier(classifier Classifier) Option {
	return func(o *options) {
		if classifier != nil {
			o.classifier = classifier
		}
	}
}

// WithClock 设置时间源，主要用于测试
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// applyOptions 应用所有选项并填充默认值
func applyOptions(opts ...Option) *options {
	opt := &options{
		logger:     clog.Discard(),
		classifier: DefaultClassifier,
		clock:      realClock{},
	}
	for _, o := range opts {
		o(opt)
	}
	return opt
}
