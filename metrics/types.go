// Package metrics 为 bridge-mcp 网关提供统一的指标收集能力。
// 基于 OpenTelemetry 标准构建，提供简洁的 Counter、Gauge、Histogram 指标接口。
//
// 架构说明：
//   - 基于 OpenTelemetry 标准，确保与云原生生态兼容
//   - 内置 Prometheus HTTP 服务器，支持指标自动暴露
//   - Enabled 为 false 时返回 noop Meter，所有操作零开销
//
// 快速开始：
//
//	cfg := &metrics.Config{
//	    Enabled:     true,
//	    ServiceName: "bridge-mcp",
//	    Version:     "v1.0.0",
//	    Port:        9090,
//	    Path:        "/metrics",
//	}
//
//	meter, err := metrics.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer meter.Shutdown(ctx)
//
//	counter, _ := meter.Counter("breaker_requests_total", "受保护的请求总数")
//	counter.Inc(ctx, metrics.L("service", "mcp-fs"), metrics.L("result", "success"))
package metrics

import "context"

// Counter 计数器接口
// 用于记录只能增加的累计值，例如请求数、错误次数、熔断次数等
type Counter interface {
	// Inc 将计数器增加 1
	Inc(ctx context.Context, labels ...Label)

	// Add 将计数器增加给定的值
	// 注意：如果传入负数，大部分监控系统会忽略或报错
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 仪表盘接口
// 用于记录可以任意增减的瞬时值，例如当前打开的熔断器数量、活跃连接数等
type Gauge interface {
	// Set 将 gauge 设置为给定的值，会覆盖之前的值
	Set(ctx context.Context, val float64, labels ...Label)

	// Inc 将 gauge 增加 1
	Inc(ctx context.Context, labels ...Label)

	// Dec 将 gauge 减少 1
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 直方图接口
// 用于记录值的分布情况，例如请求耗时、延迟分布等
// 直方图会自动计算分位数（如 P95、P99）和总计数值
type Histogram interface {
	// Record 在直方图中记录一个值
	// 该值会被自动归类到相应的桶中，用于计算分位数
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建工厂接口
// 是所有指标类型的创建入口，负责管理指标的生命周期
//
// 一个 Meter 实例通常对应一个服务，通过 Meter 创建的指标会自动关联到该服务
// Meter 创建的指标是线程安全的，可以在多个 goroutine 中并发使用
type Meter interface {
	// Counter 创建计数器实例
	//
	// name 应符合 Prometheus 命名规范（如 breaker_requests_total）
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)

	// Gauge 创建仪表盘实例
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)

	// Histogram 创建直方图实例
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Shutdown 关闭 Meter，刷新所有指标并停止 Prometheus 暴露服务
	// 通常在应用程序退出时调用
	Shutdown(ctx context.Context) error
}

// MetricOption 指标配置选项函数类型
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项结构体
type MetricOptions struct {
	// Unit 指标的单位，例如 "bytes"、"seconds"
	// 建议使用 UCUM 单位代码：https://unitsofmeasure.org/ucum.html
	Unit string
}

// WithUnit 设置指标的单位
//
// 使用示例：
//
//	histogram, _ := meter.Histogram(
//	    "breaker_request_duration_seconds",
//	    "请求耗时",
//	    metrics.WithUnit("s"),
//	)
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}
