// Package breaker 提供了熔断器组件，为网关到下游 MCP 服务的出站调用提供故障隔离与自动恢复。
//
// breaker 是 bridge-mcp 弹性层的核心组件，它提供了：
// - 按目标服务（server key）独立熔断的状态机
// - 双触发条件：连续失败次数阈值 + 滑动窗口失败率阈值
// - 指数退避冷却：反复失败冷却加倍，持续恢复冷却回落
// - 半开状态有限探测，探测成功后自动闭合
// - 错误分类策略：客户端错误（4xx 类）不计入熔断，取消不作为健康信号
// - gRPC Unary/Stream Interceptor 无侵入集成
//
// ## 基本使用
//
//	// 创建熔断器管理器
//	mgr, _ := breaker.New(breaker.DefaultConfig(), breaker.WithLogger(logger))
//
//	// 执行受保护的调用
//	result, err := mgr.Execute(ctx, "mcp-fs", func(ctx context.Context) (any, error) {
//		return session.CallTool(ctx, req)
//	})
//	var openErr *breaker.OpenError
//	if errors.As(err, &openErr) {
//		// 熔断打开：返回 503 + Retry-After
//		w.Header().Set("Retry-After", strconv.Itoa(int(openErr.RetryAfter().Seconds())))
//	}
//
// ## 按服务覆盖配置
//
//	cfg := breaker.DefaultConfig()
//	cfg.FailureThreshold = 3
//	_ = mgr.SetServerConfig("mcp-flaky", cfg)
//
// ## 使用 gRPC Interceptor
//
//	conn, _ := grpc.NewClient(
//		"localhost:9001",
//		grpc.WithUnaryInterceptor(mgr.UnaryClientInterceptor()),
//	)
package breaker

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/codingjam/bridge-mcp/clog"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Operation 受熔断保护执行的函数类型
type Operation func(ctx context.Context) (any, error)

// Manager 熔断器管理器核心接口
//
// 每个目标服务（server key）对应一个独立的 Breaker 实例，按需惰性创建。
// 正常调用路径只需使用 Execute；其余方法服务于配置下发与运维面板。
type Manager interface {
	// Execute 执行受熔断保护的函数
	// key: 熔断键（目标服务的稳定标识）
	// op: 要执行的函数，执行期间不持有任何锁
	// 返回: 函数执行结果和错误；熔断打开时返回 *OpenError
	Execute(ctx context.Context, key string, op Operation) (any, error)

	// GetBreaker 获取指定键的熔断器，不存在时惰性创建（幂等）
	GetBreaker(key string) (*Breaker, error)

	// PeekBreaker 获取指定键的熔断器，不存在时不创建
	PeekBreaker(key string) (*Breaker, bool)

	// Keys 返回当前所有熔断器的键
	Keys() []string

	// SetServerConfig 设置指定服务的覆盖配置
	// 如果该服务的熔断器已存在，配置会立即生效
	SetServerConfig(key string, cfg *Config) error

	// ResetBreaker 手动将指定熔断器重置为闭合状态
	// 返回: 熔断器是否存在
	ResetBreaker(key string) bool

	// ResetAllBreakers 将所有熔断器重置为闭合状态
	// 返回: 被重置（原先非闭合）的熔断器数量
	ResetAllBreakers() int

	// CleanupInactive 清理空闲超过 idleFor 的熔断器，控制长期内存占用
	// 返回: 被移除的熔断器数量
	CleanupInactive(idleFor time.Duration) int

	// BreakerStats 返回所有熔断器的统计快照
	BreakerStats() []BreakerStats

	// Stats 返回管理器级别的聚合统计
	Stats() ManagerStats

	// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
	// 支持 InterceptorOption 配置 Key 生成策略
	UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor

	// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
	StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor

	// Shutdown 丢弃所有熔断器状态并记录最终统计
	Shutdown()
}

// ========================================
// 状态定义 (State)
// ========================================

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建熔断器管理器实例
// 这是标准的工厂函数，支持在不依赖其他容器的情况下独立实例化
//
// 参数:
//   - defaultCfg: 默认熔断配置，nil 时使用 DefaultConfig()
//   - opts: 可选参数 (Logger, Meter, Classifier, Clock)
//
// 使用示例:
//
//	mgr, _ := breaker.New(breaker.DefaultConfig(),
//		breaker.WithLogger(logger),
//		breaker.WithMeter(meter))
func New(defaultCfg *Config, opts ...Option) (Manager, error) {
	if defaultCfg == nil {
		defaultCfg = DefaultConfig()
	}
	if err := defaultCfg.Validate(); err != nil {
		return nil, err
	}

	opt := applyOptions(opts...)
	opt.logger.Info("circuit breaker manager initialized",
		clog.Int("failure_threshold", defaultCfg.FailureThreshold),
		clog.Float64("failure_rate_threshold", defaultCfg.FailureRateThreshold),
		clog.Duration("base_cooldown", defaultCfg.BaseCooldown))

	return newManager(defaultCfg, opt), nil
}
