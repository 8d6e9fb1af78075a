package breaker

import (
	"time"
)

// Config 单个熔断器的策略配置
//
// 所有字段均有合理默认值，建议从 DefaultConfig() 开始按需覆盖。
// Config 在熔断器内部被视为不可变对象，热更新通过整体替换生效。
type Config struct {
	// FailureThreshold 连续失败触发熔断的阈值
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`
	// FailureRateThreshold 滑动窗口失败率触发熔断的阈值 [0, 1]
	FailureRateThreshold float64 `json:"failure_rate_threshold" yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	// RollingWindowSize 滑动窗口记录的最近调用数上限
	RollingWindowSize int `json:"rolling_window_size" yaml:"rolling_window_size" mapstructure:"rolling_window_size"`

	// BaseCooldown 熔断后的基础冷却时长
	BaseCooldown time.Duration `json:"base_cooldown" yaml:"base_cooldown" mapstructure:"base_cooldown"`
	// MaxCooldown 指数退避后的冷却时长上限
	MaxCooldown time.Duration `json:"max_cooldown" yaml:"max_cooldown" mapstructure:"max_cooldown"`
	// CooldownMultiplier 探测失败时冷却时长的放大倍数，恢复时按同倍数回落
	CooldownMultiplier float64 `json:"cooldown_multiplier" yaml:"cooldown_multiplier" mapstructure:"cooldown_multiplier"`

	// HalfOpenMaxAttempts 半开状态允许的最大探测次数
	HalfOpenMaxAttempts int `json:"half_open_max_attempts" yaml:"half_open_max_attempts" mapstructure:"half_open_max_attempts"`
	// HalfOpenSuccessThreshold 半开状态闭合所需的成功次数
	HalfOpenSuccessThreshold int `json:"half_open_success_threshold" yaml:"half_open_success_threshold" mapstructure:"half_open_success_threshold"`

	// TripOn 强制计入失败的错误类别，优先级高于 Ignore
	TripOn []string `json:"trip_on" yaml:"trip_on" mapstructure:"trip_on"`
	// Ignore 不计入失败的错误类别（通常为客户端侧错误）
	Ignore []string `json:"ignore" yaml:"ignore" mapstructure:"ignore"`
}

// ManagerConfig 熔断器管理器配置
//
// Default 为全局默认策略；Servers 按服务键覆盖，覆盖项在管理器
// 创建该服务的熔断器时生效，也可通过 SetServerConfig 运行时下发。
type ManagerConfig struct {
	// Default 默认熔断策略
	Default Config `json:"default" yaml:"default" mapstructure:"default"`
	// Servers 按服务键的覆盖策略
	Servers map[string]Config `json:"servers" yaml:"servers" mapstructure:"servers"`
}

// DefaultConfig 返回默认熔断配置
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold:         5,
		FailureRateThreshold:     0.5,
		RollingWindowSize:        20,
		BaseCooldown:             5 * time.Second,
		MaxCooldown:              60 * time.Second,
		CooldownMultiplier:       2.0,
		HalfOpenMaxAttempts:      3,
		HalfOpenSuccessThreshold: 2,
		TripOn:                   defaultTripOn(),
		Ignore:                   defaultIgnore(),
	}
}

// defaultTripOn 默认计入熔断的错误类别
func defaultTripOn() []string {
	return []string{
		CategoryConnection,
		CategoryTimeout,
		CategoryServerError,
		CategoryMCPConnection,
		CategoryMCPTransport,
	}
}

// defaultIgnore 默认忽略的错误类别，客户端侧错误不代表下游不健康
func defaultIgnore() []string {
	return []string{
		CategoryClientError,
		"AuthenticationError",
		"AuthorizationError",
		"ValidationError",
	}
}

// Validate 校验配置合法性
// 校验失败返回 *ConfigError，原始配置不受影响
func (c *Config) Validate() error {
	if c.FailureThreshold < 1 {
		return newConfigError("failure_threshold", c.FailureThreshold, "must be >= 1")
	}
	if c.FailureRateThreshold < 0 || c.FailureRateThreshold > 1 {
		return newConfigError("failure_rate_threshold", c.FailureRateThreshold, "must be in [0, 1]")
	}
	if c.RollingWindowSize < 1 {
		return newConfigError("rolling_window_size", c.RollingWindowSize, "must be >= 1")
	}
	if c.BaseCooldown <= 0 {
		return newConfigError("base_cooldown", c.BaseCooldown, "must be positive")
	}
	if c.MaxCooldown < c.BaseCooldown {
		return newConfigError("max_cooldown", c.MaxCooldown, "must be >= base_cooldown")
	}
	if c.CooldownMultiplier <= 1 {
		// 倍数为 1 时探测失败不会放大冷却，指数退避形同虚设
		return newConfigError("cooldown_multiplier", c.CooldownMultiplier, "must be > 1.0")
	}
	if c.HalfOpenMaxAttempts < 1 {
		return newConfigError("half_open_max_attempts", c.HalfOpenMaxAttempts, "must be >= 1")
	}
	if c.HalfOpenSuccessThreshold < 1 {
		return newConfigError("half_open_success_threshold", c.HalfOpenSuccessThreshold, "must be >= 1")
	}
	if c.HalfOpenSuccessThreshold > c.HalfOpenMaxAttempts {
		return newConfigError("half_open_success_threshold", c.HalfOpenSuccessThreshold, "must be <= half_open_max_attempts")
	}
	return nil
}

// clone 返回配置的深拷贝，避免调用方后续修改切片影响已生效的配置
func (c *Config) clone() *Config {
	out := *c
	out.TripOn = append([]string(nil), c.TripOn...)
	out.Ignore = append([]string(nil), c.Ignore...)
	return &out
}

// minSamples 失败率触发所需的最小样本数: min(10, windowSize/2)
// 整数除法，windowSize=1 时为 0，此时失败率触发始终参与判定
func (c *Config) minSamples() int {
	n := c.RollingWindowSize / 2
	if n > 10 {
		n = 10
	}
	return n
}

// categorySet 把类别列表编译为集合，便于热路径 O(1) 判断
func categorySet(categories []string) map[string]struct{} {
	set := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return set
}
