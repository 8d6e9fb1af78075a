package config

import (
	"github.com/codingjam/bridge-mcp/breaker"
	"github.com/codingjam/bridge-mcp/clog"
	"github.com/codingjam/bridge-mcp/metrics"
)

// GatewayConfig 网关配置的聚合结构，作为配置文件的反序列化目标
//
// 典型配置示例（YAML）：
//
//	log:
//	  level: info
//	  format: json
//	metrics:
//	  enabled: true
//	  service_name: bridge-mcp
//	  port: 9090
//	  path: /metrics
//	breaker:
//	  default:
//	    failure_threshold: 5
//	    failure_rate_threshold: 0.5
//	    rolling_window_size: 20
//	    base_cooldown: 5s
//	    max_cooldown: 60s
//	    cooldown_multiplier: 2.0
//	    half_open_max_attempts: 3
//	    half_open_success_threshold: 2
//	  servers:
//	    mcp-fs:
//	      failure_threshold: 3
//	      base_cooldown: 10s
type GatewayConfig struct {
	// Log 日志配置
	Log clog.Config `json:"log" yaml:"log" mapstructure:"log"`

	// Metrics 指标配置
	Metrics metrics.Config `json:"metrics" yaml:"metrics" mapstructure:"metrics"`

	// Breaker 熔断器配置（默认策略 + 按下游服务覆盖）
	Breaker breaker.ManagerConfig `json:"breaker" yaml:"breaker" mapstructure:"breaker"`
}
