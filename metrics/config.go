package metrics

// Config 指标系统的配置结构体
// 用于控制指标系统的启用状态、服务标识和 Prometheus 暴露配置
//
// 支持 mapstructure 标签，可以从配置文件中加载：
//
//	metrics:
//	  enabled: true
//	  service_name: "bridge-mcp"
//	  version: "v1.2.3"
//	  port: 9090
//	  path: "/metrics"
type Config struct {
	// Enabled 是否启用指标收集
	// 为 false 时，metrics.New() 会返回 noop Meter，所有操作都是空操作
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// ServiceName 服务名称，作为 OTel Resource 的 service.name 属性
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`

	// Version 服务版本，作为 OTel Resource 的 service.version 属性
	Version string `json:"version" yaml:"version" mapstructure:"version"`

	// Port Prometheus HTTP 服务器监听的端口
	// 设置大于 0 时会启动 HTTP 服务器用于暴露 Prometheus 格式的指标
	Port int `json:"port" yaml:"port" mapstructure:"port"`

	// Path Prometheus 指标的 HTTP 路径，必须以 "/" 开头
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}
