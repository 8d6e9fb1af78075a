package config

import "strings"

// Option 配置选项模式
type Option func(*Config)

// Config 配置结构
type Config struct {
	Name      string   // 配置文件名称（不含扩展名）
	Paths     []string // 配置文件搜索路径，默认 [".", "./config"]
	FileType  string   // 配置文件类型 (yaml, json, etc.)
	EnvPrefix string   // 环境变量前缀，默认 "BRIDGE"

	// Validators 在 Load 和热更新时执行的验证函数
	Validators []func(Loader) error
}

// validate 设置默认值并验证配置
func (c *Config) validate() error {
	// 设置默认值
	if c.Name == "" {
		c.Name = "config"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "BRIDGE"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
	return nil
}

// WithConfigName 设置配置文件名称（不带扩展名）
func WithConfigName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithConfigPath 添加配置文件搜索路径
func WithConfigPath(path string) Option {
	return func(c *Config) {
		c.Paths = append(c.Paths, path)
	}
}

// WithConfigPaths 设置配置文件搜索路径（覆盖默认值）
func WithConfigPaths(paths ...string) Option {
	return func(c *Config) {
		c.Paths = paths
	}
}

// WithConfigType 设置配置文件类型 (yaml, json, etc.)
func WithConfigType(typ string) Option {
	return func(c *Config) {
		c.FileType = typ
	}
}

// WithEnvPrefix 设置环境变量前缀
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.EnvPrefix = prefix
	}
}

// WithValidator 注册配置验证函数，在 Load 和热更新时执行
func WithValidator(fn func(Loader) error) Option {
	return func(c *Config) {
		c.Validators = append(c.Validators, fn)
	}
}
