package config

import (
	"context"
	"fmt"
)

// New 创建配置加载器（不加载）。
func New(opts ...Option) (Loader, error) {
	cfg := &Config{}
	for _, o := range opts {
		o(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return newLoader(cfg)
}

// MustLoad 创建并加载配置，出错时 panic。仅用于初始化阶段。
func MustLoad(opts ...Option) Loader {
	loader, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	if err := loader.Load(context.Background()); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return loader
}
