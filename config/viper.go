package config

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/codingjam/bridge-mcp/xerrors"
)

// loader 实现 Loader 接口
type loader struct {
	v         *viper.Viper
	cfg       *Config
	mu        sync.RWMutex
	watches   map[string][]chan Event
	oldValues map[string]any
}

// newLoader 创建一个新的配置加载器（内部使用）
func newLoader(cfg *Config) (Loader, error) {
	return &loader{
		v:         viper.New(),
		cfg:       cfg,
		watches:   make(map[string][]chan Event),
		oldValues: make(map[string]any),
	}, nil
}

// Load 初始化并从所有来源加载配置
func (l *loader) Load(ctx context.Context) error {
	// 1. 配置 Viper
	l.v.SetConfigName(l.cfg.Name)
	l.v.SetConfigType(l.cfg.FileType)

	for _, path := range l.cfg.Paths {
		l.v.AddConfigPath(path)
	}

	// 2. 环境变量设置（最高优先级）
	l.v.SetEnvPrefix(l.cfg.EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// 3. 加载 .env 文件（高优先级）
	// .env 缺失不是错误，环境变量和配置文件依然生效
	l.loadDotEnv()

	// 4. 加载配置文件（最低优先级）
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return xerrors.Wrapf(err, "failed to read config file %s", l.cfg.Name)
		}
		// 找不到配置文件可以接受：允许纯环境变量运行
	}

	// 5. 验证配置
	if err := l.Validate(); err != nil {
		return err
	}

	// 6. 保存当前值作为变更检测基线
	l.captureCurrentValues()

	// 7. 启动文件监听（自动启动，无需手动 Start）
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.loadDotEnv()
		l.notifyWatches(e)
	})
	l.v.WatchConfig()

	return nil
}

// loadDotEnv 尝试从搜索路径加载 .env 文件
func (l *loader) loadDotEnv() {
	_ = godotenv.Load()
	for _, path := range l.cfg.Paths {
		_ = godotenv.Load(filepath.Join(path, ".env"))
	}
}

// captureCurrentValues 保存当前配置值用于变更检测
func (l *loader) captureCurrentValues() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.watches {
		l.oldValues[key] = l.v.Get(key)
	}
}

// Get 根据 key 获取配置值
func (l *loader) Get(key string) any {
	return l.v.Get(key)
}

// Unmarshal 将整个配置反序列化到结构体
func (l *loader) Unmarshal(v any) error {
	return l.v.Unmarshal(v)
}

// UnmarshalKey 将特定配置 key 反序列化到结构体
func (l *loader) UnmarshalKey(key string, v any) error {
	return l.v.UnmarshalKey(key, v)
}

// Validate 执行注册的验证函数
func (l *loader) Validate() error {
	for _, fn := range l.cfg.Validators {
		if err := fn(l); err != nil {
			return WrapValidationError(err)
		}
	}
	return nil
}

// Watch 订阅特定配置 key 的变更
func (l *loader) Watch(ctx context.Context, key string) (<-chan Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Event, 10)
	l.watches[key] = append(l.watches[key], ch)
	l.oldValues[key] = l.v.Get(key)

	go func() {
		<-ctx.Done()
		l.removeWatch(key, ch)
	}()

	return ch, nil
}

// removeWatch 从注册表中移除监听通道
func (l *loader) removeWatch(key string, ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if chans, ok := l.watches[key]; ok {
		for i, c := range chans {
			if c == ch {
				l.watches[key] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
		if len(l.watches[key]) == 0 {
			delete(l.watches, key)
			delete(l.oldValues, key)
		}
	}
}

// notifyWatches 在配置文件变更后向订阅者分发事件
func (l *loader) notifyWatches(e fsnotify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, chans := range l.watches {
		newValue := l.v.Get(key)
		oldValue := l.oldValues[key]
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}
		l.oldValues[key] = newValue

		event := Event{
			Key:       key,
			Value:     newValue,
			OldValue:  oldValue,
			Source:    "file",
			Timestamp: now,
		}
		for _, ch := range chans {
			// 通道已满时丢弃事件，不能阻塞 fsnotify 回调
			select {
			case ch <- event:
			default:
			}
		}
	}
}
