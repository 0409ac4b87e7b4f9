package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigWatcher 配置监听器
type ConfigWatcher struct {
	config     *Config
	configPath string
	viper      *viper.Viper
	callbacks  []func(*Config)
	onError    func(error)
	mu         sync.RWMutex
	stopped    bool
	stopMu     sync.RWMutex
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string) *ConfigWatcher {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigWatcher{
		config:     cfg,
		configPath: configPath,
		viper:      v,
		callbacks:  make([]func(*Config), 0),
		onError:    func(error) {},
	}
}

// OnConfigChange 注册配置变更回调
func (w *ConfigWatcher) OnConfigChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// OnError 注册重新加载失败时的回调
func (w *ConfigWatcher) OnError(callback func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = callback
}

// Start 启动配置监听
func (w *ConfigWatcher) Start() error {
	// 读取配置文件
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// 设置配置变更监听
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.reload()
	})
	w.viper.WatchConfig()

	return nil
}

// reload 重新解析配置并通知回调,解析失败时保留旧配置
func (w *ConfigWatcher) reload() {
	w.stopMu.RLock()
	stopped := w.stopped
	w.stopMu.RUnlock()
	if stopped {
		return
	}

	newCfg, err := unmarshal(w.viper)

	// 获取回调列表(需要加锁保护)
	w.mu.RLock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	onError := w.onError
	w.mu.RUnlock()

	if err != nil {
		onError(err)
		return
	}

	// 更新当前配置
	w.mu.Lock()
	w.config = newCfg
	w.mu.Unlock()

	// 调用所有回调(在锁外执行,避免死锁)
	for _, callback := range callbacks {
		callback(newCfg)
	}
}

// Stop 停止配置监听
func (w *ConfigWatcher) Stop() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	w.stopped = true
}

// GetConfig 获取当前配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}
