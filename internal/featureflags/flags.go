// Package featureflags provides tenant-aware runtime feature flags backed by the features config section.
package featureflags

import (
	"strings"
	"sync"

	"github.com/mautops/event-workflow/internal/config"
)

// BulkOperations 批量操作开关
const BulkOperations = "bulk_operations"

// Checker 功能开关查询接口
type Checker interface {
	IsEnabled(flag string, tenantID string) bool
}

// Flags 功能开关,支持按租户覆盖
type Flags struct {
	mu       sync.RWMutex
	defaults map[string]bool
	tenants  map[string]map[string]bool
}

// New 根据配置创建功能开关
func New(cfg config.FeatureConfig) *Flags {
	f := &Flags{}
	f.Update(cfg)
	return f
}

// Update 用新配置替换全部开关,配置热更新时调用
func (f *Flags) Update(cfg config.FeatureConfig) {
	defaults := map[string]bool{
		BulkOperations: cfg.BulkOperations,
	}
	tenants := make(map[string]map[string]bool, len(cfg.Tenants))
	for tenant, flags := range cfg.Tenants {
		overrides := make(map[string]bool, len(flags))
		for flag, enabled := range flags {
			overrides[strings.ToLower(flag)] = enabled
		}
		tenants[strings.ToLower(tenant)] = overrides
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaults = defaults
	f.tenants = tenants
}

// IsEnabled 返回开关状态,租户覆盖优先于全局默认值,未知开关视为关闭
// 配置键不区分大小写,租户 ID 按小写匹配
func (f *Flags) IsEnabled(flag string, tenantID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	flag = strings.ToLower(flag)
	if overrides, ok := f.tenants[strings.ToLower(tenantID)]; ok {
		if enabled, ok := overrides[flag]; ok {
			return enabled
		}
	}
	return f.defaults[flag]
}

// Set 设置租户级开关,tenantID 为空时设置全局默认值(用于测试)
func (f *Flags) Set(flag string, tenantID string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.defaults == nil {
		f.defaults = map[string]bool{}
	}
	if f.tenants == nil {
		f.tenants = map[string]map[string]bool{}
	}

	flag = strings.ToLower(flag)
	if tenantID == "" {
		f.defaults[flag] = enabled
		return
	}
	tenantID = strings.ToLower(tenantID)
	if f.tenants[tenantID] == nil {
		f.tenants[tenantID] = map[string]bool{}
	}
	f.tenants[tenantID][flag] = enabled
}
