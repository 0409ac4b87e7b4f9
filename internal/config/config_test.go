package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mautops/event-workflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoad_Defaults 测试默认配置
func TestLoad_Defaults(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Workflow.MaxChainDepth)
	assert.Equal(t, 20, cfg.Workflow.BulkChunkSize)
	assert.True(t, cfg.Features.BulkOperations)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_FromFile 测试从配置文件加载
func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: sqlite
  sqlite_path: /tmp/events.db
workflow:
  max_chain_depth: 5
features:
  bulk_operations: false
  tenants:
    acme:
      bulk_operations: true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Workflow.MaxChainDepth)
	assert.Equal(t, 20, cfg.Workflow.BulkChunkSize)
	assert.False(t, cfg.Features.BulkOperations)
	assert.True(t, cfg.Features.Tenants["acme"]["bulk_operations"])
}

// TestLoad_FromEnv 测试环境变量覆盖
func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "7070")
	t.Setenv("APP_WORKFLOW_BULK_CHUNK_SIZE", "50")

	cfg, err := config.Load(writeConfig(t, "env: development\n"))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Workflow.BulkChunkSize)
}

// TestLoad_Invalid 测试非法配置
func TestLoad_Invalid(t *testing.T) {
	_, err := config.Load(writeConfig(t, "database:\n  driver: mysql\n"))
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = config.Load(writeConfig(t, "workflow:\n  max_chain_depth: 0\n"))
	assert.ErrorContains(t, err, "max_chain_depth")

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestConfigWatcher_Reload 测试配置文件变更后回调被调用
func TestConfigWatcher_Reload(t *testing.T) {
	path := writeConfig(t, "features:\n  bulk_operations: true\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	watcher := config.NewConfigWatcher(cfg, path)
	var mu sync.Mutex
	var latest *config.Config
	watcher.OnConfigChange(func(c *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		latest = c
	})
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("features:\n  bulk_operations: false\n"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return latest != nil && !latest.Features.BulkOperations
	}, 3*time.Second, 50*time.Millisecond)
	assert.False(t, watcher.GetConfig().Features.BulkOperations)
}
