package container

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mautops/event-workflow/internal/config"
	"github.com/mautops/event-workflow/internal/featureflags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "events.db")
	cfg.Log.Level = "error"
	return cfg
}

// TestNewContainer_SQLite 测试使用 SQLite 组装全部依赖
func TestNewContainer_SQLite(t *testing.T) {
	cfg := sqliteConfig(t)
	c, err := NewContainer(cfg, "")
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Engine().Navigator)
	assert.NotNil(t, c.BatchExecutor())
	assert.True(t, c.FeatureFlags().IsEnabled(featureflags.BulkOperations, "any"))

	router := c.Router()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestNewContainer_ReloadsFeatureFlags 测试配置文件变更后更新功能开关
func TestNewContainer_ReloadsFeatureFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "events.db")
	write := func(enabled string) {
		content := "database:\n  driver: sqlite\n  sqlite_path: " + dbPath + "\nlog:\n  level: error\nfeatures:\n  bulk_operations: " + enabled + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("true")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	c, err := NewContainer(cfg, path)
	require.NoError(t, err)
	defer c.Close()
	require.True(t, c.FeatureFlags().IsEnabled(featureflags.BulkOperations, "tenant-1"))

	write("false")
	assert.Eventually(t, func() bool {
		return !c.FeatureFlags().IsEnabled(featureflags.BulkOperations, "tenant-1")
	}, 5*time.Second, 50*time.Millisecond)
}
