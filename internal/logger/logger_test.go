package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mautops/event-workflow/internal/config"
	"github.com/mautops/event-workflow/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewLoggerFromConfig_JSON 测试 JSON 日志包含默认字段
func TestNewLoggerFromConfig_JSON(t *testing.T) {
	log, err := logger.NewLoggerFromConfig(&config.LogConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.WithField("participant_id", "p-1").Info("transition applied")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, logger.ServiceName, entry["service"])
	assert.Equal(t, "p-1", entry["participant_id"])
	assert.Equal(t, "transition applied", entry["msg"])
}

// TestNewLoggerFromConfig_File 测试文件输出
func TestNewLoggerFromConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, err := logger.NewLoggerFromConfig(&config.LogConfig{Level: "bogus", Format: "text", Output: "file", File: path})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	log.Warn("written to file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

// TestGetLogger 测试默认日志记录器单例
func TestGetLogger(t *testing.T) {
	assert.Same(t, logger.GetLogger(), logger.GetLogger())
}
