// Package logger builds the logrus loggers shared by the engine, batch executor and HTTP layer.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mautops/event-workflow/internal/config"
	"github.com/sirupsen/logrus"
)

// ServiceName 日志中 service 字段的值
const ServiceName = "event-workflow"

var (
	defaultLogger *logrus.Logger
	defaultOnce   sync.Once
)

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "msg",
		},
	}
}

// NewLogger 创建新的日志记录器
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(jsonFormatter())
	logger.SetLevel(logrus.InfoLevel)
	logger.SetOutput(os.Stdout)
	return logger
}

// NewLoggerFromConfig 根据配置创建日志记录器
func NewLoggerFromConfig(cfg *config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	// 设置日志格式
	if cfg.Format == "json" {
		logger.SetFormatter(jsonFormatter())
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FullTimestamp:   true,
		})
	}

	// 设置日志级别
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// 设置日志输出
	var writers []io.Writer
	if cfg.Output == "stdout" || cfg.Output == "both" {
		writers = append(writers, os.Stdout)
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		logFile := cfg.File
		if logFile == "" {
			logFile = filepath.Join("logs", ServiceName+".log")
		}
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}
	logger.SetOutput(io.MultiWriter(writers...))

	// 添加默认字段(用于日志聚合)
	logger.AddHook(&defaultFieldsHook{
		fields: logrus.Fields{"service": ServiceName},
	})

	return logger, nil
}

// defaultFieldsHook 添加默认字段的 Hook
type defaultFieldsHook struct {
	fields logrus.Fields
}

func (h *defaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *defaultFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// GetLogger 获取默认日志记录器
func GetLogger() *logrus.Logger {
	defaultOnce.Do(func() {
		defaultLogger = NewLogger()
	})
	return defaultLogger
}

// Discard 返回丢弃所有输出的日志记录器,用于测试
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
