package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mautops/event-workflow/internal/metrics"
	"github.com/mautops/event-workflow/internal/service"
	"github.com/sirupsen/logrus"
)

// HeaderRequestID 请求 ID 请求头
const HeaderRequestID = "X-Request-ID"

// RequestIDMiddleware 生成或透传请求 ID,并写入审计使用的请求信息
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)

		ctx := service.WithRequestInfo(c.Request.Context(), service.RequestInfo{
			RequestID: requestID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogMiddleware 请求日志中间件
func RequestLogMiddleware(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		// 使用路由模板作为指标标签,避免路径参数导致基数膨胀
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		latency := time.Since(start)
		status := c.Writer.Status()

		metrics.RecordAPIRequest(method, path, status, latency.Seconds())

		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    latency.String(),
			"ip":         c.ClientIP(),
		})

		if status >= 500 {
			entry.Error("API request")
		} else if status >= 400 {
			entry.Warn("API request")
		} else {
			entry.Info("API request")
		}
	}
}
