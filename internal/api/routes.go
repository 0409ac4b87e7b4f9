package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/event-workflow/internal/auth"
	"github.com/mautops/event-workflow/internal/batch"
	"github.com/mautops/event-workflow/internal/config"
	"github.com/mautops/event-workflow/internal/engine"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDependencies 路由依赖
type RouterDependencies struct {
	DB        *gorm.DB
	Navigator engine.Navigator
	Approvals repository.ApprovalRepository
	Batch     *batch.Executor
	Validator *auth.TokenValidator
	RateLimit config.RateLimitConfig
	Logger    logrus.FieldLogger
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(deps.Logger))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(deps.DB)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	participantController := NewParticipantController(deps.Navigator, deps.Approvals)
	bulkController := NewBulkOperationController(deps.Batch)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(auth.AuthMiddleware(deps.Validator))
	v1.Use(RateLimitMiddleware(deps.RateLimit))
	{
		participants := v1.Group("/participants")
		{
			participants.POST("/:id/actions", participantController.ProcessAction)
			participants.POST("/:id/enter", participantController.Enter)
			participants.GET("/:id/approvals", participantController.Approvals)
		}

		events := v1.Group("/events")
		{
			events.POST("/:eventId/bulk-actions", bulkController.Execute)
			events.POST("/:eventId/bulk-actions/dry-run", bulkController.DryRun)
		}

		operations := v1.Group("/bulk-operations")
		{
			operations.GET("/:id", bulkController.Get)
			operations.POST("/:id/restore", bulkController.Restore)
		}
	}

	return router
}
