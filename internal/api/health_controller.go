package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/event-workflow/internal/metrics"
	"gorm.io/gorm"
)

// HealthController 健康检查控制器
type HealthController struct {
	db *gorm.DB
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{db: db}
}

// Check 健康检查
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	if c.db != nil {
		if err := c.checkDatabase(ctx.Request.Context()); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

func (c *HealthController) checkDatabase(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// MetricsHandler Prometheus 指标处理器
func MetricsHandler(c *gin.Context) {
	metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
