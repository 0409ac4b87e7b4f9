package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mautops/event-workflow/internal/auth"
	"github.com/mautops/event-workflow/internal/config"
	"golang.org/x/time/rate"
)

// tenantLimiters 每个租户一个令牌桶
type tenantLimiters struct {
	rps      rate.Limit
	burst    int
	limiters sync.Map
}

func (t *tenantLimiters) get(tenantID string) *rate.Limiter {
	if l, ok := t.limiters.Load(tenantID); ok {
		return l.(*rate.Limiter)
	}
	l, _ := t.limiters.LoadOrStore(tenantID, rate.NewLimiter(t.rps, t.burst))
	return l.(*rate.Limiter)
}

// RateLimitMiddleware 按租户限流,需在认证中间件之后注册;rps 为 0 时不限流
func RateLimitMiddleware(cfg config.RateLimitConfig) gin.HandlerFunc {
	if cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiters := &tenantLimiters{rps: rate.Limit(cfg.RPS), burst: cfg.Burst}

	return func(c *gin.Context) {
		if !limiters.get(auth.GetTenantID(c)).Allow() {
			c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Code:    429,
				Message: "too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
