// Package auth extracts the acting user and tenant from incoming requests.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mautops/event-workflow/internal/config"
)

// 上下文键
const (
	ContextUserID   = "user_id"
	ContextTenantID = "tenant_id"
	ContextEmail    = "email"
)

// 未配置密钥时使用的请求头
const (
	HeaderUserID   = "X-User-ID"
	HeaderTenantID = "X-Tenant-ID"
)

// Claims JWT 声明
type Claims struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenValidator HS256 Token 验证器
type TokenValidator struct {
	secret []byte
	issuer string
}

// NewTokenValidator 创建 Token 验证器
func NewTokenValidator(cfg config.AuthConfig) *TokenValidator {
	return &TokenValidator{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}
}

// Enabled 是否配置了签名密钥
func (v *TokenValidator) Enabled() bool {
	return len(v.secret) > 0
}

// ValidateToken 验证 Token 并返回声明
func (v *TokenValidator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject in token")
	}
	if claims.TenantID == "" {
		return nil, errors.New("missing tenant_id in token")
	}
	return claims, nil
}

// IssueToken 签发 Token,供 CLI 与测试使用
func (v *TokenValidator) IssueToken(userID, tenantID string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := &Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// AuthMiddleware 认证中间件
// 配置了密钥时要求 Bearer Token,否则从 X-User-ID / X-Tenant-ID 请求头读取
func AuthMiddleware(validator *TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !validator.Enabled() {
			userID := c.GetHeader(HeaderUserID)
			tenantID := c.GetHeader(HeaderTenantID)
			if userID == "" || tenantID == "" {
				unauthorized(c, "missing user or tenant header", "")
				return
			}
			c.Set(ContextUserID, userID)
			c.Set(ContextTenantID, tenantID)
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, "missing authorization header", "")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		claims, err := validator.ValidateToken(token)
		if err != nil {
			unauthorized(c, "invalid token", err.Error())
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextTenantID, claims.TenantID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message, detail string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"code":    401,
		"message": message,
		"detail":  detail,
	})
	c.Abort()
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// GetTenantID 从上下文获取租户 ID
func GetTenantID(c *gin.Context) string {
	return c.GetString(ContextTenantID)
}
