package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应格式
type Response struct {
	Code    int         `json:"code"`    // 0 表示成功
	Message string      `json:"message"` // 响应消息
	Data    interface{} `json:"data"`    // 响应数据
}

// ErrorResponse 错误响应格式
type ErrorResponse struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"` // 领域错误分类
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string, detail string) {
	statusCode := http.StatusInternalServerError
	if code >= 400 && code < 600 {
		statusCode = code
	}

	c.JSON(statusCode, ErrorResponse{
		Code:    code,
		Message: message,
		Detail:  detail,
	})
}
