package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/event-workflow/internal/workflow"
)

// APIError API 错误
type APIError struct {
	Code    int
	Kind    workflow.ErrorKind
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件,处理控制器通过 c.Error 记录的错误
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		apiErr := toAPIError(c.Errors.Last().Err)
		c.JSON(apiErr.Code, ErrorResponse{
			Code:    apiErr.Code,
			Kind:    string(apiErr.Kind),
			Message: apiErr.Message,
			Detail:  apiErr.Detail,
		})
	}
}

// HandleError 记录错误并中止请求
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// StatusForKind 领域错误分类对应的 HTTP 状态码
func StatusForKind(kind workflow.ErrorKind) int {
	switch kind {
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindInvalidState, workflow.KindConflict:
		return http.StatusConflict
	case workflow.KindNoTransitionTarget:
		return http.StatusUnprocessableEntity
	case workflow.KindFeatureDisabled:
		return http.StatusForbidden
	case workflow.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var domainErr *workflow.Error
	if errors.As(err, &domainErr) {
		return &APIError{
			Code:    StatusForKind(domainErr.Kind),
			Kind:    domainErr.Kind,
			Message: domainErr.Error(),
		}
	}
	return &APIError{
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
		Detail:  err.Error(),
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}
