// Package utils holds input validation shared by the HTTP layer.
package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// MaxRemarksLength 备注最大长度
const MaxRemarksLength = 2000

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// SanitizeString 清理字符串,转义 HTML 并移除控制字符
func SanitizeString(input string) string {
	sanitized := html.EscapeString(input)

	var result strings.Builder
	for _, r := range sanitized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}

// ValidateID 验证参与者、工作流、批量操作等 ID 格式
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(id) > 64 {
		return ErrIDTooLong
	}
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}
	return nil
}

// ValidateIDs 验证一组 ID,返回第一个不合法的 ID
func ValidateIDs(ids []string) (string, error) {
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			return id, err
		}
	}
	return "", nil
}

// CleanRemarks 去除首尾空白并清理备注,允许为空
func CleanRemarks(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > MaxRemarksLength {
		return "", ErrStringTooLong
	}
	return SanitizeString(trimmed), nil
}

// 错误定义
var (
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrStringTooLong   = &ValidationError{Code: "STRING_TOO_LONG", Message: "string exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
