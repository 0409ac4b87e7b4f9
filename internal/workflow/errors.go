package workflow

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindInvalidState       ErrorKind = "INVALID_STATE"
	KindNoTransitionTarget ErrorKind = "NO_TRANSITION_TARGET"
	KindConflict           ErrorKind = "CONFLICT"
	KindFeatureDisabled    ErrorKind = "FEATURE_DISABLED"
	KindValidation         ErrorKind = "VALIDATION"
)

// Error 工作流领域错误
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按错误分类匹配哨兵错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// 哨兵错误,仅用于 errors.Is 判断分类
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrNoTransitionTarget = &Error{Kind: KindNoTransitionTarget}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrFeatureDisabled    = &Error{Kind: KindFeatureDisabled}
	ErrValidation         = &Error{Kind: KindValidation}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf 构造 NotFound 错误
func NotFoundf(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

// InvalidStatef 构造 InvalidState 错误
func InvalidStatef(format string, args ...interface{}) *Error {
	return newError(KindInvalidState, format, args...)
}

// NoTransitionTarget 构造 NoTransitionTarget 错误
func NoTransitionTarget(message string) *Error {
	return &Error{Kind: KindNoTransitionTarget, Message: message}
}

// Conflictf 构造并发冲突错误
func Conflictf(err error, format string, args ...interface{}) *Error {
	e := newError(KindConflict, format, args...)
	e.Err = err
	return e
}

// FeatureDisabledf 构造功能未开启错误
func FeatureDisabledf(format string, args ...interface{}) *Error {
	return newError(KindFeatureDisabled, format, args...)
}

// Validationf 构造请求校验错误
func Validationf(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

// KindOf 返回错误分类,非领域错误返回空
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
