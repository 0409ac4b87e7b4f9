// Package condition evaluates boolean expression trees against a flat key/value context.
package condition

import (
	"strings"

	"github.com/spf13/cast"
)

// Evaluate 对上下文求值表达式
// 纯函数: 字段缺失时除 neq 外一律为 false;and 遇 false 立即返回,or 遇 true 立即返回
func Evaluate(expr Expression, vars map[string]interface{}) bool {
	switch expr.Type {
	case TypeSimple:
		return evaluateSimple(expr, vars)
	case TypeCompound:
		return evaluateCompound(expr, vars)
	default:
		return false
	}
}

func evaluateCompound(expr Expression, vars map[string]interface{}) bool {
	switch expr.Operator {
	case OpAnd:
		for _, c := range expr.Conditions {
			if !Evaluate(c, vars) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range expr.Conditions {
			if Evaluate(c, vars) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evaluateSimple(expr Expression, vars map[string]interface{}) bool {
	actual, ok := vars[expr.Field]
	if !ok || actual == nil {
		return expr.Operator == OpNeq
	}

	switch expr.Operator {
	case OpEq:
		return equal(actual, expr.Value)
	case OpNeq:
		return !equal(actual, expr.Value)
	case OpGt:
		return compare(actual, expr.Value) > 0
	case OpGte:
		c := compare(actual, expr.Value)
		return c != incomparable && c >= 0
	case OpLt:
		c := compare(actual, expr.Value)
		return c != incomparable && c < 0
	case OpLte:
		c := compare(actual, expr.Value)
		return c != incomparable && c <= 0
	case OpContains:
		return contains(actual, expr.Value)
	default:
		return false
	}
}

// incomparable 用于无法比较的值,大于任何合法比较结果以使 gt 之外的判断失败
const incomparable = -2

func equal(actual, expected interface{}) bool {
	if a, b, ok := asNumbers(actual, expected); ok {
		return a == b
	}
	return cast.ToString(actual) == cast.ToString(expected)
}

// compare 返回 -1/0/1;数字优先按数值比较,否则按字符串比较(兼容 ISO 日期)
func compare(actual, expected interface{}) int {
	if expected == nil {
		return incomparable
	}
	if a, b, ok := asNumbers(actual, expected); ok {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	as, err := cast.ToStringE(actual)
	if err != nil {
		return incomparable
	}
	bs, err := cast.ToStringE(expected)
	if err != nil {
		return incomparable
	}
	return strings.Compare(as, bs)
}

func contains(actual, expected interface{}) bool {
	needle := cast.ToString(expected)
	if items, ok := actual.([]interface{}); ok {
		for _, item := range items {
			if cast.ToString(item) == needle {
				return true
			}
		}
		return false
	}
	if items, ok := actual.([]string); ok {
		for _, item := range items {
			if item == needle {
				return true
			}
		}
		return false
	}
	return strings.Contains(cast.ToString(actual), needle)
}

func asNumbers(a, b interface{}) (float64, float64, bool) {
	x, ok := asNumber(a)
	if !ok {
		return 0, 0, false
	}
	y, ok := asNumber(b)
	if !ok {
		return 0, 0, false
	}
	return x, y, true
}

func asNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, false
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}
