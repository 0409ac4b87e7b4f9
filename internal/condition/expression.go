package condition

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ExpressionType 表达式类型
type ExpressionType string

const (
	TypeSimple   ExpressionType = "simple"
	TypeCompound ExpressionType = "compound"
)

// Operator 比较或组合运算符
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"

	OpAnd Operator = "and"
	OpOr  Operator = "or"
)

// Expression 条件表达式
// Type 为 simple 时使用 Field/Operator/Value,为 compound 时使用 Operator/Conditions
type Expression struct {
	Type       ExpressionType `json:"type"`
	Field      string         `json:"field,omitempty"`
	Operator   Operator       `json:"operator"`
	Value      interface{}    `json:"value,omitempty"`
	Conditions []Expression   `json:"conditions,omitempty"`
}

var (
	ErrUnknownType     = errors.New("unknown expression type")
	ErrUnknownOperator = errors.New("unknown operator")
	ErrMissingField    = errors.New("simple expression requires a field")
)

// Simple 构造简单比较表达式
func Simple(field string, op Operator, value interface{}) Expression {
	return Expression{Type: TypeSimple, Field: field, Operator: op, Value: value}
}

// And 构造 and 组合表达式
func And(conditions ...Expression) Expression {
	return Expression{Type: TypeCompound, Operator: OpAnd, Conditions: conditions}
}

// Or 构造 or 组合表达式
func Or(conditions ...Expression) Expression {
	return Expression{Type: TypeCompound, Operator: OpOr, Conditions: conditions}
}

// Parse 从 JSON 解析表达式并校验结构
func Parse(data []byte) (Expression, error) {
	var expr Expression
	if err := json.Unmarshal(data, &expr); err != nil {
		return Expression{}, fmt.Errorf("failed to unmarshal condition: %w", err)
	}
	if err := expr.Validate(); err != nil {
		return Expression{}, err
	}
	return expr, nil
}

// UnmarshalJSON 兼容未声明 type 的旧数据: 带 conditions 的视为 compound
func (e *Expression) UnmarshalJSON(data []byte) error {
	type plain Expression
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Type == "" {
		if p.Conditions != nil || p.Operator == OpAnd || p.Operator == OpOr {
			p.Type = TypeCompound
		} else {
			p.Type = TypeSimple
		}
	}
	*e = Expression(p)
	return nil
}

// Validate 校验表达式是否合法
func (e Expression) Validate() error {
	switch e.Type {
	case TypeSimple:
		if e.Field == "" {
			return ErrMissingField
		}
		switch e.Operator {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpContains:
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnknownOperator, e.Operator)
	case TypeCompound:
		if e.Operator != OpAnd && e.Operator != OpOr {
			return fmt.Errorf("%w: %q", ErrUnknownOperator, e.Operator)
		}
		for i, c := range e.Conditions {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("conditions[%d]: %w", i, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
}
