package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// AutoActionRuleModel 自动动作规则数据模型
type AutoActionRuleModel struct {
	ID                  string         `gorm:"primaryKey;type:varchar(64)"`
	TenantID            string         `gorm:"type:varchar(64);not null;index"`
	StepID              string         `gorm:"type:varchar(64);not null;index:idx_rules_step_priority"`
	Name                string         `gorm:"type:varchar(255);not null"`
	Priority            int            `gorm:"type:int;not null;default:0;index:idx_rules_step_priority"` // 越小越优先
	ActionType          string         `gorm:"type:varchar(32);not null"`                                  // AUTO_APPROVE/AUTO_REJECT/AUTO_BYPASS/AUTO_ESCALATE
	ConditionExpression datatypes.JSON `gorm:"not null"`
	IsActive            bool           `gorm:"not null;default:true"`
	CreatedAt           time.Time      `gorm:"not null"`
	UpdatedAt           time.Time      `gorm:"not null"`
}

// TableName 指定表名
func (AutoActionRuleModel) TableName() string {
	return "auto_action_rules"
}

// Validate 验证自动动作规则
func (rm *AutoActionRuleModel) Validate() error {
	if rm.ID == "" {
		return errors.New("rule ID is required")
	}
	if rm.StepID == "" {
		return errors.New("step ID is required")
	}
	if rm.Name == "" {
		return errors.New("rule name is required")
	}
	if rm.ActionType == "" {
		return errors.New("action type is required")
	}
	if len(rm.ConditionExpression) == 0 {
		return errors.New("condition expression is required")
	}
	return nil
}
