package model

import (
	"errors"
	"time"
)

// ApprovalModel 审批记录数据模型,只追加不修改
type ApprovalModel struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)"`
	TenantID      string    `gorm:"type:varchar(64);not null;index"`
	ParticipantID string    `gorm:"type:varchar(64);not null;index"`
	StepID        string    `gorm:"type:varchar(64);not null"`
	Action        string    `gorm:"type:varchar(32);not null"` // APPROVE/REJECT/BYPASS/ESCALATE/PRINT
	Remarks       string    `gorm:"type:text"`
	UserID        string    `gorm:"type:varchar(64);not null;index"` // 自动动作为 system
	ActorKind     string    `gorm:"type:varchar(16);not null;default:'human'"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (ApprovalModel) TableName() string {
	return "approvals"
}

// Validate 验证审批记录模型
func (am *ApprovalModel) Validate() error {
	if am.ID == "" {
		return errors.New("approval ID is required")
	}
	if am.ParticipantID == "" {
		return errors.New("participant ID is required")
	}
	if am.StepID == "" {
		return errors.New("step ID is required")
	}
	if am.Action == "" {
		return errors.New("approval action is required")
	}
	if am.UserID == "" {
		return errors.New("user ID is required")
	}
	return nil
}
