package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// 批量操作状态
const (
	BulkStatusValidating = "VALIDATING"
	BulkStatusProcessing = "PROCESSING"
	BulkStatusCompleted  = "COMPLETED"
	BulkStatusFailed     = "FAILED"
	BulkStatusRestored   = "RESTORED"
)

// 批量操作明细结果
const (
	BulkItemSucceeded = "SUCCEEDED"
	BulkItemFailed    = "FAILED"
)

// BulkOperationModel 批量操作数据模型
type BulkOperationModel struct {
	ID           string         `gorm:"primaryKey;type:varchar(64)"`
	TenantID     string         `gorm:"type:varchar(64);not null;index"`
	EventID      string         `gorm:"type:varchar(64);not null;index"`
	Type         string         `gorm:"type:varchar(32);not null"` // WORKFLOW_ACTION
	Action       string         `gorm:"type:varchar(32);not null"`
	Status       string         `gorm:"type:varchar(32);not null;index"`
	CreatedBy    string         `gorm:"type:varchar(64);not null"`
	TotalCount   int            `gorm:"type:int;not null;default:0"`
	SuccessCount int            `gorm:"type:int;not null;default:0"`
	FailureCount int            `gorm:"type:int;not null;default:0"`
	SnapshotData datatypes.JSON // 撤销快照
	CreatedAt    time.Time      `gorm:"not null;index"`
	UpdatedAt    time.Time      `gorm:"not null"`
	CompletedAt  *time.Time
	RestoredAt   *time.Time
}

// TableName 指定表名
func (BulkOperationModel) TableName() string {
	return "bulk_operations"
}

// Validate 验证批量操作模型
func (bm *BulkOperationModel) Validate() error {
	if bm.ID == "" {
		return errors.New("bulk operation ID is required")
	}
	if bm.TenantID == "" {
		return errors.New("tenant ID is required")
	}
	if bm.Status == "" {
		return errors.New("bulk operation status is required")
	}
	if bm.CreatedBy == "" {
		return errors.New("created by is required")
	}
	return nil
}

// IsFinal 是否已结束
func (bm *BulkOperationModel) IsFinal() bool {
	return bm.Status == BulkStatusCompleted || bm.Status == BulkStatusFailed
}

// BulkOperationItemModel 批量操作明细数据模型
type BulkOperationItemModel struct {
	ID            string         `gorm:"primaryKey;type:varchar(64)"`
	OperationID   string         `gorm:"type:varchar(64);not null;index"`
	ParticipantID string         `gorm:"type:varchar(64);not null;index"`
	Status        string         `gorm:"type:varchar(32);not null"`
	Error         string         `gorm:"type:text"`
	PreviousState datatypes.JSON // 执行前的 {stepId,status}
	NewStepID     string         `gorm:"type:varchar(64)"`
	NewStatus     string         `gorm:"type:varchar(32)"` // 执行后(含自动动作链)的状态
	CreatedAt     time.Time      `gorm:"not null"`
}

// TableName 指定表名
func (BulkOperationItemModel) TableName() string {
	return "bulk_operation_items"
}
