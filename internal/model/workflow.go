package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// WorkflowModel 工作流定义数据模型(可编辑,按版本保存)
type WorkflowModel struct {
	ID          string         `gorm:"primaryKey;type:varchar(64)"`
	Version     int            `gorm:"primaryKey;type:int;not null;default:1"` // 主键组合 (id, version)
	TenantID    string         `gorm:"type:varchar(64);not null;index"`
	Name        string         `gorm:"type:varchar(255);not null"`
	Description string         `gorm:"type:text"`
	Steps       datatypes.JSON `gorm:"not null"` // 序列化后的步骤列表
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null"`
	CreatedBy   string         `gorm:"type:varchar(64)"`
	UpdatedBy   string         `gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (WorkflowModel) TableName() string {
	return "workflows"
}

// Validate 验证工作流模型
func (wm *WorkflowModel) Validate() error {
	if wm.ID == "" {
		return errors.New("workflow ID is required")
	}
	if wm.TenantID == "" {
		return errors.New("tenant ID is required")
	}
	if wm.Name == "" {
		return errors.New("workflow name is required")
	}
	if len(wm.Steps) == 0 {
		return errors.New("workflow steps are required")
	}
	return nil
}

// WorkflowSnapshotModel 工作流快照数据模型
// 创建后只读,同一 (workflow_id, version) 仅保存一份
type WorkflowSnapshotModel struct {
	ID              string         `gorm:"primaryKey;type:varchar(64)"`
	TenantID        string         `gorm:"type:varchar(64);not null;index"`
	WorkflowID      string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_snapshot_workflow_version"`
	WorkflowVersion int            `gorm:"type:int;not null;uniqueIndex:idx_snapshot_workflow_version"`
	Steps           datatypes.JSON `gorm:"not null"`
	CreatedAt       time.Time      `gorm:"not null"`
}

// TableName 指定表名
func (WorkflowSnapshotModel) TableName() string {
	return "workflow_snapshots"
}
