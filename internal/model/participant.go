package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ParticipantModel 参与者数据模型(工作流相关字段)
type ParticipantModel struct {
	ID            string         `gorm:"primaryKey;type:varchar(64)"`
	TenantID      string         `gorm:"type:varchar(64);not null;index"`
	EventID       string         `gorm:"type:varchar(64);not null;index"`
	FirstName     string         `gorm:"type:varchar(255)"`
	LastName      string         `gorm:"type:varchar(255)"`
	Email         string         `gorm:"type:varchar(255);index"`
	SnapshotID    *string        `gorm:"type:varchar(64);index"`  // 进入工作流时绑定的快照
	CurrentStepID *string        `gorm:"type:varchar(64);index"`  // 当前步骤 ID
	Status        string         `gorm:"type:varchar(32);not null;index;default:'PENDING'"`
	Extras        datatypes.JSON `gorm:"not null"`                // 条件求值上下文
	Version       int            `gorm:"type:int;not null;default:1"` // 乐观锁版本号
	CreatedAt     time.Time      `gorm:"not null;index"`
	UpdatedAt     time.Time      `gorm:"not null"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// TableName 指定表名
func (ParticipantModel) TableName() string {
	return "participants"
}

// Validate 验证参与者模型
func (pm *ParticipantModel) Validate() error {
	if pm.ID == "" {
		return errors.New("participant ID is required")
	}
	if pm.TenantID == "" {
		return errors.New("tenant ID is required")
	}
	if pm.EventID == "" {
		return errors.New("event ID is required")
	}
	if pm.Status == "" {
		pm.Status = "PENDING"
	}
	if len(pm.Extras) == 0 {
		pm.Extras = datatypes.JSON("{}")
	}
	return nil
}
