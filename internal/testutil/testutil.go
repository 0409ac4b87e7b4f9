// Package testutil provides in-memory databases and fixtures for package tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/event-workflow/internal/database"
	"github.com/mautops/event-workflow/internal/model"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/workflow"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TenantID 测试默认租户
const TenantID = "tenant-1"

// EventID 测试默认活动
const EventID = "event-1"

// NewTestDB 创建独立的内存数据库并完成迁移
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedWorkflow 写入工作流定义并捕获快照
func SeedWorkflow(t *testing.T, db *gorm.DB, workflowID string, steps []workflow.Step) *workflow.Snapshot {
	t.Helper()
	data, err := json.Marshal(steps)
	require.NoError(t, err)

	ctx := context.Background()
	err = repository.NewWorkflowRepository(db).Create(ctx, &model.WorkflowModel{
		ID:        workflowID,
		TenantID:  TenantID,
		Name:      workflowID,
		Steps:     datatypes.JSON(data),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		CreatedBy: "tester",
	})
	require.NoError(t, err)

	snap, err := repository.NewSnapshotRepository(db).Capture(ctx, TenantID, workflowID)
	require.NoError(t, err)
	return snap
}

// SeedParticipant 写入位于指定步骤的参与者
func SeedParticipant(t *testing.T, db *gorm.DB, id string, snap *workflow.Snapshot, stepID string, extras map[string]interface{}) *model.ParticipantModel {
	t.Helper()
	if extras == nil {
		extras = map[string]interface{}{}
	}
	data, err := json.Marshal(extras)
	require.NoError(t, err)

	p := &model.ParticipantModel{
		ID:        id,
		TenantID:  TenantID,
		EventID:   EventID,
		FirstName: "Test",
		LastName:  id,
		Email:     id + "@example.com",
		Status:    string(workflow.StatusInProgress),
		Extras:    datatypes.JSON(data),
		Version:   1,
	}
	if snap != nil {
		p.SnapshotID = &snap.ID
	}
	if stepID != "" {
		p.CurrentStepID = &stepID
	}
	require.NoError(t, repository.NewParticipantRepository(db).Save(context.Background(), p))
	return p
}

// SeedRule 写入自动动作规则
func SeedRule(t *testing.T, db *gorm.DB, id, stepID string, priority int, actionType string, expr interface{}) *model.AutoActionRuleModel {
	t.Helper()
	data, err := json.Marshal(expr)
	require.NoError(t, err)

	rule := &model.AutoActionRuleModel{
		ID:                  id,
		TenantID:            TenantID,
		StepID:              stepID,
		Name:                id,
		Priority:            priority,
		ActionType:          actionType,
		ConditionExpression: datatypes.JSON(data),
		IsActive:            true,
	}
	require.NoError(t, repository.NewAutoActionRuleRepository(db).Save(context.Background(), rule))
	return rule
}

// LoadParticipant 从数据库重新读取参与者
func LoadParticipant(t *testing.T, db *gorm.DB, id string) *model.ParticipantModel {
	t.Helper()
	p, err := repository.NewParticipantRepository(db).FindByID(context.Background(), TenantID, id)
	require.NoError(t, err)
	return p
}
