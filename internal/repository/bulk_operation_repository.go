package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mautops/event-workflow/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNothingToRestore 批量操作没有可恢复的快照
var ErrNothingToRestore = errors.New("bulk operation has no undo snapshot")

// BulkOperationRepository 批量操作仓储接口
type BulkOperationRepository interface {
	Create(ctx context.Context, op *model.BulkOperationModel) error
	FindByID(ctx context.Context, tenantID string, id string) (*model.BulkOperationModel, error)
	FindItems(ctx context.Context, operationID string) ([]*model.BulkOperationItemModel, error)
	UpdateStatus(ctx context.Context, id string, status string) error
	SaveItems(ctx context.Context, items []*model.BulkOperationItemModel) error
	Finalize(ctx context.Context, id string, status string, successCount int, failureCount int) error
	CaptureSnapshot(ctx context.Context, op *model.BulkOperationModel, participantIDs []string) error
	RestoreFromSnapshot(ctx context.Context, op *model.BulkOperationModel) (*RestoreResult, error)
}

// ParticipantState 撤销快照中单个参与者的状态
type ParticipantState struct {
	ParticipantID string  `json:"participantId"`
	SnapshotID    *string `json:"snapshotId,omitempty"`
	CurrentStepID *string `json:"currentStepId,omitempty"`
	Status        string  `json:"status"`
}

// RestoreResult 快照恢复结果
type RestoreResult struct {
	RestoredCount int      `json:"restoredCount"`
	FailedCount   int      `json:"failedCount"`
	FailedIDs     []string `json:"failedIds,omitempty"`
}

// bulkOperationRepository 批量操作仓储实现
type bulkOperationRepository struct {
	db *gorm.DB
}

// NewBulkOperationRepository 创建批量操作仓储
func NewBulkOperationRepository(db *gorm.DB) BulkOperationRepository {
	return &bulkOperationRepository{db: db}
}

// Create 创建批量操作
func (r *bulkOperationRepository) Create(ctx context.Context, op *model.BulkOperationModel) error {
	if err := op.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(op).Error
}

// FindByID 根据 ID 查找批量操作
func (r *bulkOperationRepository) FindByID(ctx context.Context, tenantID string, id string) (*model.BulkOperationModel, error) {
	var op model.BulkOperationModel
	if err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&op).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

// FindItems 查找批量操作明细
func (r *bulkOperationRepository) FindItems(ctx context.Context, operationID string) ([]*model.BulkOperationItemModel, error) {
	var items []*model.BulkOperationItemModel
	err := r.db.WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// UpdateStatus 更新批量操作状态
func (r *bulkOperationRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	return r.db.WithContext(ctx).Model(&model.BulkOperationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// SaveItems 批量写入明细
func (r *bulkOperationRepository) SaveItems(ctx context.Context, items []*model.BulkOperationItemModel) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(items, 100).Error
}

// Finalize 写入最终状态与计数
func (r *bulkOperationRepository) Finalize(ctx context.Context, id string, status string, successCount int, failureCount int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.BulkOperationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"success_count": successCount,
			"failure_count": failureCount,
			"completed_at":  now,
			"updated_at":    now,
		}).Error
}

// CaptureSnapshot 记录参与者执行前的状态,用于撤销
func (r *bulkOperationRepository) CaptureSnapshot(ctx context.Context, op *model.BulkOperationModel, participantIDs []string) error {
	states := make([]ParticipantState, 0, len(participantIDs))
	for start := 0; start < len(participantIDs); start += 500 {
		end := start + 500
		if end > len(participantIDs) {
			end = len(participantIDs)
		}

		var rows []*model.ParticipantModel
		err := r.db.WithContext(ctx).
			Select("id", "snapshot_id", "current_step_id", "status").
			Where("tenant_id = ? AND id IN ?", op.TenantID, participantIDs[start:end]).
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("failed to read participant states: %w", err)
		}
		for _, row := range rows {
			states = append(states, ParticipantState{
				ParticipantID: row.ID,
				SnapshotID:    row.SnapshotID,
				CurrentStepID: row.CurrentStepID,
				Status:        row.Status,
			})
		}
	}

	data, err := json.Marshal(states)
	if err != nil {
		return fmt.Errorf("failed to encode undo snapshot: %w", err)
	}
	op.SnapshotData = datatypes.JSON(data)
	return r.db.WithContext(ctx).Model(&model.BulkOperationModel{}).
		Where("id = ?", op.ID).
		Update("snapshot_data", op.SnapshotData).Error
}

// RestoreFromSnapshot 将执行成功的参与者恢复到快照中的状态
// 执行失败的参与者未被修改,不做恢复;仍停留在批量操作结束时的步骤与状态才会恢复,
// 之后被其他人处理过的计入失败。每个参与者独立恢复,版本号递增使进行中的并发更新失败
func (r *bulkOperationRepository) RestoreFromSnapshot(ctx context.Context, op *model.BulkOperationModel) (*RestoreResult, error) {
	if len(op.SnapshotData) == 0 {
		return nil, ErrNothingToRestore
	}

	var states []ParticipantState
	if err := json.Unmarshal(op.SnapshotData, &states); err != nil {
		return nil, fmt.Errorf("failed to decode undo snapshot: %w", err)
	}

	var items []*model.BulkOperationItemModel
	err := r.db.WithContext(ctx).
		Where("operation_id = ? AND status = ?", op.ID, model.BulkItemSucceeded).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read bulk operation items: %w", err)
	}
	succeeded := make(map[string]*model.BulkOperationItemModel, len(items))
	for _, item := range items {
		succeeded[item.ParticipantID] = item
	}

	result := &RestoreResult{}
	for _, state := range states {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item, ok := succeeded[state.ParticipantID]
		if !ok {
			continue
		}

		res := r.db.WithContext(ctx).Model(&model.ParticipantModel{}).
			Where("id = ? AND tenant_id = ? AND current_step_id = ? AND status = ?",
				state.ParticipantID, op.TenantID, item.NewStepID, item.NewStatus).
			Updates(map[string]interface{}{
				"snapshot_id":     state.SnapshotID,
				"current_step_id": state.CurrentStepID,
				"status":          state.Status,
				"version":         gorm.Expr("version + 1"),
				"updated_at":      time.Now(),
			})
		if res.Error != nil || res.RowsAffected == 0 {
			result.FailedCount++
			result.FailedIDs = append(result.FailedIDs, state.ParticipantID)
			continue
		}
		result.RestoredCount++
	}

	now := time.Now()
	err = r.db.WithContext(ctx).Model(&model.BulkOperationModel{}).
		Where("id = ?", op.ID).
		Updates(map[string]interface{}{
			"status":      model.BulkStatusRestored,
			"restored_at": now,
			"updated_at":  now,
		}).Error
	if err != nil {
		return result, err
	}
	op.Status = model.BulkStatusRestored
	op.RestoredAt = &now
	return result, nil
}
