package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mautops/event-workflow/internal/model"
	"github.com/mautops/event-workflow/internal/workflow"
	"gorm.io/gorm"
)

// WorkflowRepository 工作流定义仓储接口
type WorkflowRepository interface {
	Create(ctx context.Context, wf *model.WorkflowModel) error
	Get(ctx context.Context, tenantID string, id string, version int) (*model.WorkflowModel, error)
	GetLatest(ctx context.Context, tenantID string, id string) (*model.WorkflowModel, error)
	Update(ctx context.Context, wf *model.WorkflowModel) error
	ListVersions(ctx context.Context, tenantID string, id string) ([]int, error)
}

// workflowRepository 工作流定义仓储实现
type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository 创建工作流定义仓储
func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

// Create 创建工作流定义,版本号固定从 1 开始
func (r *workflowRepository) Create(ctx context.Context, wf *model.WorkflowModel) error {
	if err := validateWorkflow(wf); err != nil {
		return err
	}
	wf.Version = 1
	return r.db.WithContext(ctx).Create(wf).Error
}

// Get 获取指定版本,version 为 0 时返回最新版本
func (r *workflowRepository) Get(ctx context.Context, tenantID string, id string, version int) (*model.WorkflowModel, error) {
	if version == 0 {
		return r.GetLatest(ctx, tenantID, id)
	}
	var wf model.WorkflowModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND version = ?", id, tenantID, version).
		First(&wf).Error
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// GetLatest 获取最新版本
func (r *workflowRepository) GetLatest(ctx context.Context, tenantID string, id string) (*model.WorkflowModel, error) {
	var wf model.WorkflowModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Order("version DESC").
		First(&wf).Error
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// Update 更新工作流定义,每次更新写入一个新版本,旧版本保持不变
func (r *workflowRepository) Update(ctx context.Context, wf *model.WorkflowModel) error {
	if err := validateWorkflow(wf); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest model.WorkflowModel
		if err := tx.Where("id = ? AND tenant_id = ?", wf.ID, wf.TenantID).
			Order("version DESC").
			First(&latest).Error; err != nil {
			return err
		}

		wf.Version = latest.Version + 1
		wf.CreatedAt = latest.CreatedAt
		wf.CreatedBy = latest.CreatedBy
		wf.UpdatedAt = time.Now()
		return tx.Create(wf).Error
	})
}

// ListVersions 列出所有版本号,升序
func (r *workflowRepository) ListVersions(ctx context.Context, tenantID string, id string) ([]int, error) {
	var versions []int
	err := r.db.WithContext(ctx).Model(&model.WorkflowModel{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Order("version ASC").
		Pluck("version", &versions).Error
	return versions, err
}

// validateWorkflow 校验模型字段与步骤图结构
func validateWorkflow(wf *model.WorkflowModel) error {
	if err := wf.Validate(); err != nil {
		return err
	}
	if _, err := decodeSteps(wf.ID, wf.ID, wf.Version, wf.Steps); err != nil {
		return err
	}
	return nil
}

// decodeSteps 反序列化步骤并构造快照
func decodeSteps(snapshotID, workflowID string, version int, raw []byte) (*workflow.Snapshot, error) {
	var steps []workflow.Step
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("failed to decode workflow steps: %w", err)
	}
	return workflow.NewSnapshot(snapshotID, workflowID, version, steps)
}
