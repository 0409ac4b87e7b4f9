package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/event-workflow/internal/model"
	"github.com/mautops/event-workflow/internal/workflow"
	"gorm.io/gorm"
)

// SnapshotRepository 工作流快照仓储接口
type SnapshotRepository interface {
	Capture(ctx context.Context, tenantID string, workflowID string) (*workflow.Snapshot, error)
	FindByID(ctx context.Context, id string) (*workflow.Snapshot, error)
}

// snapshotRepository 工作流快照仓储实现
// 快照不可变,解码结果按 ID 缓存
type snapshotRepository struct {
	db        *gorm.DB
	workflows WorkflowRepository
	cache     sync.Map
}

// NewSnapshotRepository 创建工作流快照仓储
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db, workflows: NewWorkflowRepository(db)}
}

// Capture 为工作流最新版本获取快照,同一版本只保存一份
func (r *snapshotRepository) Capture(ctx context.Context, tenantID string, workflowID string) (*workflow.Snapshot, error) {
	wf, err := r.workflows.GetLatest(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}

	existing, err := r.findByVersion(ctx, workflowID, wf.Version)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record := &model.WorkflowSnapshotModel{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		WorkflowID:      workflowID,
		WorkflowVersion: wf.Version,
		Steps:           wf.Steps,
		CreatedAt:       time.Now(),
	}
	snap, err := decodeSteps(record.ID, workflowID, wf.Version, record.Steps)
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		// 并发捕获同一版本时唯一索引冲突,读取已存在的快照
		if existing, findErr := r.findByVersion(ctx, workflowID, wf.Version); findErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to save workflow snapshot: %w", err)
	}

	r.cache.Store(snap.ID, snap)
	return snap, nil
}

// FindByID 根据 ID 获取快照
func (r *snapshotRepository) FindByID(ctx context.Context, id string) (*workflow.Snapshot, error) {
	if cached, ok := r.cache.Load(id); ok {
		return cached.(*workflow.Snapshot), nil
	}

	var record model.WorkflowSnapshotModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return r.decode(&record)
}

func (r *snapshotRepository) findByVersion(ctx context.Context, workflowID string, version int) (*workflow.Snapshot, error) {
	var record model.WorkflowSnapshotModel
	err := r.db.WithContext(ctx).
		Where("workflow_id = ? AND workflow_version = ?", workflowID, version).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	if cached, ok := r.cache.Load(record.ID); ok {
		return cached.(*workflow.Snapshot), nil
	}
	return r.decode(&record)
}

func (r *snapshotRepository) decode(record *model.WorkflowSnapshotModel) (*workflow.Snapshot, error) {
	snap, err := decodeSteps(record.ID, record.WorkflowID, record.WorkflowVersion, record.Steps)
	if err != nil {
		return nil, err
	}
	actual, _ := r.cache.LoadOrStore(snap.ID, snap)
	return actual.(*workflow.Snapshot), nil
}
