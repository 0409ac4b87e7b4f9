package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mautops/event-workflow/internal/model"
	"gorm.io/gorm"
)

// ErrVersionConflict 条件更新未命中(版本号已变化或记录不存在)
var ErrVersionConflict = errors.New("participant version conflict")

// ParticipantRepository 参与者仓储接口
type ParticipantRepository interface {
	Save(ctx context.Context, participant *model.ParticipantModel) error
	FindByID(ctx context.Context, tenantID string, id string) (*model.ParticipantModel, error)
	FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.ParticipantModel, error)
	FindByFilter(ctx context.Context, filter *ParticipantFilter) ([]*model.ParticipantModel, error)
	FilterExistingIDs(ctx context.Context, tenantID string, eventID string, ids []string) ([]string, error)
	UpdateWorkflowState(ctx context.Context, id string, expectedVersion int, update *WorkflowStateUpdate) error
}

// ParticipantFilter 参与者查询过滤器
type ParticipantFilter struct {
	TenantID string
	EventID  string
	Statuses []string
	StepIDs  []string
}

// WorkflowStateUpdate 工作流状态更新内容
type WorkflowStateUpdate struct {
	SnapshotID    *string // 为 nil 时不修改
	CurrentStepID string
	Status        string
}

// participantRepository 参与者仓储实现
type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository 创建参与者仓储
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

// Save 保存参与者
func (r *participantRepository) Save(ctx context.Context, participant *model.ParticipantModel) error {
	if err := participant.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(participant).Error
}

// FindByID 根据 ID 查找参与者,已软删除或其他租户的记录视为不存在
func (r *participantRepository) FindByID(ctx context.Context, tenantID string, id string) (*model.ParticipantModel, error) {
	var participant model.ParticipantModel
	if err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&participant).Error; err != nil {
		return nil, err
	}
	return &participant, nil
}

// FindByIDs 一次读取多个参与者
func (r *participantRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.ParticipantModel, error) {
	var participants []*model.ParticipantModel
	if len(ids) == 0 {
		return participants, nil
	}
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&participants).Error
	return participants, err
}

// FindByFilter 根据过滤器查找参与者
func (r *participantRepository) FindByFilter(ctx context.Context, filter *ParticipantFilter) ([]*model.ParticipantModel, error) {
	var participants []*model.ParticipantModel
	query := r.db.WithContext(ctx).Model(&model.ParticipantModel{})

	if filter != nil {
		if filter.TenantID != "" {
			query = query.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.EventID != "" {
			query = query.Where("event_id = ?", filter.EventID)
		}
		if len(filter.Statuses) > 0 {
			query = query.Where("status IN ?", filter.Statuses)
		}
		if len(filter.StepIDs) > 0 {
			query = query.Where("current_step_id IN ?", filter.StepIDs)
		}
	}

	err := query.Order("created_at ASC").Find(&participants).Error
	return participants, err
}

// FilterExistingIDs 返回属于该活动与租户且未删除的 ID,保持输入顺序并去重
func (r *participantRepository) FilterExistingIDs(ctx context.Context, tenantID string, eventID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	var found []string
	err := r.db.WithContext(ctx).Model(&model.ParticipantModel{}).
		Where("tenant_id = ? AND event_id = ? AND id IN ?", tenantID, eventID, ids).
		Pluck("id", &found).Error
	if err != nil {
		return nil, err
	}

	exists := make(map[string]bool, len(found))
	for _, id := range found {
		exists[id] = true
	}
	result := make([]string, 0, len(found))
	for _, id := range ids {
		if exists[id] {
			result = append(result, id)
			delete(exists, id)
		}
	}
	return result, nil
}

// UpdateWorkflowState 按版本号条件更新工作流状态
// 版本号不匹配时返回 ErrVersionConflict,成功后版本号加一
func (r *participantRepository) UpdateWorkflowState(ctx context.Context, id string, expectedVersion int, update *WorkflowStateUpdate) error {
	values := map[string]interface{}{
		"current_step_id": update.CurrentStepID,
		"status":          update.Status,
		"version":         gorm.Expr("version + 1"),
		"updated_at":      time.Now(),
	}
	if update.SnapshotID != nil {
		values["snapshot_id"] = *update.SnapshotID
	}

	result := r.db.WithContext(ctx).Model(&model.ParticipantModel{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}
