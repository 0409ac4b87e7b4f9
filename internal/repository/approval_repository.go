package repository

import (
	"context"

	"github.com/mautops/event-workflow/internal/model"
	"gorm.io/gorm"
)

// ApprovalRepository 审批记录仓储接口
type ApprovalRepository interface {
	Save(ctx context.Context, approval *model.ApprovalModel) error
	FindByParticipant(ctx context.Context, tenantID string, participantID string) ([]*model.ApprovalModel, error)
}

// approvalRepository 审批记录仓储实现
type approvalRepository struct {
	db *gorm.DB
}

// NewApprovalRepository 创建审批记录仓储
func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

// Save 追加审批记录
func (r *approvalRepository) Save(ctx context.Context, approval *model.ApprovalModel) error {
	if err := approval.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(approval).Error
}

// FindByParticipant 根据参与者查找审批记录
func (r *approvalRepository) FindByParticipant(ctx context.Context, tenantID string, participantID string) ([]*model.ApprovalModel, error) {
	var approvals []*model.ApprovalModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND participant_id = ?", tenantID, participantID).
		Order("created_at ASC").
		Find(&approvals).Error
	return approvals, err
}
