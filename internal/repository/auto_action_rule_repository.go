package repository

import (
	"context"

	"github.com/mautops/event-workflow/internal/model"
	"gorm.io/gorm"
)

// AutoActionRuleRepository 自动动作规则仓储接口
type AutoActionRuleRepository interface {
	Save(ctx context.Context, rule *model.AutoActionRuleModel) error
	FindActiveByStep(ctx context.Context, stepID string) ([]*model.AutoActionRuleModel, error)
}

// autoActionRuleRepository 自动动作规则仓储实现
type autoActionRuleRepository struct {
	db *gorm.DB
}

// NewAutoActionRuleRepository 创建自动动作规则仓储
func NewAutoActionRuleRepository(db *gorm.DB) AutoActionRuleRepository {
	return &autoActionRuleRepository{db: db}
}

// Save 保存规则
func (r *autoActionRuleRepository) Save(ctx context.Context, rule *model.AutoActionRuleModel) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(rule).Error
}

// FindActiveByStep 查找步骤上启用的规则,按优先级升序
func (r *autoActionRuleRepository) FindActiveByStep(ctx context.Context, stepID string) ([]*model.AutoActionRuleModel, error) {
	var rules []*model.AutoActionRuleModel
	err := r.db.WithContext(ctx).
		Where("step_id = ? AND is_active = ?", stepID, true).
		Order("priority ASC").
		Order("id ASC").
		Find(&rules).Error
	return rules, err
}
