package repository

import (
	"context"
	"encoding/json"

	"github.com/mautops/event-workflow/internal/condition"
	"gorm.io/gorm"
)

// AudienceFilter 受众过滤条件
type AudienceFilter struct {
	Statuses  []string              `json:"statuses,omitempty"`
	StepIDs   []string              `json:"stepIds,omitempty"`
	Condition *condition.Expression `json:"condition,omitempty"` // 基于 extras 求值
}

// ParticipantContact 受众中的参与者
type ParticipantContact struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// AudienceRepository 受众解析仓储接口
type AudienceRepository interface {
	ResolveAudience(ctx context.Context, tenantID string, eventID string, filter *AudienceFilter) ([]ParticipantContact, error)
}

// audienceRepository 受众解析仓储实现
type audienceRepository struct {
	participants ParticipantRepository
}

// NewAudienceRepository 创建受众解析仓储
func NewAudienceRepository(db *gorm.DB) AudienceRepository {
	return &audienceRepository{participants: NewParticipantRepository(db)}
}

// ResolveAudience 解析活动下符合条件的参与者
// 状态与步骤在数据库中过滤,条件表达式在内存中对 extras 求值
func (r *audienceRepository) ResolveAudience(ctx context.Context, tenantID string, eventID string, filter *AudienceFilter) ([]ParticipantContact, error) {
	query := &ParticipantFilter{TenantID: tenantID, EventID: eventID}
	var expr *condition.Expression
	if filter != nil {
		query.Statuses = filter.Statuses
		query.StepIDs = filter.StepIDs
		expr = filter.Condition
	}

	participants, err := r.participants.FindByFilter(ctx, query)
	if err != nil {
		return nil, err
	}

	contacts := make([]ParticipantContact, 0, len(participants))
	for _, p := range participants {
		if expr != nil {
			vars := map[string]interface{}{}
			if len(p.Extras) > 0 {
				if err := json.Unmarshal(p.Extras, &vars); err != nil {
					continue
				}
			}
			if !condition.Evaluate(*expr, vars) {
				continue
			}
		}
		contacts = append(contacts, ParticipantContact{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
		})
	}
	return contacts, nil
}
