package batch

import (
	"context"
	"fmt"

	"github.com/mautops/event-workflow/internal/repository"
)

// AudienceResolver 受众解析接口
type AudienceResolver interface {
	ResolveAudience(ctx context.Context, tenantID string, eventID string, filter *repository.AudienceFilter) ([]repository.ParticipantContact, error)
}

// Selector 批量操作目标选择
type Selector struct {
	participants repository.ParticipantRepository
	audience     AudienceResolver
}

// NewSelector 创建目标选择器
func NewSelector(participants repository.ParticipantRepository, audience AudienceResolver) *Selector {
	return &Selector{participants: participants, audience: audience}
}

// SelectByIDs 过滤出属于活动与租户且未删除的 ID,其余静默丢弃
func (s *Selector) SelectByIDs(ctx context.Context, ids []string, eventID string, tenantID string) ([]string, error) {
	selected, err := s.participants.FilterExistingIDs(ctx, tenantID, eventID, dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to select participants: %w", err)
	}
	return selected, nil
}

// SelectByFilter 通过受众解析器选择参与者
func (s *Selector) SelectByFilter(ctx context.Context, eventID string, tenantID string, criteria *repository.AudienceFilter) ([]string, error) {
	contacts, err := s.audience.ResolveAudience(ctx, tenantID, eventID, criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audience: %w", err)
	}
	ids := make([]string, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
