package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mautops/event-workflow/internal/model"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/workflow"
)

// MsgParticipantNotFound 参与者不存在、已删除或不属于租户
const MsgParticipantNotFound = "Participant not found"

// ParticipantLoader 读取参与者并绑定其工作流快照
type ParticipantLoader struct {
	participants repository.ParticipantRepository
	snapshots    repository.SnapshotRepository
}

// NewParticipantLoader 创建参与者加载器
func NewParticipantLoader(participants repository.ParticipantRepository, snapshots repository.SnapshotRepository) *ParticipantLoader {
	return &ParticipantLoader{participants: participants, snapshots: snapshots}
}

// Load 读取单个参与者,已软删除或其他租户的参与者返回 NotFound
func (l *ParticipantLoader) Load(ctx context.Context, tenantID string, id string) (*workflow.Participant, error) {
	m, err := l.participants.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOr(err, MsgParticipantNotFound)
	}
	return l.Hydrate(ctx, m)
}

// LoadMany 一次读取多个参与者,不存在的 ID 不出现在结果中
func (l *ParticipantLoader) LoadMany(ctx context.Context, tenantID string, ids []string) (map[string]*model.ParticipantModel, error) {
	models, err := l.participants.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	byID := make(map[string]*model.ParticipantModel, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	return byID, nil
}

// Hydrate 将持久化模型转换为工作流投影
func (l *ParticipantLoader) Hydrate(ctx context.Context, m *model.ParticipantModel) (*workflow.Participant, error) {
	p, err := toParticipant(m)
	if err != nil {
		return nil, err
	}
	if m.SnapshotID == nil {
		return nil, workflow.NotFoundf("Workflow snapshot not found for participant")
	}

	snap, err := l.snapshots.FindByID(ctx, *m.SnapshotID)
	if err != nil {
		return nil, notFoundOr(err, "Workflow snapshot not found for participant")
	}
	p.Snapshot = snap
	return p, nil
}

func toParticipant(m *model.ParticipantModel) (*workflow.Participant, error) {
	extras := map[string]interface{}{}
	if len(m.Extras) > 0 {
		if err := json.Unmarshal(m.Extras, &extras); err != nil {
			return nil, fmt.Errorf("failed to decode participant extras: %w", err)
		}
	}

	p := &workflow.Participant{
		ID:       m.ID,
		TenantID: m.TenantID,
		EventID:  m.EventID,
		Status:   workflow.Status(m.Status),
		Extras:   extras,
		Version:  m.Version,
	}
	if m.CurrentStepID != nil {
		p.CurrentStepID = *m.CurrentStepID
	}
	return p, nil
}
