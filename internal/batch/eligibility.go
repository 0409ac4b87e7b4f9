package batch

import (
	"context"

	"github.com/mautops/event-workflow/internal/engine"
	"github.com/mautops/event-workflow/internal/workflow"
)

// EligibilityValidator 批量资格校验,只读
type EligibilityValidator struct {
	loader    *engine.ParticipantLoader
	chunkSize int
}

// NewEligibilityValidator 创建资格校验器
func NewEligibilityValidator(loader *engine.ParticipantLoader, chunkSize int) *EligibilityValidator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &EligibilityValidator{loader: loader, chunkSize: chunkSize}
}

// ValidateBatchEligibility 用与导航相同的解析规则判断每个参与者能否执行动作
// 不合格原因与导航失败时的错误信息一致
func (v *EligibilityValidator) ValidateBatchEligibility(ctx context.Context, ids []string, action workflow.Action, tenantID string) (*EligibilityResult, error) {
	return v.validate(ctx, ids, action, tenantID, "")
}

// validate eventID 非空时,其他活动的参与者视为不存在
func (v *EligibilityValidator) validate(ctx context.Context, ids []string, action workflow.Action, tenantID string, eventID string) (*EligibilityResult, error) {
	result := &EligibilityResult{Eligible: []string{}, Ineligible: []Ineligible{}}

	for _, chunk := range chunkIDs(dedupe(ids), v.chunkSize) {
		byID, err := v.loader.LoadMany(ctx, tenantID, chunk)
		if err != nil {
			return nil, err
		}

		for _, id := range chunk {
			m, ok := byID[id]
			if !ok || (eventID != "" && m.EventID != eventID) {
				result.Ineligible = append(result.Ineligible, Ineligible{ID: id, Reason: engine.MsgParticipantNotFound})
				continue
			}
			// 无法加载的参与者与批量执行一样按单项失败处理
			p, err := v.loader.Hydrate(ctx, m)
			if err != nil {
				result.Ineligible = append(result.Ineligible, Ineligible{ID: id, Reason: err.Error()})
				continue
			}
			if _, err := workflow.ResolveTarget(p, action, ""); err != nil {
				result.Ineligible = append(result.Ineligible, Ineligible{ID: id, Reason: err.Error()})
				continue
			}
			result.Eligible = append(result.Eligible, id)
		}
	}
	return result, nil
}
