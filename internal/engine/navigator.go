package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/event-workflow/internal/metrics"
	"github.com/mautops/event-workflow/internal/model"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/service"
	"github.com/mautops/event-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Navigator 导航引擎接口
type Navigator interface {
	ProcessWorkflowAction(ctx context.Context, req *ActionRequest) (*TransitionResult, error)
	ApplyWorkflowAction(ctx context.Context, p *workflow.Participant, req *ActionRequest) (*TransitionResult, error)
	EnterWorkflow(ctx context.Context, req *EnterRequest) (*TransitionResult, error)
}

// ActionRequest 工作流动作请求
type ActionRequest struct {
	TenantID      string
	ParticipantID string
	Actor         workflow.Actor
	Action        workflow.Action
	Remarks       string
	TargetStepID  string // 非空时覆盖按动作解析的目标步骤
	SkipAutoChain bool   // 为 true 时落地后不触发自动动作链
	IsEmergency   bool
}

// EnterRequest 进入工作流请求
type EnterRequest struct {
	TenantID      string
	ParticipantID string
	WorkflowID    string
	Actor         workflow.Actor
	IsEmergency   bool
}

// TransitionResult 转换结果
type TransitionResult struct {
	ParticipantID  string          `json:"participantId"`
	PreviousStepID string          `json:"previousStepId"`
	NextStepID     string          `json:"nextStepId"`
	Status         workflow.Status `json:"status"`
	IsComplete     bool            `json:"isComplete"`
	SkippedSteps   []string        `json:"skippedSteps,omitempty"`
	ApprovalID     string          `json:"approvalId,omitempty"`
	Chain          *ChainResult    `json:"chain,omitempty"`
	ChainError     string          `json:"chainError,omitempty"`
}

// navigator 导航引擎实现
type navigator struct {
	db        *gorm.DB
	loader    *ParticipantLoader
	snapshots repository.SnapshotRepository
	audit     service.AuditLogService
	logger    logrus.FieldLogger
	chain     *chainExecutor
}

// ProcessWorkflowAction 加载参与者并执行动作
func (n *navigator) ProcessWorkflowAction(ctx context.Context, req *ActionRequest) (*TransitionResult, error) {
	p, err := n.loader.Load(ctx, req.TenantID, req.ParticipantID)
	if err != nil {
		metrics.RecordTransition(string(req.Action), string(req.Actor.Kind), resultLabel(err))
		return nil, err
	}
	return n.ApplyWorkflowAction(ctx, p, req)
}

// ApplyWorkflowAction 对已加载的参与者执行动作
// 参与者更新以读取时的版本号为条件,与审批记录在同一事务中写入
func (n *navigator) ApplyWorkflowAction(ctx context.Context, p *workflow.Participant, req *ActionRequest) (*TransitionResult, error) {
	log := n.logger.WithFields(logrus.Fields{
		"tenant_id":      p.TenantID,
		"participant_id": p.ID,
		"action":         req.Action,
		"actor":          req.Actor.Kind,
	})

	// 1. 解析目标步骤
	res, err := workflow.ResolveTarget(p, req.Action, req.TargetStepID)
	if err != nil {
		metrics.RecordTransition(string(req.Action), string(req.Actor.Kind), resultLabel(err))
		return nil, err
	}

	// 2. 持久化状态与审批记录
	approval := &model.ApprovalModel{
		ID:            uuid.New().String(),
		TenantID:      p.TenantID,
		ParticipantID: p.ID,
		StepID:        res.From.ID,
		Action:        string(req.Action),
		Remarks:       req.Remarks,
		UserID:        req.Actor.UserID(),
		ActorKind:     string(req.Actor.Kind),
		CreatedAt:     time.Now(),
	}
	err = n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := repository.NewParticipantRepository(tx).UpdateWorkflowState(ctx, p.ID, p.Version, &repository.WorkflowStateUpdate{
			CurrentStepID: res.To.ID,
			Status:        string(res.Status),
		})
		if err != nil {
			return err
		}
		return repository.NewApprovalRepository(tx).Save(ctx, approval)
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			err = workflow.Conflictf(err, "Participant was modified concurrently")
		} else {
			err = fmt.Errorf("failed to persist transition: %w", err)
		}
		metrics.RecordTransition(string(req.Action), string(req.Actor.Kind), resultLabel(err))
		log.WithError(err).Warn("workflow transition not persisted")
		return nil, err
	}

	p.CurrentStepID = res.To.ID
	p.Status = res.Status
	p.Version++
	metrics.RecordTransition(string(req.Action), string(req.Actor.Kind), resultLabel(nil))

	result := &TransitionResult{
		ParticipantID:  p.ID,
		PreviousStepID: res.From.ID,
		NextStepID:     res.To.ID,
		Status:         res.Status,
		IsComplete:     res.IsComplete,
		SkippedSteps:   res.Skipped,
		ApprovalID:     approval.ID,
	}
	log.WithFields(logrus.Fields{
		"from_step": result.PreviousStepID,
		"to_step":   result.NextStepID,
		"status":    result.Status,
	}).Info("workflow transition applied")

	// 3. 自动动作由链执行器单独审计
	if !req.Actor.IsSystem() {
		_ = n.audit.RecordAction(ctx, p.TenantID, req.Actor.UserID(), service.AuditWorkflowAction, service.ResourceParticipant, p.ID, map[string]interface{}{
			"action":     req.Action,
			"fromStepId": result.PreviousStepID,
			"toStepId":   result.NextStepID,
			"status":     result.Status,
			"remarks":    req.Remarks,
		})
	}

	// 4. 落地步骤上的自动动作
	if !req.SkipAutoChain && !res.IsComplete && req.Action != workflow.ActionPrint {
		n.runChain(ctx, p, result.NextStepID, req.IsEmergency, result, log)
	}

	return result, nil
}

// EnterWorkflow 捕获工作流快照并将参与者放到入口步骤
func (n *navigator) EnterWorkflow(ctx context.Context, req *EnterRequest) (*TransitionResult, error) {
	log := n.logger.WithFields(logrus.Fields{
		"tenant_id":      req.TenantID,
		"participant_id": req.ParticipantID,
		"workflow_id":    req.WorkflowID,
	})

	m, err := repository.NewParticipantRepository(n.db).FindByID(ctx, req.TenantID, req.ParticipantID)
	if err != nil {
		return nil, notFoundOr(err, MsgParticipantNotFound)
	}
	if m.SnapshotID != nil {
		return nil, workflow.InvalidStatef("Participant has already entered a workflow")
	}
	p, err := toParticipant(m)
	if err != nil {
		return nil, err
	}

	snap, err := n.snapshots.Capture(ctx, req.TenantID, req.WorkflowID)
	if err != nil {
		return nil, notFoundOr(err, "Workflow not found")
	}
	entry, ok := snap.EntryStep()
	if !ok {
		return nil, workflow.InvalidStatef("Workflow has no entry step")
	}

	status := workflow.StatusInProgress
	err = repository.NewParticipantRepository(n.db).UpdateWorkflowState(ctx, p.ID, p.Version, &repository.WorkflowStateUpdate{
		SnapshotID:    &snap.ID,
		CurrentStepID: entry.ID,
		Status:        string(status),
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, workflow.Conflictf(err, "Participant was modified concurrently")
		}
		return nil, fmt.Errorf("failed to enter workflow: %w", err)
	}

	p.Snapshot = snap
	p.CurrentStepID = entry.ID
	p.Status = status
	p.Version++

	result := &TransitionResult{
		ParticipantID: p.ID,
		NextStepID:    entry.ID,
		Status:        status,
		IsComplete:    entry.IsFinalStep,
	}
	log.WithFields(logrus.Fields{"snapshot_id": snap.ID, "entry_step": entry.ID}).Info("participant entered workflow")

	_ = n.audit.RecordAction(ctx, p.TenantID, req.Actor.UserID(), service.AuditWorkflowEnter, service.ResourceParticipant, p.ID, map[string]interface{}{
		"workflowId":      req.WorkflowID,
		"workflowVersion": snap.Version,
		"snapshotId":      snap.ID,
		"entryStepId":     entry.ID,
	})

	if !result.IsComplete {
		n.runChain(ctx, p, entry.ID, req.IsEmergency, result, log)
	}
	return result, nil
}

// runChain 执行自动动作链并将最终位置合并到结果中,链失败只记录日志
func (n *navigator) runChain(ctx context.Context, p *workflow.Participant, stepID string, isEmergency bool, result *TransitionResult, log logrus.FieldLogger) {
	chain, exhausted, err := n.chain.execute(ctx, &ChainRequest{
		TenantID:       p.TenantID,
		ParticipantID:  p.ID,
		StartingStepID: stepID,
		Vars:           p.Vars(),
		IsEmergency:    isEmergency,
	})
	if err != nil {
		log.WithError(err).Warn("auto-action chain failed")
		result.ChainError = err.Error()
	}

	if chain != nil && len(chain.ActionsExecuted) > 0 {
		result.Chain = chain
		last := chain.ActionsExecuted[len(chain.ActionsExecuted)-1]
		result.NextStepID = last.ToStepID
		result.Status = last.Status
		result.IsComplete = chain.IsComplete
		return
	}

	// 链耗尽时已执行的自动动作仍然生效,重新读取参与者的实际位置
	if exhausted {
		current, loadErr := n.loader.Load(ctx, p.TenantID, p.ID)
		if loadErr != nil {
			log.WithError(loadErr).Warn("failed to reload participant after exhausted chain")
			return
		}
		result.NextStepID = current.CurrentStepID
		result.Status = current.Status
		result.IsComplete = false
	}
}
