package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/event-workflow/internal/engine"
	"github.com/mautops/event-workflow/internal/featureflags"
	"github.com/mautops/event-workflow/internal/metrics"
	"github.com/mautops/event-workflow/internal/model"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/service"
	"github.com/mautops/event-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExecutorDependencies 批量执行器依赖
type ExecutorDependencies struct {
	Participants repository.ParticipantRepository
	Snapshots    repository.SnapshotRepository
	Operations   repository.BulkOperationRepository
	Audience     AudienceResolver
	Navigator    engine.Navigator
	Flags        featureflags.Checker
	Audit        service.AuditLogService
	Logger       logrus.FieldLogger
	ChunkSize    int
}

// Executor 批量动作执行器
type Executor struct {
	loader     *engine.ParticipantLoader
	navigator  engine.Navigator
	operations repository.BulkOperationRepository
	selector   *Selector
	validator  *EligibilityValidator
	flags      featureflags.Checker
	audit      service.AuditLogService
	logger     logrus.FieldLogger
	chunkSize  int
}

// NewExecutor 创建批量动作执行器
func NewExecutor(deps ExecutorDependencies) *Executor {
	if deps.ChunkSize <= 0 {
		deps.ChunkSize = DefaultChunkSize
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	loader := engine.NewParticipantLoader(deps.Participants, deps.Snapshots)
	return &Executor{
		loader:     loader,
		navigator:  deps.Navigator,
		operations: deps.Operations,
		selector:   NewSelector(deps.Participants, deps.Audience),
		validator:  NewEligibilityValidator(loader, deps.ChunkSize),
		flags:      deps.Flags,
		audit:      deps.Audit,
		logger:     deps.Logger,
		chunkSize:  deps.ChunkSize,
	}
}

// Validator 返回资格校验器
func (e *Executor) Validator() *EligibilityValidator {
	return e.validator
}

// Selector 返回目标选择器
func (e *Executor) Selector() *Selector {
	return e.selector
}

// previousState 明细中记录的执行前状态
type previousState struct {
	StepID string `json:"stepId"`
	Status string `json:"status"`
}

// ExecuteBatchAction 批量执行动作
// 准备阶段(开关、创建操作、撤销快照)的错误直接返回;单个参与者的失败记录在明细中
func (e *Executor) ExecuteBatchAction(ctx context.Context, req *Request) (*Result, error) {
	// 1. 校验请求与功能开关
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !e.flags.IsEnabled(featureflags.BulkOperations, req.TenantID) {
		return nil, workflow.FeatureDisabledf("Bulk operations are not enabled for this tenant")
	}

	ids, err := e.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, workflow.Validationf("no participants selected")
	}

	log := e.logger.WithFields(logrus.Fields{
		"tenant_id": req.TenantID,
		"event_id":  req.EventID,
		"action":    req.Action,
		"total":     len(ids),
	})

	// 2. 创建批量操作
	op := &model.BulkOperationModel{
		ID:         uuid.New().String(),
		TenantID:   req.TenantID,
		EventID:    req.EventID,
		Type:       OperationTypeWorkflowAction,
		Action:     string(req.Action),
		Status:     model.BulkStatusValidating,
		CreatedBy:  req.Actor.UserID(),
		TotalCount: len(ids),
	}
	if err := e.operations.Create(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to create bulk operation: %w", err)
	}
	log = log.WithField("operation_id", op.ID)

	_ = e.audit.RecordAction(ctx, req.TenantID, req.Actor.UserID(), service.AuditBulkOperationCreate, service.ResourceBulkOperation, op.ID, map[string]interface{}{
		"eventId":    req.EventID,
		"action":     req.Action,
		"totalCount": len(ids),
		"remarks":    req.Remarks,
	})

	if err := e.operations.UpdateStatus(ctx, op.ID, model.BulkStatusProcessing); err != nil {
		return nil, e.abort(ctx, op, fmt.Errorf("failed to start bulk operation: %w", err), log)
	}

	// 3. 撤销快照
	if err := e.operations.CaptureSnapshot(ctx, op, ids); err != nil {
		return nil, e.abort(ctx, op, fmt.Errorf("failed to capture undo snapshot: %w", err), log)
	}

	// 4. 分块顺序处理
	result := &Result{OperationID: op.ID, TotalCount: len(ids), Items: make([]ItemResult, 0, len(ids))}
	chunks := chunkIDs(ids, e.chunkSize)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			// 只能在分块之间中止,剩余参与者记为失败
			log.WithError(err).WithField("chunk", i).Warn("bulk operation cancelled between chunks")
			for _, rest := range chunks[i:] {
				items := make([]*model.BulkOperationItemModel, 0, len(rest))
				for _, id := range rest {
					items = append(items, e.itemModel(op.ID, ItemResult{ParticipantID: id, Status: model.BulkItemFailed, Error: err.Error()}, nil))
					result.Items = append(result.Items, ItemResult{ParticipantID: id, Status: model.BulkItemFailed, Error: err.Error()})
					result.FailureCount++
				}
				e.saveItems(context.WithoutCancel(ctx), items, log)
			}
			break
		}

		items := e.processChunk(ctx, req, op.ID, chunk, result)
		e.saveItems(ctx, items, log)
	}

	// 5. 部分成功仍为 COMPLETED,全部失败为 FAILED
	result.Status = model.BulkStatusCompleted
	if result.SuccessCount == 0 {
		result.Status = model.BulkStatusFailed
	}
	if err := e.operations.Finalize(context.WithoutCancel(ctx), op.ID, result.Status, result.SuccessCount, result.FailureCount); err != nil {
		return result, fmt.Errorf("failed to finalize bulk operation: %w", err)
	}

	metrics.RecordBulkOperation(string(req.Action), result.Status, result.SuccessCount, result.FailureCount)
	log.WithFields(logrus.Fields{
		"status":  result.Status,
		"success": result.SuccessCount,
		"failure": result.FailureCount,
	}).Info("bulk operation finished")

	return result, nil
}

// processChunk 一次读取分块内的参与者,逐个执行动作,失败互不影响
func (e *Executor) processChunk(ctx context.Context, req *Request, operationID string, chunk []string, result *Result) []*model.BulkOperationItemModel {
	items := make([]*model.BulkOperationItemModel, 0, len(chunk))
	record := func(item ItemResult, prev *previousState) {
		if item.Status == model.BulkItemSucceeded {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
		result.Items = append(result.Items, item)
		items = append(items, e.itemModel(operationID, item, prev))
	}

	byID, err := e.loader.LoadMany(ctx, req.TenantID, chunk)
	if err != nil {
		for _, id := range chunk {
			record(ItemResult{ParticipantID: id, Status: model.BulkItemFailed, Error: err.Error()}, nil)
		}
		return items
	}

	for _, id := range chunk {
		m, ok := byID[id]
		if !ok || m.EventID != req.EventID {
			record(ItemResult{ParticipantID: id, Status: model.BulkItemFailed, Error: engine.MsgParticipantNotFound}, nil)
			continue
		}
		p, err := e.loader.Hydrate(ctx, m)
		if err != nil {
			record(ItemResult{ParticipantID: id, Status: model.BulkItemFailed, Error: err.Error()}, nil)
			continue
		}

		prev := &previousState{StepID: p.CurrentStepID, Status: string(p.Status)}
		transition, err := e.navigator.ApplyWorkflowAction(ctx, p, &engine.ActionRequest{
			TenantID:      req.TenantID,
			ParticipantID: id,
			Actor:         req.Actor,
			Action:        req.Action,
			Remarks:       req.Remarks,
			IsEmergency:   req.IsEmergency,
		})
		if err != nil {
			record(ItemResult{ParticipantID: id, Status: model.BulkItemFailed, Error: err.Error()}, prev)
			continue
		}
		record(ItemResult{ParticipantID: id, Status: model.BulkItemSucceeded, NewStepID: transition.NextStepID, NewStatus: string(transition.Status)}, prev)
	}
	return items
}

func (e *Executor) itemModel(operationID string, item ItemResult, prev *previousState) *model.BulkOperationItemModel {
	m := &model.BulkOperationItemModel{
		ID:            uuid.New().String(),
		OperationID:   operationID,
		ParticipantID: item.ParticipantID,
		Status:        item.Status,
		Error:         item.Error,
		NewStepID:     item.NewStepID,
		NewStatus:     item.NewStatus,
		CreatedAt:     time.Now(),
	}
	if prev != nil {
		if data, err := json.Marshal(prev); err == nil {
			m.PreviousState = datatypes.JSON(data)
		}
	}
	return m
}

func (e *Executor) saveItems(ctx context.Context, items []*model.BulkOperationItemModel, log logrus.FieldLogger) {
	if err := e.operations.SaveItems(ctx, items); err != nil {
		log.WithError(err).Error("failed to save bulk operation items")
	}
}

// abort 准备阶段失败时将操作标记为 FAILED
func (e *Executor) abort(ctx context.Context, op *model.BulkOperationModel, err error, log logrus.FieldLogger) error {
	log.WithError(err).Error("bulk operation aborted before processing")
	if finalizeErr := e.operations.Finalize(context.WithoutCancel(ctx), op.ID, model.BulkStatusFailed, 0, 0); finalizeErr != nil {
		log.WithError(finalizeErr).Error("failed to mark bulk operation as failed")
	}
	metrics.RecordBulkOperation(op.Action, model.BulkStatusFailed, 0, 0)
	return err
}

// resolveTargets 确定批量操作的目标参与者
func (e *Executor) resolveTargets(ctx context.Context, req *Request) ([]string, error) {
	if req.Filter != nil {
		return e.selector.SelectByFilter(ctx, req.EventID, req.TenantID, req.Filter)
	}
	if req.DropUnknown {
		return e.selector.SelectByIDs(ctx, req.ParticipantIDs, req.EventID, req.TenantID)
	}
	return dedupe(req.ParticipantIDs), nil
}

// DryRunBatchAction 只做资格校验,不创建批量操作也不修改参与者
func (e *Executor) DryRunBatchAction(ctx context.Context, req *Request) (*DryRunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ids, err := e.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	eligibility, err := e.validator.validate(ctx, ids, req.Action, req.TenantID, req.EventID)
	if err != nil {
		return nil, err
	}
	return &DryRunResult{
		Action:          req.Action,
		TotalCount:      len(ids),
		EligibleCount:   len(eligibility.Eligible),
		IneligibleCount: len(eligibility.Ineligible),
		Eligible:        eligibility.Eligible,
		Ineligible:      eligibility.Ineligible,
	}, nil
}

// RestoreBatchAction 将已结束的批量操作涉及的参与者恢复到执行前状态
func (e *Executor) RestoreBatchAction(ctx context.Context, tenantID string, operationID string, actor workflow.Actor) (*repository.RestoreResult, error) {
	if !e.flags.IsEnabled(featureflags.BulkOperations, tenantID) {
		return nil, workflow.FeatureDisabledf("Bulk operations are not enabled for this tenant")
	}

	op, err := e.operations.FindByID(ctx, tenantID, operationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.NotFoundf("Bulk operation not found")
		}
		return nil, fmt.Errorf("failed to load bulk operation: %w", err)
	}
	if !op.IsFinal() {
		return nil, workflow.InvalidStatef("Bulk operation in status %s cannot be restored", op.Status)
	}

	restored, err := e.operations.RestoreFromSnapshot(ctx, op)
	if err != nil {
		if errors.Is(err, repository.ErrNothingToRestore) {
			return nil, workflow.InvalidStatef("Bulk operation has no undo snapshot")
		}
		return nil, fmt.Errorf("failed to restore bulk operation: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"operation_id": operationID,
		"restored":     restored.RestoredCount,
		"failed":       restored.FailedCount,
	}).Info("bulk operation restored")

	_ = e.audit.RecordAction(ctx, tenantID, actor.UserID(), service.AuditBulkOperationRestore, service.ResourceBulkOperation, operationID, restored)
	return restored, nil
}

// GetOperation 获取批量操作及明细
func (e *Executor) GetOperation(ctx context.Context, tenantID string, operationID string) (*OperationDetails, error) {
	op, err := e.operations.FindByID(ctx, tenantID, operationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.NotFoundf("Bulk operation not found")
		}
		return nil, fmt.Errorf("failed to load bulk operation: %w", err)
	}
	items, err := e.operations.FindItems(ctx, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bulk operation items: %w", err)
	}
	return &OperationDetails{Operation: op, Items: items}, nil
}
