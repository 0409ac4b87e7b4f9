package batch_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/mautops/event-workflow/internal/batch"
	"github.com/mautops/event-workflow/internal/condition"
	"github.com/mautops/event-workflow/internal/config"
	"github.com/mautops/event-workflow/internal/engine"
	"github.com/mautops/event-workflow/internal/featureflags"
	"github.com/mautops/event-workflow/internal/logger"
	"github.com/mautops/event-workflow/internal/model"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/service"
	"github.com/mautops/event-workflow/internal/testutil"
	"github.com/mautops/event-workflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func registrationSteps() []workflow.Step {
	return []workflow.Step{
		{
			ID: "review", Name: "Review", SortOrder: 1, StepType: workflow.StepTypeReview, IsEntryPoint: true,
			NextStepID:        workflow.StepID("accreditation"),
			RejectionTargetID: workflow.StepID("rejected"),
		},
		{ID: "accreditation", Name: "Accreditation", SortOrder: 2, StepType: workflow.StepTypeApproval, NextStepID: workflow.StepID("badge")},
		{ID: "badge", Name: "Badge", SortOrder: 3, StepType: workflow.StepTypePrint, IsFinalStep: true},
		{ID: "rejected", Name: "Rejected", SortOrder: 4, StepType: workflow.StepTypeApproval, IsFinalStep: true},
	}
}

// countingParticipants 统计批量读取次数
type countingParticipants struct {
	repository.ParticipantRepository
	batchSizes []int
}

func (c *countingParticipants) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.ParticipantModel, error) {
	c.batchSizes = append(c.batchSizes, len(ids))
	return c.ParticipantRepository.FindByIDs(ctx, tenantID, ids)
}

type fixture struct {
	db           *gorm.DB
	executor     *batch.Executor
	navigator    engine.Navigator
	flags        *featureflags.Flags
	participants *countingParticipants
	operations   repository.BulkOperationRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	log := logger.Discard()
	eng := engine.New(engine.Dependencies{DB: db, Logger: log})

	f := &fixture{
		db:           db,
		navigator:    eng.Navigator,
		flags:        featureflags.New(config.FeatureConfig{BulkOperations: true}),
		participants: &countingParticipants{ParticipantRepository: repository.NewParticipantRepository(db)},
		operations:   repository.NewBulkOperationRepository(db),
	}
	f.executor = batch.NewExecutor(batch.ExecutorDependencies{
		Participants: f.participants,
		Snapshots:    repository.NewSnapshotRepository(db),
		Operations:   f.operations,
		Audience:     repository.NewAudienceRepository(db),
		Navigator:    eng.Navigator,
		Flags:        f.flags,
		Audit:        service.NewAuditLogService(repository.NewAuditLogRepository(db)),
		Logger:       log,
	})
	return f
}

func approveRequest(ids ...string) *batch.Request {
	return &batch.Request{
		TenantID:       testutil.TenantID,
		EventID:        testutil.EventID,
		Actor:          workflow.HumanActor("admin-1"),
		Action:         workflow.ActionApprove,
		ParticipantIDs: ids,
		Remarks:        "bulk review",
	}
}

// TestExecuteBatchAction_Chunked 测试 25 个参与者按 20+5 分两块读取
func TestExecuteBatchAction_Chunked(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())

	ids := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("p-%02d", i)
		testutil.SeedParticipant(t, f.db, id, snap, "review", nil)
		ids = append(ids, id)
	}

	result, err := f.executor.ExecuteBatchAction(context.Background(), approveRequest(ids...))
	require.NoError(t, err)
	assert.Equal(t, []int{20, 5}, f.participants.batchSizes)
	assert.Equal(t, 25, result.TotalCount)
	assert.Equal(t, 25, result.SuccessCount+result.FailureCount)
	assert.Equal(t, 25, result.SuccessCount)
	assert.Equal(t, model.BulkStatusCompleted, result.Status)
	require.Len(t, result.Items, 25)
	assert.Equal(t, "accreditation", result.Items[0].NewStepID)

	saved := testutil.LoadParticipant(t, f.db, "p-24")
	assert.Equal(t, "accreditation", *saved.CurrentStepID)

	details, err := f.executor.GetOperation(context.Background(), testutil.TenantID, result.OperationID)
	require.NoError(t, err)
	assert.Equal(t, model.BulkStatusCompleted, details.Operation.Status)
	assert.Equal(t, 25, details.Operation.SuccessCount)
	assert.Equal(t, "admin-1", details.Operation.CreatedBy)
	assert.Len(t, details.Items, 25)
	assert.NotNil(t, details.Operation.CompletedAt)
}

// TestExecuteBatchAction_PartialFailure 测试部分失败仍为 COMPLETED
func TestExecuteBatchAction_PartialFailure(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, f.db, "p-1", snap, "review", nil)
	testutil.SeedParticipant(t, f.db, "p-2", snap, "badge", nil)

	result, err := f.executor.ExecuteBatchAction(context.Background(), approveRequest("p-1", "p-2", "ghost"))
	require.NoError(t, err)
	assert.Equal(t, model.BulkStatusCompleted, result.Status)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)

	byID := map[string]batch.ItemResult{}
	for _, item := range result.Items {
		byID[item.ParticipantID] = item
	}
	assert.Equal(t, model.BulkItemSucceeded, byID["p-1"].Status)
	assert.Equal(t, model.BulkItemFailed, byID["p-2"].Status)
	assert.Contains(t, byID["p-2"].Error, "already completed")
	assert.Equal(t, engine.MsgParticipantNotFound, byID["ghost"].Error)
}

// TestExecuteBatchAction_AllFailed 测试全部失败时为 FAILED
func TestExecuteBatchAction_AllFailed(t *testing.T) {
	f := newFixture(t)
	testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())

	result, err := f.executor.ExecuteBatchAction(context.Background(), approveRequest("ghost-1", "ghost-2"))
	require.NoError(t, err)
	assert.Equal(t, model.BulkStatusFailed, result.Status)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)
}

// TestExecuteBatchAction_OtherEvent 测试其他活动的参与者视为不存在
func TestExecuteBatchAction_OtherEvent(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, f.db, "p-1", snap, "review", nil)
	other := testutil.SeedParticipant(t, f.db, "p-other", snap, "review", nil)
	require.NoError(t, f.db.Model(other).Update("event_id", "event-2").Error)

	dryRun, err := f.executor.DryRunBatchAction(context.Background(), approveRequest("p-1", "p-other"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, dryRun.Eligible)
	assert.Equal(t, []batch.Ineligible{{ID: "p-other", Reason: engine.MsgParticipantNotFound}}, dryRun.Ineligible)

	result, err := f.executor.ExecuteBatchAction(context.Background(), approveRequest("p-1", "p-other"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)

	saved := testutil.LoadParticipant(t, f.db, "p-other")
	assert.Equal(t, "review", *saved.CurrentStepID)

	// 丢弃未知 ID 时只处理属于活动的参与者
	req := approveRequest("p-other", "ghost")
	req.DropUnknown = true
	_, err = f.executor.ExecuteBatchAction(context.Background(), req)
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

// TestExecuteBatchAction_FeatureDisabled 测试租户未开启批量操作
func TestExecuteBatchAction_FeatureDisabled(t *testing.T) {
	f := newFixture(t)
	f.flags.Set(featureflags.BulkOperations, testutil.TenantID, false)

	_, err := f.executor.ExecuteBatchAction(context.Background(), approveRequest("p-1"))
	assert.ErrorIs(t, err, workflow.ErrFeatureDisabled)

	var count int64
	require.NoError(t, f.db.Model(&model.BulkOperationModel{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err = f.executor.RestoreBatchAction(context.Background(), testutil.TenantID, "op-1", workflow.HumanActor("admin-1"))
	assert.ErrorIs(t, err, workflow.ErrFeatureDisabled)
}

// TestExecuteBatchAction_InvalidRequest 测试请求校验
func TestExecuteBatchAction_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.executor.ExecuteBatchAction(context.Background(), approveRequest())
	assert.ErrorIs(t, err, workflow.ErrValidation)

	req := approveRequest("p-1")
	req.Action = workflow.Action("TELEPORT")
	_, err = f.executor.ExecuteBatchAction(context.Background(), req)
	assert.ErrorIs(t, err, workflow.ErrValidation)

	req = approveRequest("p-1")
	req.Filter = &repository.AudienceFilter{}
	_, err = f.executor.ExecuteBatchAction(context.Background(), req)
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

// TestExecuteBatchAction_Cancelled 测试已取消的上下文将参与者记为失败
func TestExecuteBatchAction_Cancelled(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, f.db, "p-1", snap, "review", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.executor.ExecuteBatchAction(ctx, approveRequest("p-1"))
	require.Error(t, err)

	saved := testutil.LoadParticipant(t, f.db, "p-1")
	assert.Equal(t, "review", *saved.CurrentStepID)
}

// TestDryRunBatchAction 测试预演只校验不修改
func TestDryRunBatchAction(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())
	short := testutil.SeedWorkflow(t, f.db, "wf-short", []workflow.Step{
		{ID: "only", Name: "Only", SortOrder: 1, StepType: workflow.StepTypeApproval, IsEntryPoint: true},
	})
	testutil.SeedParticipant(t, f.db, "p-1", snap, "review", nil)
	testutil.SeedParticipant(t, f.db, "p-2", short, "only", nil)
	testutil.SeedParticipant(t, f.db, "p-3", snap, "accreditation", nil)

	// 预演不受功能开关限制
	f.flags.Set(featureflags.BulkOperations, testutil.TenantID, false)

	result, err := f.executor.DryRunBatchAction(context.Background(), approveRequest("p-1", "p-2", "ghost"))
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, 1, result.EligibleCount)
	assert.Equal(t, []string{"p-1"}, result.Eligible)
	assert.Equal(t, []batch.Ineligible{
		{ID: "p-2", Reason: workflow.MsgNoNextStep},
		{ID: "ghost", Reason: engine.MsgParticipantNotFound},
	}, result.Ineligible)

	reject := approveRequest("p-1", "p-3")
	reject.Action = workflow.ActionReject
	result, err = f.executor.DryRunBatchAction(context.Background(), reject)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, result.Eligible)
	require.Len(t, result.Ineligible, 1)
	assert.Equal(t, workflow.MsgNoRejectionTarget, result.Ineligible[0].Reason)

	saved := testutil.LoadParticipant(t, f.db, "p-1")
	assert.Equal(t, "review", *saved.CurrentStepID)
	assert.Equal(t, 1, saved.Version)

	var count int64
	require.NoError(t, f.db.Model(&model.BulkOperationModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

// TestDryRunMatchesExecution 测试预演结论与实际执行一致
func TestDryRunMatchesExecution(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, f.db, "p-1", snap, "review", nil)
	testutil.SeedParticipant(t, f.db, "p-2", snap, "accreditation", nil)
	testutil.SeedParticipant(t, f.db, "p-3", snap, "badge", nil)

	req := approveRequest("p-1", "p-2", "p-3")
	req.Action = workflow.ActionReject
	dryRun, err := f.executor.DryRunBatchAction(context.Background(), req)
	require.NoError(t, err)

	result, err := f.executor.ExecuteBatchAction(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, dryRun.EligibleCount, result.SuccessCount)
	assert.Equal(t, dryRun.IneligibleCount, result.FailureCount)

	reasons := map[string]string{}
	for _, in := range dryRun.Ineligible {
		reasons[in.ID] = in.Reason
	}
	for _, item := range result.Items {
		if item.Status == model.BulkItemFailed {
			assert.Equal(t, reasons[item.ParticipantID], item.Error)
		}
	}
}

// TestDryRunBatchAction_UndecodableExtras 测试无法解析的参与者在预演与执行中同样按单项处理
func TestDryRunBatchAction_UndecodableExtras(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, f.db, "p-1", snap, "review", nil)
	testutil.SeedParticipant(t, f.db, "p-2", snap, "review", nil)
	require.NoError(t, f.db.Exec("UPDATE participants SET extras = ? WHERE id = ?", "not-json", "p-2").Error)
	ctx := context.Background()

	dryRun, err := f.executor.DryRunBatchAction(ctx, approveRequest("p-1", "p-2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, dryRun.Eligible)
	require.Len(t, dryRun.Ineligible, 1)
	assert.Equal(t, "p-2", dryRun.Ineligible[0].ID)
	assert.Contains(t, dryRun.Ineligible[0].Reason, "failed to decode participant extras")

	result, err := f.executor.ExecuteBatchAction(ctx, approveRequest("p-1", "p-2"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	for _, item := range result.Items {
		if item.ParticipantID == "p-2" {
			assert.Equal(t, dryRun.Ineligible[0].Reason, item.Error)
		}
	}
}

// TestRestoreBatchAction 测试撤销批量操作
func TestRestoreBatchAction(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, f.db, "p-1", snap, "review", nil)
	testutil.SeedParticipant(t, f.db, "p-2", snap, "review", nil)
	ctx := context.Background()
	admin := workflow.HumanActor("admin-1")

	req := approveRequest("p-1", "p-2")
	req.Action = workflow.ActionReject
	result, err := f.executor.ExecuteBatchAction(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, string(workflow.StatusRejected), testutil.LoadParticipant(t, f.db, "p-1").Status)

	restored, err := f.executor.RestoreBatchAction(ctx, testutil.TenantID, result.OperationID, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.RestoredCount)
	assert.Zero(t, restored.FailedCount)

	saved := testutil.LoadParticipant(t, f.db, "p-1")
	assert.Equal(t, "review", *saved.CurrentStepID)
	assert.Equal(t, string(workflow.StatusInProgress), saved.Status)

	details, err := f.executor.GetOperation(ctx, testutil.TenantID, result.OperationID)
	require.NoError(t, err)
	assert.Equal(t, model.BulkStatusRestored, details.Operation.Status)

	_, err = f.executor.RestoreBatchAction(ctx, testutil.TenantID, result.OperationID, admin)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)

	_, err = f.executor.RestoreBatchAction(ctx, testutil.TenantID, "missing", admin)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	logs, err := repository.NewAuditLogRepository(f.db).FindByResource(ctx, service.ResourceBulkOperation, result.OperationID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, service.AuditBulkOperationCreate, logs[0].Action)
	assert.Equal(t, service.AuditBulkOperationRestore, logs[1].Action)
}

// TestRestoreBatchAction_OnlyUnchangedSuccesses 测试撤销只恢复执行成功且之后未被改动的参与者
func TestRestoreBatchAction_OnlyUnchangedSuccesses(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, f.db, "p-1", snap, "review", nil)
	testutil.SeedParticipant(t, f.db, "p-2", snap, "accreditation", nil)
	testutil.SeedParticipant(t, f.db, "p-3", snap, "review", nil)
	ctx := context.Background()

	req := approveRequest("p-1", "p-2", "p-3")
	req.Action = workflow.ActionReject
	result, err := f.executor.ExecuteBatchAction(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 1, result.FailureCount)

	// p-2 未被批量操作修改,随后人工审批到最终步骤
	_, err = f.navigator.ProcessWorkflowAction(ctx, &engine.ActionRequest{
		TenantID:      testutil.TenantID,
		ParticipantID: "p-2",
		Actor:         workflow.HumanActor("reviewer-1"),
		Action:        workflow.ActionApprove,
	})
	require.NoError(t, err)

	// p-3 在批量操作之后被其他途径修改
	require.NoError(t, f.db.Model(&model.ParticipantModel{}).Where("id = ?", "p-3").
		Update("status", string(workflow.StatusCancelled)).Error)

	restored, err := f.executor.RestoreBatchAction(ctx, testutil.TenantID, result.OperationID, workflow.HumanActor("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, restored.RestoredCount)
	assert.Equal(t, 1, restored.FailedCount)
	assert.Equal(t, []string{"p-3"}, restored.FailedIDs)

	p1 := testutil.LoadParticipant(t, f.db, "p-1")
	assert.Equal(t, "review", *p1.CurrentStepID)
	assert.Equal(t, string(workflow.StatusInProgress), p1.Status)

	p2 := testutil.LoadParticipant(t, f.db, "p-2")
	assert.Equal(t, "badge", *p2.CurrentStepID)
	assert.Equal(t, string(workflow.StatusApproved), p2.Status)

	p3 := testutil.LoadParticipant(t, f.db, "p-3")
	assert.Equal(t, "rejected", *p3.CurrentStepID)
	assert.Equal(t, string(workflow.StatusCancelled), p3.Status)
}

// TestGetOperation_OtherTenant 测试跨租户读取返回 NotFound
func TestGetOperation_OtherTenant(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, f.db, "p-1", snap, "review", nil)

	result, err := f.executor.ExecuteBatchAction(context.Background(), approveRequest("p-1"))
	require.NoError(t, err)

	_, err = f.executor.GetOperation(context.Background(), "tenant-2", result.OperationID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

// TestSelector 测试 ID 选择与条件选择
func TestSelector(t *testing.T) {
	f := newFixture(t)
	snap := testutil.SeedWorkflow(t, f.db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, f.db, "p-1", snap, "review", map[string]interface{}{"country": "FR"})
	testutil.SeedParticipant(t, f.db, "p-2", snap, "review", map[string]interface{}{"country": "DE"})
	testutil.SeedParticipant(t, f.db, "p-3", snap, "accreditation", map[string]interface{}{"country": "FR"})
	ctx := context.Background()
	selector := f.executor.Selector()

	ids, err := selector.SelectByIDs(ctx, []string{"p-3", "ghost", "p-1", "p-3"}, testutil.EventID, testutil.TenantID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-3", "p-1"}, ids)

	ids, err = selector.SelectByIDs(ctx, []string{"p-1"}, "event-2", testutil.TenantID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	french := condition.Simple("country", condition.OpEq, "FR")
	ids, err = selector.SelectByFilter(ctx, testutil.EventID, testutil.TenantID, &repository.AudienceFilter{
		StepIDs:   []string{"review"},
		Condition: &french,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, ids)

	// 条件选择直接驱动批量执行
	req := approveRequest()
	req.Filter = &repository.AudienceFilter{Condition: &french}
	result, err := f.executor.ExecuteBatchAction(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, 2, result.SuccessCount)
}
