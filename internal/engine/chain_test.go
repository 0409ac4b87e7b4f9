package engine_test

import (
	"context"
	"testing"

	"github.com/mautops/event-workflow/internal/condition"
	"github.com/mautops/event-workflow/internal/engine"
	"github.com/mautops/event-workflow/internal/logger"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/service"
	"github.com/mautops/event-workflow/internal/testutil"
	"github.com/mautops/event-workflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainRequest(participantID, stepID string) *engine.ChainRequest {
	return &engine.ChainRequest{
		TenantID:       testutil.TenantID,
		ParticipantID:  participantID,
		StartingStepID: stepID,
	}
}

// TestExecuteAutoActionsChain_TwoSteps 测试两级自动审批到达最终步骤
func TestExecuteAutoActionsChain_TwoSteps(t *testing.T) {
	db := testutil.NewTestDB(t)
	snap := testutil.SeedWorkflow(t, db, "wf-chain", []workflow.Step{
		{ID: "step1", SortOrder: 1, IsEntryPoint: true, NextStepID: workflow.StepID("step2")},
		{ID: "step2", SortOrder: 2, NextStepID: workflow.StepID("final")},
		{ID: "final", SortOrder: 3, IsFinalStep: true},
	})
	testutil.SeedParticipant(t, db, "p-1", snap, "step1", nil)
	testutil.SeedRule(t, db, "r-step1", "step1", 1, engine.AutoApprove, always())
	testutil.SeedRule(t, db, "r-step2", "step2", 1, engine.AutoApprove, always())
	eng := newEngine(db)
	ctx := context.Background()

	result, err := eng.Chain.ExecuteAutoActionsChain(ctx, chainRequest("p-1", "step1"))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.ActionsExecuted, 2)
	assert.True(t, result.IsComplete)
	assert.Equal(t, 2, result.ChainDepth)
	assert.Equal(t, "step1", result.ActionsExecuted[0].FromStepID)
	assert.Equal(t, "step2", result.ActionsExecuted[0].ToStepID)
	assert.Equal(t, "final", result.ActionsExecuted[1].ToStepID)

	saved := testutil.LoadParticipant(t, db, "p-1")
	assert.Equal(t, "final", *saved.CurrentStepID)
	assert.Equal(t, string(workflow.StatusApproved), saved.Status)

	// 每个自动动作一条审计记录,带规则 ID 与自动标记
	logs, err := repository.NewAuditLogRepository(db).FindByResource(ctx, service.ResourceParticipant, "p-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, log := range logs {
		assert.Equal(t, service.AuditWorkflowAutoAction, log.Action)
		assert.Equal(t, workflow.SystemUserID, log.UserID)
		assert.Contains(t, string(log.Details), `"autoAction":true`)
		assert.Contains(t, string(log.Details), `"ruleId":"r-step`)
	}
}

// TestExecuteAutoActionsChain_NoMatch 测试没有规则命中时返回 nil
func TestExecuteAutoActionsChain_NoMatch(t *testing.T) {
	db := testutil.NewTestDB(t)
	snap := testutil.SeedWorkflow(t, db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, db, "p-1", snap, "review", map[string]interface{}{"vip": "false"})
	testutil.SeedRule(t, db, "r-vip", "review", 1, engine.AutoApprove, condition.Simple("vip", condition.OpEq, "true"))
	eng := newEngine(db)

	result, err := eng.Chain.ExecuteAutoActionsChain(context.Background(), &engine.ChainRequest{
		TenantID: testutil.TenantID, ParticipantID: "p-1", StartingStepID: "review",
		Vars: map[string]interface{}{"vip": "false"},
	})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, testutil.LoadParticipant(t, db, "p-1").Version)
}

// cycleSteps a 与 b 互为下一步,配合总是命中的规则构成无限循环
func cycleSteps() []workflow.Step {
	return []workflow.Step{
		{ID: "a", SortOrder: 1, IsEntryPoint: true, NextStepID: workflow.StepID("b")},
		{ID: "b", SortOrder: 2, NextStepID: workflow.StepID("a")},
	}
}

// TestExecuteAutoActionsChain_StartAtMaxDepth 测试从最大深度开始直接返回 nil
func TestExecuteAutoActionsChain_StartAtMaxDepth(t *testing.T) {
	db := testutil.NewTestDB(t)
	snap := testutil.SeedWorkflow(t, db, "wf-cycle", cycleSteps())
	testutil.SeedParticipant(t, db, "p-1", snap, "a", nil)
	testutil.SeedRule(t, db, "r-a", "a", 1, engine.AutoApprove, always())
	testutil.SeedRule(t, db, "r-b", "b", 1, engine.AutoApprove, always())
	eng := newEngine(db)

	req := chainRequest("p-1", "a")
	req.StartingDepth = engine.DefaultMaxChainDepth
	result, err := eng.Chain.ExecuteAutoActionsChain(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, testutil.LoadParticipant(t, db, "p-1").Version)
}

// TestExecuteAutoActionsChain_Exhausted 测试总是推进的规则在深度上限处停止
func TestExecuteAutoActionsChain_Exhausted(t *testing.T) {
	db := testutil.NewTestDB(t)
	snap := testutil.SeedWorkflow(t, db, "wf-cycle", cycleSteps())
	testutil.SeedParticipant(t, db, "p-1", snap, "a", nil)
	testutil.SeedRule(t, db, "r-a", "a", 1, engine.AutoApprove, always())
	testutil.SeedRule(t, db, "r-b", "b", 1, engine.AutoApprove, always())
	eng := engine.New(engine.Dependencies{DB: db, Logger: nil, MaxChainDepth: 4})

	result, err := eng.Chain.ExecuteAutoActionsChain(context.Background(), chainRequest("p-1", "a"))
	require.NoError(t, err)
	assert.Nil(t, result)

	saved := testutil.LoadParticipant(t, db, "p-1")
	assert.Equal(t, 5, saved.Version)
	assert.Equal(t, "a", *saved.CurrentStepID)

	// 人工动作触发的链耗尽时返回参与者实际位置
	result2, err := eng.Navigator.ProcessWorkflowAction(context.Background(), humanAction("p-1", workflow.ActionApprove))
	require.NoError(t, err)
	assert.Nil(t, result2.Chain)
	assert.Equal(t, "b", result2.NextStepID)
	assert.False(t, result2.IsComplete)
}

// TestExecuteAutoActionsChain_CeilingBeforeRuleLookup 测试执行满上限个动作后,即使下一步无规则也按耗尽处理
func TestExecuteAutoActionsChain_CeilingBeforeRuleLookup(t *testing.T) {
	db := testutil.NewTestDB(t)
	snap := testutil.SeedWorkflow(t, db, "wf-linear", []workflow.Step{
		{ID: "s1", SortOrder: 1, IsEntryPoint: true, NextStepID: workflow.StepID("s2")},
		{ID: "s2", SortOrder: 2, NextStepID: workflow.StepID("s3")},
		{ID: "s3", SortOrder: 3, NextStepID: workflow.StepID("s4")},
		{ID: "s4", SortOrder: 4, IsFinalStep: true},
	})
	testutil.SeedParticipant(t, db, "p-1", snap, "s1", nil)
	testutil.SeedParticipant(t, db, "p-2", snap, "s1", nil)
	testutil.SeedRule(t, db, "r-s1", "s1", 1, engine.AutoApprove, always())
	testutil.SeedRule(t, db, "r-s2", "s2", 1, engine.AutoApprove, always())

	// s3 没有规则,但两个动作已达到上限
	limited := engine.New(engine.Dependencies{DB: db, Logger: logger.Discard(), MaxChainDepth: 2})
	result, err := limited.Chain.ExecuteAutoActionsChain(context.Background(), chainRequest("p-1", "s1"))
	require.NoError(t, err)
	assert.Nil(t, result)
	saved := testutil.LoadParticipant(t, db, "p-1")
	assert.Equal(t, "s3", *saved.CurrentStepID)
	assert.Equal(t, 3, saved.Version)

	// 上限多一级时,同样的链在 s3 自然结束并返回已执行的动作
	roomy := engine.New(engine.Dependencies{DB: db, Logger: logger.Discard(), MaxChainDepth: 3})
	result, err = roomy.Chain.ExecuteAutoActionsChain(context.Background(), chainRequest("p-2", "s1"))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.ActionsExecuted, 2)
	assert.Equal(t, 2, result.ChainDepth)
	assert.False(t, result.IsComplete)
	assert.Equal(t, "s3", *testutil.LoadParticipant(t, db, "p-2").CurrentStepID)
}

// TestExecuteAutoActionsChain_Emergency 测试紧急标记注入条件上下文
func TestExecuteAutoActionsChain_Emergency(t *testing.T) {
	db := testutil.NewTestDB(t)
	snap := testutil.SeedWorkflow(t, db, "wf-reg", registrationSteps())
	testutil.SeedParticipant(t, db, "p-1", snap, "review", nil)
	testutil.SeedRule(t, db, "r-emergency", "review", 1, engine.AutoBypass, condition.Simple(engine.EmergencyVar, condition.OpEq, true))
	eng := newEngine(db)
	ctx := context.Background()

	result, err := eng.Chain.ExecuteAutoActionsChain(ctx, chainRequest("p-1", "review"))
	require.NoError(t, err)
	assert.Nil(t, result)

	// review 没有 bypass 目标,链返回导航错误与空结果
	req := chainRequest("p-1", "review")
	req.IsEmergency = true
	result, err = eng.Chain.ExecuteAutoActionsChain(ctx, req)
	assert.ErrorIs(t, err, workflow.ErrNoTransitionTarget)
	assert.Nil(t, result)
}
