package engine

import (
	"context"

	"github.com/mautops/event-workflow/internal/metrics"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/service"
	"github.com/mautops/event-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
)

// EmergencyVar 注入条件上下文的紧急标记字段
const EmergencyVar = "isEmergency"

// ChainExecutor 自动动作链执行器接口
type ChainExecutor interface {
	ExecuteAutoActionsChain(ctx context.Context, req *ChainRequest) (*ChainResult, error)
}

// ChainRequest 自动动作链请求
type ChainRequest struct {
	TenantID       string
	ParticipantID  string
	StartingStepID string
	Vars           map[string]interface{}
	IsEmergency    bool
	StartingDepth  int
}

// ChainAction 链中执行的一个自动动作
type ChainAction struct {
	RuleID     string          `json:"ruleId"`
	RuleName   string          `json:"ruleName"`
	Action     workflow.Action `json:"action"`
	FromStepID string          `json:"fromStepId"`
	ToStepID   string          `json:"toStepId"`
	Status     workflow.Status `json:"status"`
}

// ChainResult 自动动作链结果
type ChainResult struct {
	ActionsExecuted []ChainAction `json:"actionsExecuted"`
	IsComplete      bool          `json:"isComplete"`
	ChainDepth      int           `json:"chainDepth"`
}

// chainExecutor 自动动作链执行器实现
type chainExecutor struct {
	navigator Navigator
	rules     repository.AutoActionRuleRepository
	audit     service.AuditLogService
	logger    logrus.FieldLogger
	maxDepth  int
}

// ExecuteAutoActionsChain 从起始步骤开始循环执行命中的自动动作
// 没有动作执行时返回 nil;深度达到上限时中止并返回 nil,交由人工处理
func (c *chainExecutor) ExecuteAutoActionsChain(ctx context.Context, req *ChainRequest) (*ChainResult, error) {
	result, _, err := c.execute(ctx, req)
	return result, err
}

// execute 执行链,exhausted 表示因深度上限中止
func (c *chainExecutor) execute(ctx context.Context, req *ChainRequest) (*ChainResult, bool, error) {
	log := c.logger.WithFields(logrus.Fields{
		"tenant_id":      req.TenantID,
		"participant_id": req.ParticipantID,
	})

	vars := make(map[string]interface{}, len(req.Vars)+1)
	for k, v := range req.Vars {
		vars[k] = v
	}
	if _, ok := vars[EmergencyVar]; !ok {
		vars[EmergencyVar] = req.IsEmergency
	}

	cache := newRuleCache(c.rules)
	depth := req.StartingDepth
	stepID := req.StartingStepID
	var result *ChainResult

	for {
		// 1. 深度上限,先于规则评估: 恰好执行满 maxDepth 个动作且未完成时,即使下一步没有命中规则也按耗尽返回 nil
		if depth >= c.maxDepth {
			log.WithFields(logrus.Fields{"depth": depth, "step_id": stepID}).Warn("auto-action chain reached max depth, aborting")
			metrics.RecordChain(depth, true)
			return nil, true, nil
		}

		// 2. 评估当前步骤的规则
		rules, err := cache.forStep(ctx, stepID)
		if err != nil {
			return result, false, err
		}
		match := EvaluateRules(rules, vars, c.logger)
		if match == nil {
			if result != nil {
				metrics.RecordChain(result.ChainDepth, false)
			}
			return result, false, nil
		}

		// 3. 以系统身份执行动作,链内不再递归触发
		tr, err := c.navigator.ProcessWorkflowAction(ctx, &ActionRequest{
			TenantID:      req.TenantID,
			ParticipantID: req.ParticipantID,
			Actor:         workflow.SystemActor(),
			Action:        match.Action,
			Remarks:       "Auto-action: " + match.RuleName,
			SkipAutoChain: true,
			IsEmergency:   req.IsEmergency,
		})
		if err != nil {
			log.WithError(err).WithField("rule_id", match.RuleID).Warn("auto-action failed")
			return result, false, err
		}
		metrics.RecordAutoAction(string(match.Action))

		// 4. 审计
		_ = c.audit.RecordAction(ctx, req.TenantID, workflow.SystemUserID, service.AuditWorkflowAutoAction, service.ResourceParticipant, req.ParticipantID, map[string]interface{}{
			"ruleId":      match.RuleID,
			"ruleName":    match.RuleName,
			"action":      match.Action,
			"fromStepId":  tr.PreviousStepID,
			"toStepId":    tr.NextStepID,
			"autoAction":  true,
			"isEmergency": req.IsEmergency,
		})

		if result == nil {
			result = &ChainResult{}
		}
		depth++
		result.ActionsExecuted = append(result.ActionsExecuted, ChainAction{
			RuleID:     match.RuleID,
			RuleName:   match.RuleName,
			Action:     match.Action,
			FromStepID: tr.PreviousStepID,
			ToStepID:   tr.NextStepID,
			Status:     tr.Status,
		})
		result.ChainDepth = depth
		result.IsComplete = tr.IsComplete

		// 5. 完成即停止
		if tr.IsComplete {
			metrics.RecordChain(result.ChainDepth, false)
			return result, false, nil
		}
		stepID = tr.NextStepID
	}
}
