package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/mautops/event-workflow/internal/condition"
	"github.com/mautops/event-workflow/internal/model"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
)

// 自动动作类型
const (
	AutoApprove  = "AUTO_APPROVE"
	AutoReject   = "AUTO_REJECT"
	AutoBypass   = "AUTO_BYPASS"
	AutoEscalate = "AUTO_ESCALATE"
)

var autoActionMap = map[string]workflow.Action{
	AutoApprove:  workflow.ActionApprove,
	AutoReject:   workflow.ActionReject,
	AutoBypass:   workflow.ActionBypass,
	AutoEscalate: workflow.ActionEscalate,
}

// ActionForType 将自动动作类型映射为工作流动作
func ActionForType(actionType string) (workflow.Action, bool) {
	action, ok := autoActionMap[actionType]
	return action, ok
}

// MatchResult 命中的自动动作规则
type MatchResult struct {
	RuleID     string          `json:"ruleId"`
	RuleName   string          `json:"ruleName"`
	Priority   int             `json:"priority"`
	ActionType string          `json:"actionType"`
	Action     workflow.Action `json:"action"`
}

// AutoActionEvaluator 自动动作评估器接口
type AutoActionEvaluator interface {
	EvaluateAutoActions(ctx context.Context, stepID string, vars map[string]interface{}) (*MatchResult, error)
}

// autoActionEvaluator 自动动作评估器实现
type autoActionEvaluator struct {
	rules  repository.AutoActionRuleRepository
	logger logrus.FieldLogger
}

// NewAutoActionEvaluator 创建自动动作评估器
func NewAutoActionEvaluator(rules repository.AutoActionRuleRepository, logger logrus.FieldLogger) AutoActionEvaluator {
	return &autoActionEvaluator{rules: rules, logger: logger}
}

// EvaluateAutoActions 返回步骤上第一条条件成立的启用规则,没有时返回 nil
func (e *autoActionEvaluator) EvaluateAutoActions(ctx context.Context, stepID string, vars map[string]interface{}) (*MatchResult, error) {
	rules, err := e.rules.FindActiveByStep(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to load auto-action rules: %w", err)
	}
	return EvaluateRules(rules, vars, e.logger), nil
}

// EvaluateRules 按优先级升序评估规则,第一条命中的规则胜出
// 同优先级按规则 ID 排序,结果与规则声明顺序无关;条件无法解析或动作类型未知的规则被跳过
func EvaluateRules(rules []*model.AutoActionRuleModel, vars map[string]interface{}, logger logrus.FieldLogger) *MatchResult {
	ordered := make([]*model.AutoActionRuleModel, 0, len(rules))
	for _, rule := range rules {
		if rule.IsActive {
			ordered = append(ordered, rule)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, rule := range ordered {
		log := logger.WithFields(logrus.Fields{"rule_id": rule.ID, "step_id": rule.StepID})

		action, ok := ActionForType(rule.ActionType)
		if !ok {
			log.WithField("action_type", rule.ActionType).Warn("skipping auto-action rule with unknown action type")
			continue
		}
		expr, err := condition.Parse(rule.ConditionExpression)
		if err != nil {
			log.WithError(err).Warn("skipping auto-action rule with malformed condition")
			continue
		}
		if condition.Evaluate(expr, vars) {
			return &MatchResult{
				RuleID:     rule.ID,
				RuleName:   rule.Name,
				Priority:   rule.Priority,
				ActionType: rule.ActionType,
				Action:     action,
			}
		}
	}
	return nil
}

// ruleCache 单次链执行内的规则缓存,不跨调用复用
type ruleCache struct {
	rules  repository.AutoActionRuleRepository
	byStep map[string][]*model.AutoActionRuleModel
}

func newRuleCache(rules repository.AutoActionRuleRepository) *ruleCache {
	return &ruleCache{rules: rules, byStep: map[string][]*model.AutoActionRuleModel{}}
}

func (c *ruleCache) forStep(ctx context.Context, stepID string) ([]*model.AutoActionRuleModel, error) {
	if rules, ok := c.byStep[stepID]; ok {
		return rules, nil
	}
	rules, err := c.rules.FindActiveByStep(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to load auto-action rules: %w", err)
	}
	c.byStep[stepID] = rules
	return rules, nil
}
