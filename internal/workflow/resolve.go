package workflow

import "github.com/mautops/event-workflow/internal/condition"

// 缺少转换目标时的提示信息,实时流转与批量预检共用
const (
	MsgNoNextStep         = "No next step configured for current step"
	MsgNoRejectionTarget  = "No rejection target configured for current step"
	MsgNoBypassTarget     = "No bypass target configured for current step"
	MsgNoEscalationTarget = "No escalation target configured for current step"
)

// Resolution 一次转换的解析结果
type Resolution struct {
	From       *Step
	To         *Step
	Skipped    []string
	Status     Status
	IsComplete bool
}

// ResolveTarget 解析参与者在当前步骤执行 action 后的目标步骤
// 不修改任何状态;Navigator 与 EligibilityValidator 都通过它判断,保证两者结论一致
func ResolveTarget(p *Participant, action Action, explicitTargetID string) (*Resolution, error) {
	if p.Snapshot == nil {
		return nil, NotFoundf("workflow snapshot not found for participant %q", p.ID)
	}
	if !action.IsValid() {
		return nil, Validationf("unsupported workflow action %q", action)
	}
	if p.Status.IsResolved() {
		return nil, InvalidStatef("participant workflow already resolved with status %s", p.Status)
	}

	from, ok := p.Snapshot.Step(p.CurrentStepID)
	if !ok {
		return nil, InvalidStatef("current step %q not found in workflow snapshot", p.CurrentStepID)
	}

	if action == ActionPrint {
		if !from.IsFinalStep && from.StepType != StepTypePrint {
			return nil, InvalidStatef("Print is not available for current step")
		}
		return &Resolution{From: from, To: from, Status: StatusPrinted, IsComplete: isComplete(from)}, nil
	}

	var to *Step
	if explicitTargetID != "" {
		to, ok = p.Snapshot.Step(explicitTargetID)
		if !ok {
			return nil, InvalidStatef("target step %q not found in workflow snapshot", explicitTargetID)
		}
	} else {
		if from.IsFinalStep {
			return nil, InvalidStatef("Workflow already completed at current step")
		}
		targetID, message := edgeFor(from, action)
		if targetID == nil {
			return nil, NoTransitionTarget(message)
		}
		to, ok = p.Snapshot.Step(*targetID)
		if !ok {
			return nil, InvalidStatef("target step %q not found in workflow snapshot", *targetID)
		}
	}

	to, skipped := skipUnmetSteps(p, to)
	return &Resolution{
		From:       from,
		To:         to,
		Skipped:    skipped,
		Status:     statusFor(action, to),
		IsComplete: isComplete(to),
	}, nil
}

func edgeFor(step *Step, action Action) (*string, string) {
	switch action {
	case ActionApprove:
		return step.NextStepID, MsgNoNextStep
	case ActionReject:
		return step.RejectionTargetID, MsgNoRejectionTarget
	case ActionBypass:
		return step.BypassTargetID, MsgNoBypassTarget
	case ActionEscalate:
		return step.EscalationTargetID, MsgNoEscalationTarget
	}
	return nil, MsgNoNextStep
}

// skipUnmetSteps 目标步骤的进入条件不满足时沿 nextStepId 跳过,最多跳过全部步骤一次
func skipUnmetSteps(p *Participant, to *Step) (*Step, []string) {
	var skipped []string
	vars := p.Vars()
	for hops := 0; hops < len(p.Snapshot.Steps); hops++ {
		if to.Conditions == nil || condition.Evaluate(*to.Conditions, vars) || to.NextStepID == nil {
			break
		}
		next, ok := p.Snapshot.Step(*to.NextStepID)
		if !ok {
			break
		}
		skipped = append(skipped, to.ID)
		to = next
	}
	return to, skipped
}

func statusFor(action Action, to *Step) Status {
	switch action {
	case ActionPrint:
		return StatusPrinted
	case ActionReject:
		if to.IsFinalStep {
			return StatusRejected
		}
	default:
		if to.IsFinalStep {
			return StatusApproved
		}
	}
	return StatusInProgress
}

func isComplete(step *Step) bool {
	return step.IsFinalStep || step.NextStepID == nil
}
