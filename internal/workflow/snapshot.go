// Package workflow holds the immutable workflow graph captured per participant and the
// transition rules shared by live navigation and batch dry-runs.
package workflow

import (
	"fmt"
	"sort"

	"github.com/mautops/event-workflow/internal/condition"
)

// StepType 步骤类型
type StepType string

const (
	StepTypeApproval StepType = "APPROVAL"
	StepTypeReview   StepType = "REVIEW"
	StepTypePrint    StepType = "PRINT"
	StepTypeNotify   StepType = "NOTIFY"
)

// Step 快照中的工作流步骤
type Step struct {
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	SortOrder          int                   `json:"sortOrder"`
	StepType           StepType              `json:"stepType"`
	IsEntryPoint       bool                  `json:"isEntryPoint"`
	IsFinalStep        bool                  `json:"isFinalStep"`
	NextStepID         *string               `json:"nextStepId,omitempty"`
	RejectionTargetID  *string               `json:"rejectionTargetId,omitempty"`
	BypassTargetID     *string               `json:"bypassTargetId,omitempty"`
	EscalationTargetID *string               `json:"escalationTargetId,omitempty"`
	SLADurationMinutes *int                  `json:"slaDurationMinutes,omitempty"`
	SLAWarningMinutes  *int                  `json:"slaWarningMinutes,omitempty"`
	SLABreachAction    *Action               `json:"slaBreachAction,omitempty"`
	Conditions         *condition.Expression `json:"conditions,omitempty"`
	AssignedRoleID     *string               `json:"assignedRoleId,omitempty"`
}

// Snapshot 工作流快照
// 参与者进入工作流时捕获,之后不再修改,可被多个参与者共享
type Snapshot struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflowId"`
	Version    int    `json:"version"`
	Steps      []Step `json:"steps"`

	index map[string]int
}

// NewSnapshot 创建快照并按 sortOrder 排序步骤
func NewSnapshot(id, workflowID string, version int, steps []Step) (*Snapshot, error) {
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SortOrder < sorted[j].SortOrder })

	s := &Snapshot{ID: id, WorkflowID: workflowID, Version: version, Steps: sorted}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.buildIndex()
	return s, nil
}

func (s *Snapshot) buildIndex() {
	s.index = make(map[string]int, len(s.Steps))
	for i, step := range s.Steps {
		s.index[step.ID] = i
	}
}

// Validate 校验快照结构: 恰好一个入口步骤,步骤 ID 唯一,边指向存在的步骤
func (s *Snapshot) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("workflow snapshot %q has no steps", s.ID)
	}

	ids := make(map[string]bool, len(s.Steps))
	entries := 0
	for _, step := range s.Steps {
		if step.ID == "" {
			return fmt.Errorf("workflow snapshot %q has a step without id", s.ID)
		}
		if ids[step.ID] {
			return fmt.Errorf("workflow snapshot %q has duplicate step %q", s.ID, step.ID)
		}
		ids[step.ID] = true
		if step.IsEntryPoint {
			entries++
		}
	}
	if entries != 1 {
		return fmt.Errorf("workflow snapshot %q must have exactly one entry step, found %d", s.ID, entries)
	}

	for _, step := range s.Steps {
		for _, target := range []*string{step.NextStepID, step.RejectionTargetID, step.BypassTargetID, step.EscalationTargetID} {
			if target != nil && !ids[*target] {
				return fmt.Errorf("step %q references unknown step %q", step.ID, *target)
			}
		}
	}
	return nil
}

// Step 根据 ID 查找步骤
func (s *Snapshot) Step(id string) (*Step, bool) {
	if s.index == nil {
		for i := range s.Steps {
			if s.Steps[i].ID == id {
				return &s.Steps[i], true
			}
		}
		return nil, false
	}
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return &s.Steps[i], true
}

// EntryStep 返回入口步骤
func (s *Snapshot) EntryStep() (*Step, bool) {
	for i := range s.Steps {
		if s.Steps[i].IsEntryPoint {
			return &s.Steps[i], true
		}
	}
	return nil, false
}

// StepID 返回字符串指针,便于构造步骤边
func StepID(id string) *string {
	return &id
}
