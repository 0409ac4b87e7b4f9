// Package batch applies one workflow action to many participants in sequential chunks,
// with dry-run eligibility checks, audience selection and undo.
package batch

import (
	"github.com/mautops/event-workflow/internal/model"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/workflow"
)

// DefaultChunkSize 每个分块的参与者数量
const DefaultChunkSize = 20

// OperationTypeWorkflowAction 批量工作流动作
const OperationTypeWorkflowAction = "WORKFLOW_ACTION"

// Request 批量动作请求
// ParticipantIDs 与 Filter 二选一
type Request struct {
	TenantID       string
	EventID        string
	Actor          workflow.Actor
	Action         workflow.Action
	ParticipantIDs []string
	Filter         *repository.AudienceFilter
	DropUnknown    bool // 为 true 时静默丢弃不属于活动的 ID,否则记为失败明细
	Remarks        string
	IsEmergency    bool
}

// Validate 校验请求
func (r *Request) Validate() error {
	if r.TenantID == "" {
		return workflow.Validationf("tenant ID is required")
	}
	if r.EventID == "" {
		return workflow.Validationf("event ID is required")
	}
	if r.Actor.ID == "" {
		return workflow.Validationf("actor is required")
	}
	if !r.Action.IsValid() {
		return workflow.Validationf("unsupported workflow action %q", r.Action)
	}
	if len(r.ParticipantIDs) == 0 && r.Filter == nil {
		return workflow.Validationf("participant IDs or filter is required")
	}
	if len(r.ParticipantIDs) > 0 && r.Filter != nil {
		return workflow.Validationf("participant IDs and filter are mutually exclusive")
	}
	return nil
}

// Ineligible 不满足条件的参与者及原因
type Ineligible struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// EligibilityResult 批量资格校验结果
type EligibilityResult struct {
	Eligible   []string     `json:"eligible"`
	Ineligible []Ineligible `json:"ineligible"`
}

// DryRunResult 预演结果
type DryRunResult struct {
	Action          workflow.Action `json:"action"`
	TotalCount      int             `json:"totalCount"`
	EligibleCount   int             `json:"eligibleCount"`
	IneligibleCount int             `json:"ineligibleCount"`
	Eligible        []string        `json:"eligible"`
	Ineligible      []Ineligible    `json:"ineligible"`
}

// ItemResult 单个参与者的执行结果
type ItemResult struct {
	ParticipantID string `json:"participantId"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	NewStepID     string `json:"newStepId,omitempty"`
	NewStatus     string `json:"newStatus,omitempty"`
}

// Result 批量执行结果
type Result struct {
	OperationID  string       `json:"operationId"`
	Status       string       `json:"status"`
	TotalCount   int          `json:"totalCount"`
	SuccessCount int          `json:"successCount"`
	FailureCount int          `json:"failureCount"`
	Items        []ItemResult `json:"items"`
}

// OperationDetails 批量操作及明细
type OperationDetails struct {
	Operation *model.BulkOperationModel       `json:"operation"`
	Items     []*model.BulkOperationItemModel `json:"items"`
}

// chunkIDs 按固定大小切分 ID
func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// dedupe 去重并保持顺序,忽略空 ID
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
