package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/event-workflow/internal/auth"
	"github.com/mautops/event-workflow/internal/batch"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/utils"
	"github.com/mautops/event-workflow/internal/workflow"
)

// BulkOperationController 批量操作控制器
type BulkOperationController struct {
	executor *batch.Executor
}

// NewBulkOperationController 创建批量操作控制器
func NewBulkOperationController(executor *batch.Executor) *BulkOperationController {
	return &BulkOperationController{executor: executor}
}

// BulkActionRequest 批量动作请求体,participantIds 与 filter 二选一
type BulkActionRequest struct {
	Action         workflow.Action            `json:"action" binding:"required"`
	ParticipantIDs []string                   `json:"participantIds"`
	Filter         *repository.AudienceFilter `json:"filter"`
	DropUnknown    bool                       `json:"dropUnknown"`
	Remarks        string                     `json:"remarks"`
	IsEmergency    bool                       `json:"isEmergency"`
}

func (c *BulkOperationController) bind(ctx *gin.Context) (*batch.Request, bool) {
	eventID := ctx.Param("eventId")
	if err := utils.ValidateID(eventID); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid event ID", err.Error())
		return nil, false
	}
	var body BulkActionRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return nil, false
	}
	if bad, err := utils.ValidateIDs(body.ParticipantIDs); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid participant ID", bad+": "+err.Error())
		return nil, false
	}
	remarks, err := utils.CleanRemarks(body.Remarks)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid remarks", err.Error())
		return nil, false
	}
	if body.Filter != nil && body.Filter.Condition != nil {
		if err := body.Filter.Condition.Validate(); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid filter condition", err.Error())
			return nil, false
		}
	}

	return &batch.Request{
		TenantID:       auth.GetTenantID(ctx),
		EventID:        eventID,
		Actor:          workflow.HumanActor(auth.GetUserID(ctx)),
		Action:         body.Action,
		ParticipantIDs: body.ParticipantIDs,
		Filter:         body.Filter,
		DropUnknown:    body.DropUnknown,
		Remarks:        remarks,
		IsEmergency:    body.IsEmergency,
	}, true
}

// Execute 执行批量动作
func (c *BulkOperationController) Execute(ctx *gin.Context) {
	req, ok := c.bind(ctx)
	if !ok {
		return
	}

	result, err := c.executor.ExecuteBatchAction(ctx.Request.Context(), req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, result)
}

// DryRun 预演批量动作
func (c *BulkOperationController) DryRun(ctx *gin.Context) {
	req, ok := c.bind(ctx)
	if !ok {
		return
	}

	result, err := c.executor.DryRunBatchAction(ctx.Request.Context(), req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, result)
}

func validateOperationID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid bulk operation ID", err.Error())
		return "", false
	}
	return id, true
}

// Get 获取批量操作详情
func (c *BulkOperationController) Get(ctx *gin.Context) {
	id, ok := validateOperationID(ctx)
	if !ok {
		return
	}
	details, err := c.executor.GetOperation(ctx.Request.Context(), auth.GetTenantID(ctx), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, details)
}

// Restore 撤销批量操作
func (c *BulkOperationController) Restore(ctx *gin.Context) {
	id, ok := validateOperationID(ctx)
	if !ok {
		return
	}
	result, err := c.executor.RestoreBatchAction(ctx.Request.Context(), auth.GetTenantID(ctx), id, workflow.HumanActor(auth.GetUserID(ctx)))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, result)
}
