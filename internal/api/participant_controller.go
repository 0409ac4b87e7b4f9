package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/event-workflow/internal/auth"
	"github.com/mautops/event-workflow/internal/engine"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/utils"
	"github.com/mautops/event-workflow/internal/workflow"
)

// ParticipantController 参与者工作流控制器
type ParticipantController struct {
	navigator engine.Navigator
	approvals repository.ApprovalRepository
}

// NewParticipantController 创建参与者工作流控制器
func NewParticipantController(navigator engine.Navigator, approvals repository.ApprovalRepository) *ParticipantController {
	return &ParticipantController{navigator: navigator, approvals: approvals}
}

// ActionRequest 工作流动作请求体
type ActionRequest struct {
	Action        workflow.Action `json:"action" binding:"required"`
	Remarks       string          `json:"remarks"`
	TargetStepID  string          `json:"targetStepId"`
	SkipAutoChain bool            `json:"skipAutoChain"`
	IsEmergency   bool            `json:"isEmergency"`
}

// EnterRequest 进入工作流请求体
type EnterRequest struct {
	WorkflowID  string `json:"workflowId" binding:"required"`
	IsEmergency bool   `json:"isEmergency"`
}

// validateParticipantID 验证路径中的参与者 ID
func validateParticipantID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid participant ID", err.Error())
		return "", false
	}
	return id, true
}

// ProcessAction 执行工作流动作
func (c *ParticipantController) ProcessAction(ctx *gin.Context) {
	id, ok := validateParticipantID(ctx)
	if !ok {
		return
	}
	var req ActionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	remarks, err := utils.CleanRemarks(req.Remarks)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid remarks", err.Error())
		return
	}

	result, err := c.navigator.ProcessWorkflowAction(ctx.Request.Context(), &engine.ActionRequest{
		TenantID:      auth.GetTenantID(ctx),
		ParticipantID: id,
		Actor:         workflow.HumanActor(auth.GetUserID(ctx)),
		Action:        req.Action,
		Remarks:       remarks,
		TargetStepID:  req.TargetStepID,
		SkipAutoChain: req.SkipAutoChain,
		IsEmergency:   req.IsEmergency,
	})
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, result)
}

// Enter 参与者进入工作流
func (c *ParticipantController) Enter(ctx *gin.Context) {
	id, ok := validateParticipantID(ctx)
	if !ok {
		return
	}
	var req EnterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.navigator.EnterWorkflow(ctx.Request.Context(), &engine.EnterRequest{
		TenantID:      auth.GetTenantID(ctx),
		ParticipantID: id,
		WorkflowID:    req.WorkflowID,
		Actor:         workflow.HumanActor(auth.GetUserID(ctx)),
		IsEmergency:   req.IsEmergency,
	})
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, result)
}

// Approvals 获取参与者的审批记录
func (c *ParticipantController) Approvals(ctx *gin.Context) {
	id, ok := validateParticipantID(ctx)
	if !ok {
		return
	}
	approvals, err := c.approvals.FindByParticipant(ctx.Request.Context(), auth.GetTenantID(ctx), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, approvals)
}
