package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/event-workflow/internal/model"
	"github.com/mautops/event-workflow/internal/repository"
	"gorm.io/datatypes"
)

// 审计动作
const (
	AuditWorkflowAction       = "workflow.action"
	AuditWorkflowAutoAction   = "workflow.auto_action"
	AuditWorkflowEnter        = "workflow.enter"
	AuditBulkOperationCreate  = "bulk_operation.create"
	AuditBulkOperationRestore = "bulk_operation.restore"
)

// 审计资源类型
const (
	ResourceParticipant   = "participant"
	ResourceBulkOperation = "bulk_operation"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, tenantID string, userID string, action string, resourceType string, resourceID string, details interface{}) error
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	tenantID string,
	userID string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	// 序列化详情
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	// 获取请求信息
	info := RequestInfoFrom(ctx)

	// 创建审计日志
	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    info.RequestID,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
		Details:      datatypes.JSON(detailsJSON),
		CreatedAt:    time.Now(),
	}

	return s.auditRepo.Save(ctx, auditLog)
}

type requestInfoKey struct{}

// RequestInfo 审计日志关联的请求信息
type RequestInfo struct {
	RequestID string
	IP        string
	UserAgent string
}

// WithRequestInfo 将请求信息写入 context
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom 从 context 获取请求信息
func RequestInfoFrom(ctx context.Context) RequestInfo {
	if info, ok := ctx.Value(requestInfoKey{}).(RequestInfo); ok {
		return info
	}
	return RequestInfo{}
}
