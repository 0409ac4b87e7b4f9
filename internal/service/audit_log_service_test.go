package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/service"
	"github.com/mautops/event-workflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuditLogService_RecordAction 测试审计日志写入请求信息与详情
func TestAuditLogService_RecordAction(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewAuditLogRepository(db)
	svc := service.NewAuditLogService(repo)

	ctx := service.WithRequestInfo(context.Background(), service.RequestInfo{
		RequestID: "req-1", IP: "10.0.0.1", UserAgent: "test-agent",
	})
	err := svc.RecordAction(ctx, testutil.TenantID, "system", service.AuditWorkflowAutoAction,
		service.ResourceParticipant, "p-1", map[string]interface{}{"ruleId": "r-1", "autoAction": true})
	require.NoError(t, err)

	logs, err := repo.FindByResource(ctx, service.ResourceParticipant, "p-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "req-1", logs[0].RequestID)
	assert.Equal(t, "10.0.0.1", logs[0].IP)
	assert.Equal(t, testutil.TenantID, logs[0].TenantID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[0].Details, &details))
	assert.Equal(t, "r-1", details["ruleId"])
	assert.Equal(t, true, details["autoAction"])
}

// TestAuditLogService_MissingUser 测试缺少用户时拒绝写入
func TestAuditLogService_MissingUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	err := svc.RecordAction(context.Background(), testutil.TenantID, "", service.AuditWorkflowAction,
		service.ResourceParticipant, "p-1", nil)
	assert.Error(t, err)
	assert.Empty(t, service.RequestInfoFrom(context.Background()).RequestID)
}
