// Package engine moves participants through their workflow snapshot: human and automated
// transitions, workflow entry and the bounded auto-action chain.
package engine

import (
	"errors"
	"fmt"

	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/service"
	"github.com/mautops/event-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultMaxChainDepth 自动动作链的默认最大深度
const DefaultMaxChainDepth = 10

// Dependencies 引擎依赖
type Dependencies struct {
	DB            *gorm.DB
	Participants  repository.ParticipantRepository
	Snapshots     repository.SnapshotRepository
	Rules         repository.AutoActionRuleRepository
	Audit         service.AuditLogService
	Logger        logrus.FieldLogger
	MaxChainDepth int
}

// Engine 工作流引擎,聚合导航、自动动作评估与链执行
type Engine struct {
	Navigator Navigator
	Evaluator AutoActionEvaluator
	Chain     ChainExecutor
	Loader    *ParticipantLoader
}

// New 创建工作流引擎
// 导航与链执行相互依赖: 人工动作后触发链,链内每一步再通过导航执行
func New(deps Dependencies) *Engine {
	if deps.Participants == nil {
		deps.Participants = repository.NewParticipantRepository(deps.DB)
	}
	if deps.Snapshots == nil {
		deps.Snapshots = repository.NewSnapshotRepository(deps.DB)
	}
	if deps.Rules == nil {
		deps.Rules = repository.NewAutoActionRuleRepository(deps.DB)
	}
	if deps.Audit == nil {
		deps.Audit = service.NewAuditLogService(repository.NewAuditLogRepository(deps.DB))
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.MaxChainDepth <= 0 {
		deps.MaxChainDepth = DefaultMaxChainDepth
	}

	loader := NewParticipantLoader(deps.Participants, deps.Snapshots)
	evaluator := NewAutoActionEvaluator(deps.Rules, deps.Logger)
	nav := &navigator{
		db:        deps.DB,
		loader:    loader,
		snapshots: deps.Snapshots,
		audit:     deps.Audit,
		logger:    deps.Logger,
	}
	chain := &chainExecutor{
		navigator: nav,
		rules:     deps.Rules,
		audit:     deps.Audit,
		logger:    deps.Logger,
		maxDepth:  deps.MaxChainDepth,
	}
	nav.chain = chain

	return &Engine{
		Navigator: nav,
		Evaluator: evaluator,
		Chain:     chain,
		Loader:    loader,
	}
}

// notFoundOr 将记录不存在转换为 NotFound,其他错误包装后返回
func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return workflow.NotFoundf("%s", message)
	}
	return fmt.Errorf("%s: %w", message, err)
}

// resultLabel 指标中的结果标签
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if kind := workflow.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
