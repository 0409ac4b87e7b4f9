// Package container wires configuration, storage, the workflow engine, the batch executor and
// the HTTP router into one application graph.
package container

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/event-workflow/internal/api"
	"github.com/mautops/event-workflow/internal/auth"
	"github.com/mautops/event-workflow/internal/batch"
	"github.com/mautops/event-workflow/internal/config"
	"github.com/mautops/event-workflow/internal/database"
	"github.com/mautops/event-workflow/internal/engine"
	"github.com/mautops/event-workflow/internal/featureflags"
	"github.com/mautops/event-workflow/internal/logger"
	"github.com/mautops/event-workflow/internal/repository"
	"github.com/mautops/event-workflow/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	cfg       *config.Config
	logger    *logrus.Logger
	db        *gorm.DB
	engine    *engine.Engine
	executor  *batch.Executor
	flags     *featureflags.Flags
	validator *auth.TokenValidator
	approvals repository.ApprovalRepository
	watcher   *config.ConfigWatcher
}

// NewContainer 创建依赖注入容器
// configPath 非空时监听配置文件,热更新功能开关
func NewContainer(cfg *config.Config, configPath string) (*Container, error) {
	// 1. 初始化日志
	log, err := logger.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 2. 初始化数据库(带重试机制)
	// 默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c := NewContainerWithDB(cfg, db, log)

	// 3. 监听配置变更
	if configPath != "" {
		watcher := config.NewConfigWatcher(cfg, configPath)
		watcher.OnConfigChange(func(newCfg *config.Config) {
			c.flags.Update(newCfg.Features)
			if level, err := logrus.ParseLevel(newCfg.Log.Level); err == nil {
				c.logger.SetLevel(level)
			}
			c.logger.Info("configuration reloaded")
		})
		watcher.OnError(func(err error) {
			c.logger.WithError(err).Warn("failed to reload configuration, keeping previous values")
		})
		if err := watcher.Start(); err != nil {
			log.WithError(err).Warn("config watcher not started")
		} else {
			c.watcher = watcher
		}
	}

	return c, nil
}

// NewContainerWithDB 基于已有数据库连接组装依赖
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, log *logrus.Logger) *Container {
	participants := repository.NewParticipantRepository(db)
	snapshots := repository.NewSnapshotRepository(db)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	eng := engine.New(engine.Dependencies{
		DB:            db,
		Participants:  participants,
		Snapshots:     snapshots,
		Rules:         repository.NewAutoActionRuleRepository(db),
		Audit:         audit,
		Logger:        log,
		MaxChainDepth: cfg.Workflow.MaxChainDepth,
	})

	flags := featureflags.New(cfg.Features)
	executor := batch.NewExecutor(batch.ExecutorDependencies{
		Participants: participants,
		Snapshots:    snapshots,
		Operations:   repository.NewBulkOperationRepository(db),
		Audience:     repository.NewAudienceRepository(db),
		Navigator:    eng.Navigator,
		Flags:        flags,
		Audit:        audit,
		Logger:       log,
		ChunkSize:    cfg.Workflow.BulkChunkSize,
	})

	return &Container{
		cfg:       cfg,
		logger:    log,
		db:        db,
		engine:    eng,
		executor:  executor,
		flags:     flags,
		validator: auth.NewTokenValidator(cfg.Auth),
		approvals: repository.NewApprovalRepository(db),
	}
}

// Router 创建 HTTP 路由
func (c *Container) Router() *gin.Engine {
	return api.SetupRoutes(api.RouterDependencies{
		DB:        c.db,
		Navigator: c.engine.Navigator,
		Approvals: c.approvals,
		Batch:     c.executor,
		Validator: c.validator,
		RateLimit: c.cfg.Server.RateLimit,
		Logger:    c.logger,
	})
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// Engine 获取工作流引擎
func (c *Container) Engine() *engine.Engine {
	return c.engine
}

// BatchExecutor 获取批量执行器
func (c *Container) BatchExecutor() *batch.Executor {
	return c.executor
}

// FeatureFlags 获取功能开关
func (c *Container) FeatureFlags() *featureflags.Flags {
	return c.flags
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	return database.Close(c.db)
}
