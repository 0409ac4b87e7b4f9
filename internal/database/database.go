package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/event-workflow/internal/config"
	"github.com/mautops/event-workflow/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置,未配置的值使用默认值
func GetPoolConfig(cfg config.DatabaseConfig) *PoolConfig {
	pool := &PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if pool.MaxIdleConns == 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxOpenConns == 0 {
		pool.MaxOpenConns = 100
	}
	if pool.ConnMaxLifetime == 0 {
		pool.ConnMaxLifetime = 3600 // 1 小时
	}
	if pool.ConnMaxIdleTime == 0 {
		pool.ConnMaxIdleTime = 600 // 10 分钟
	}
	return pool
}

// dialector 根据驱动选择方言
func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(BuildDSN(cfg)), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := GetPoolConfig(cfg)
	if cfg.Driver == "sqlite" {
		// SQLite 单写者,避免 database is locked
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
	}
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// Models 返回需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.WorkflowModel{},
		&model.WorkflowSnapshotModel{},
		&model.ParticipantModel{},
		&model.ApprovalModel{},
		&model.AutoActionRuleModel{},
		&model.BulkOperationModel{},
		&model.BulkOperationItemModel{},
		&model.AuditLogModel{},
	}
}

// Migrate 执行数据库迁移
// datatypes.JSON 在 PostgreSQL 映射为 jsonb,在 SQLite 映射为 JSON,两种方言共用 AutoMigrate
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// CreateIndexes 创建模型标签之外的组合索引
func CreateIndexes(db *gorm.DB) error {
	indexes := []struct {
		name string
		sql  string
	}{
		{"idx_participants_event_status", "CREATE INDEX IF NOT EXISTS idx_participants_event_status ON participants(tenant_id, event_id, status)"},
		{"idx_approvals_participant_created", "CREATE INDEX IF NOT EXISTS idx_approvals_participant_created ON approvals(participant_id, created_at)"},
		{"idx_bulk_items_operation_participant", "CREATE INDEX IF NOT EXISTS idx_bulk_items_operation_participant ON bulk_operation_items(operation_id, participant_id)"},
		{"idx_audit_resource", "CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)"},
	}
	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}

	// PostgreSQL 特定的 GIN 索引
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_participants_extras_gin ON participants USING GIN (extras)").Error; err != nil {
			return fmt.Errorf("failed to create idx_participants_extras_gin: %w", err)
		}
	}

	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			if err = Ping(db); err == nil {
				return db, nil
			}
		}

		// 如果不是最后一次重试,等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Ping 检查数据库连接
func Ping(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
