package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Env      string         `mapstructure:"env"` // 环境: development, production
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Features FeatureConfig  `mapstructure:"features"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig 限流配置,rps 为 0 时不限流
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// AuthConfig 认证配置,jwt_secret 为空时从请求头读取操作人
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
	File   string `mapstructure:"file"`   // output 为 file/both 时的文件路径
}

// WorkflowConfig 工作流引擎配置
type WorkflowConfig struct {
	MaxChainDepth int `mapstructure:"max_chain_depth"`
	BulkChunkSize int `mapstructure:"bulk_chunk_size"`
}

// FeatureConfig 功能开关配置
type FeatureConfig struct {
	BulkOperations bool                       `mapstructure:"bulk_operations"`
	Tenants        map[string]map[string]bool `mapstructure:"tenants"` // 租户 -> 开关 -> 是否开启
}

// Load 加载配置,支持配置文件和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果提供了配置文件路径,从文件加载
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		// 尝试从默认位置加载
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.event-workflow")
		// 忽略配置文件不存在的错误,使用默认值
		_ = v.ReadInConfig()
	}

	// 支持环境变量
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Workflow.MaxChainDepth <= 0 {
		return fmt.Errorf("workflow.max_chain_depth must be positive")
	}
	if c.Workflow.BulkChunkSize <= 0 {
		return fmt.Errorf("workflow.bulk_chunk_size must be positive")
	}
	return nil
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 环境变量
	env := v.GetString("env")
	if env == "" {
		env = os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}
	}
	v.SetDefault("env", env)

	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit.rps", 100)
	v.SetDefault("server.rate_limit.burst", 200)

	// 数据库默认配置
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "event_workflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "event-workflow.db")

	// 数据库连接池配置(根据环境设置默认值)
	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 300) // 5 分钟
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 600) // 10 分钟
	}

	// 认证默认配置
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	// 日志配置(根据环境设置默认值)
	if env == "production" {
		v.SetDefault("log.level", "warn")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "event-workflow.log")

	// 工作流引擎
	v.SetDefault("workflow.max_chain_depth", 10)
	v.SetDefault("workflow.bulk_chunk_size", 20)

	// 功能开关
	v.SetDefault("features.bulk_operations", true)
}
