/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"

	"github.com/mautops/event-workflow/internal/config"
	"github.com/mautops/event-workflow/internal/database"
	"github.com/mautops/event-workflow/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations to create or update database schema.
This command will:
- Create all required tables if they don't exist
- Update table schemas if needed
- Create indexes for optimal query performance

The command uses the database configuration from the config file or environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log, err := logger.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// 2. 连接数据库
		log.WithFields(logrus.Fields{
			"driver": cfg.Database.Driver,
			"host":   cfg.Database.Host,
			"dbname": cfg.Database.DBName,
		}).Info("connecting to database")
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)

		// 3. 执行迁移
		log.Info("running database migrations")
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		log.Info("database migrations completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
