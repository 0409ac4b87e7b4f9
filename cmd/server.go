/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/event-workflow/internal/config"
	"github.com/mautops/event-workflow/internal/container"
	"github.com/mautops/event-workflow/internal/metrics"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Event Workflow API server.
The server will listen on the configured host and port and expose
participant transitions, workflow entry and bulk operations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		// 2. 初始化容器
		ctr, err := container.NewContainer(cfg, configPath)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()
		log := ctr.Logger()

		// 3. 启动指标收集
		collector := metrics.NewCollector(ctr.DB(), 30*time.Second)
		collector.Start()
		defer collector.Stop()

		// 4. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           ctr.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			return fmt.Errorf("failed to start server: %w", err)
		}

		log.Info("shutting down server")

		// 优雅关闭,等待进行中的批量分块完成
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}
