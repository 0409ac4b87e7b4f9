/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/mautops/event-workflow/internal/config"
	"github.com/mautops/event-workflow/internal/container"
	"github.com/mautops/event-workflow/internal/workflow"
	"github.com/spf13/cobra"
)

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Undo a finished bulk operation",
	Long: `Restore every participant touched by a finished bulk operation to the
step and status captured before the operation ran, then mark the
operation as RESTORED.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		operationID, _ := cmd.Flags().GetString("operation")
		tenantID, _ := cmd.Flags().GetString("tenant")
		userID, _ := cmd.Flags().GetString("user")

		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctr, err := container.NewContainer(cfg, "")
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		result, err := ctr.BatchExecutor().RestoreBatchAction(cmd.Context(), tenantID, operationID, workflow.HumanActor(userID))
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().String("operation", "", "Bulk operation ID")
	restoreCmd.Flags().String("tenant", "", "Tenant ID")
	restoreCmd.Flags().String("user", "cli", "User recorded in the audit log")
	_ = restoreCmd.MarkFlagRequired("operation")
	_ = restoreCmd.MarkFlagRequired("tenant")
}
