/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "event-workflow",
	Short: "Event participant workflow engine",
	Long: `Event Workflow moves event participants through versioned approval workflows.
It serves the workflow transition API, runs automated rule chains and
applies bulk actions with dry-run and undo support.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: search in current directory, ./config, or $HOME/.event-workflow)")
}

// GetRootCmd 返回根命令(用于测试)
func GetRootCmd() *cobra.Command {
	return rootCmd
}
