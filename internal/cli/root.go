// Package cli 命令行入口：serve 启动服务，其余子命令供定时任务和运维使用
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "ideafeed",
	Short:        "Feed ranking and publication engine",
	Long:         "ideafeed ranks tenant posts by virality, publishes processed notes and serves paginated feeds.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recalculateCmd)
	rootCmd.AddCommand(trendsCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(migrateCmd)
}
