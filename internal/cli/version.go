package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// 构建时通过 -ldflags 注入
var (
	Version = "dev"
	Commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ideafeed %s (commit: %s)\n", Version, Commit)
	},
}
