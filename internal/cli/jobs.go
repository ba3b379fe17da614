package cli

import (
	"context"
	"fmt"
	"ideafeed/internal/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 以下子命令供 cron 等外部调度器调用，执行一次即退出

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Run one decay and necromancy sweep over all active posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.ranking.RecalculateAll(context.Background())
		if err != nil {
			return fmt.Errorf("recalculate: %w", err)
		}
		zap.L().Info("Sweep finished", zap.Int("processed", res.Processed), zap.Int("skipped", res.Skipped))
		fmt.Fprintf(cmd.OutOrStdout(), "processed=%d skipped=%d\n", res.Processed, res.Skipped)
		return nil
	},
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Recalculate tag trend scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.tags.RecalculateTrends(context.Background())
		if err != nil {
			return fmt.Errorf("trends: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated=%d\n", n)
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <note-id>",
	Short: "Publish a processed note as a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noteID, ok := utils.ParseID(args[0])
		if !ok {
			return fmt.Errorf("invalid note id %q", args[0])
		}
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.publication.Publish(context.Background(), noteID)
		if err != nil {
			return fmt.Errorf("publish note %d: %w", noteID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "post=%d already_published=%t\n", res.Post.ID, res.AlreadyPublished)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		// newApp 打开数据库时会执行迁移
		a, err := newApp(false)
		if err != nil {
			return err
		}
		a.close()
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}
