package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run one batch: cluster, prioritise, write, review, deploy",
	RunE:  runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().Bool("dry-run", false, "use canned write/review/deploy agents instead of calling real backends")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	log := newLogger(cmd)
	cfg := loadConfig()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx := context.Background()

	d, err := wire(ctx, cfg, log, dryRun)
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}
	defer d.Close(ctx)

	summary, err := d.orchestrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}

	log.Info("batch summary",
		"tasks_attempted", summary.TasksAttempted,
		"tasks_completed", summary.TasksCompleted,
		"tasks_failed", summary.TasksFailed,
		"total_tokens", summary.TotalTokens,
		"budget_remaining", summary.BudgetRemaining,
	)

	return nil
}
