package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var intakeCmd = &cobra.Command{
	Use:   "intake [content]",
	Short: "Submit one piece of feedback through the filter and embedding pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIntake,
}

func init() {
	rootCmd.AddCommand(intakeCmd)
}

func runIntake(cmd *cobra.Command, args []string) error {
	log := newLogger(cmd)
	cfg := loadConfig()

	ctx := context.Background()

	d, err := wire(ctx, cfg, log, false)
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}
	defer d.Close(ctx)

	content := strings.Join(args, " ")
	sub, err := d.orchestrator.Intake(ctx, content)
	if err != nil {
		return fmt.Errorf("intake: %w", err)
	}

	fmt.Printf("%s\t%s\n", sub.Reference, sub.Status)
	return nil
}
