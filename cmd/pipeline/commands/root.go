package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/loopwire/feedback-pipeline/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Autonomous feedback-to-deployment pipeline",
	Long:  "pipeline filters, clusters, prioritises, writes, reviews, and deploys changes from user feedback.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func loadConfig() config.Config {
	return config.FromEnv()
}
