package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loopwire/feedback-pipeline/pkg/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the feedback intake HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("cors-origin", "*", "Access-Control-Allow-Origin value")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := newLogger(cmd)
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := wire(ctx, cfg, log, false)
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}
	defer d.Close(context.Background())

	addr, _ := cmd.Flags().GetString("addr")
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")

	api := httpapi.New(d.orchestrator, d.submissions, log, corsOrigin)

	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("intake api starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
