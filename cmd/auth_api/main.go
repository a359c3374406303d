// File: cmd/auth_api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"auth_api/internal/config"
	"auth_api/internal/platform/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "auth_api",
		Short:        "Authentication and user management service",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		newServeCommand(),
		newDBCommand(),
		newInitCommand(),
		newWaitForCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and background jobs (default)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("INFO: Received shutdown signal. Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
		return err
	}
	log.Println("INFO: Server shutdown complete.")
	return nil
}

// bootstrap loads configuration and the logger for one-shot commands.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, appLogger, nil
}
