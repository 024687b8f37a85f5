package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"assembly/internal/app/bootstrap"

	"github.com/spf13/cobra"
)

func serveRun(cmd *cobra.Command, _ []string) {
	logger := commonRun()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildAPI(ctx, cfg, logger)
	if err != nil {
		slog.Error("bootstrap api failed", "error", err.Error())
		os.Exit(1)
	}
	runErr := app.Run(ctx)
	if err := app.Close(); err != nil {
		slog.Error("api shutdown close failed", "error", err.Error())
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("api stopped with error", "error", runErr.Error())
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Run:   serveRun,
	}
}
