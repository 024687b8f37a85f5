package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"assembly/internal/app/bootstrap"
	"assembly/internal/platform/config"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	programName = "assembly-worker"
)

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

var (
	debug      bool
	configFile string
)

// Worker process entrypoint: relays the outbox to the bus and turns workflow
// events into member notifications.
func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Outbox relay and notification dispatcher",
		RunE:  run,
	}
	rootCmd.PersistentFlags().
		BoolVarP(&debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file (defaults to $ASSEMBLY_CONFIG)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: debug,
		Level:     logLevel,
	}))
	slog.SetDefault(logger)
	if _, err := maxprocs.Set(maxprocs.Logger(slogPrintf)); err != nil {
		return err
	}

	var cfg config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap worker failed: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("worker shutdown close failed", "error", err.Error())
		}
	}()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	return nil
}
