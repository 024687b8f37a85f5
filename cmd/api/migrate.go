package main

import (
	"log/slog"
	"os"

	"assembly/internal/app/bootstrap"

	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and seed the member roster",
		Run: func(cmd *cobra.Command, _ []string) {
			logger := commonRun()
			if err := bootstrap.Migrate(cmd.Context(), cfg, logger); err != nil {
				slog.Error("migration failed", "error", err.Error())
				os.Exit(1)
			}
		},
	}
}
