package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lana/internal/cli"
	applog "lana/internal/log"
	"lana/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply the embedded schema migrations to the configured SQLite or
PostgreSQL database. The memory backend has no schema.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger := cli.Bootstrap(applog.ComponentStorage)

	var (
		dialect storage.Dialect
		dsn     string
	)
	switch cfg.DataBackend {
	case "sqlite":
		dialect, dsn = storage.SQLite, cfg.SQLiteDBPath
	case "postgres":
		dialect, dsn = storage.Postgres, cfg.PostgresDSN
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "backend %q has no schema to migrate\n", cfg.DataBackend)
		return nil
	}

	if err := storage.RunMigrations(dialect, dsn); err != nil {
		return err
	}
	logger.Info("Migrations applied", "backend", cfg.DataBackend)
	fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
	return nil
}
