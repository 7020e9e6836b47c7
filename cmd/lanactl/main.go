package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lana/internal/cli"
	"lana/internal/config"
	"lana/internal/ledger"
	applog "lana/internal/log"
)

// app holds what every subcommand needs once the root has bootstrapped.
var app struct {
	cfg     *config.Config
	logger  *applog.Logger
	store   ledger.Store
	cleanup func() error
	svc     cli.Services
}

var rootCmd = &cobra.Command{
	Use:   "lanactl",
	Short: "Operate a lana ledger from the command line",
	Long: `lanactl runs the batch operations of lana by hand: schema migrations,
scheduled payment processing, reminders, budget checks and reports. It reads the same
configuration as the server (environment, .env and CONFIG_FILE).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd, processPaymentsCmd, remindCmd, evaluateCmd, budgetStatusCmd, reportCmd)
}

// openApp bootstraps config, logging and the store for commands that touch data.
func openApp(cmd *cobra.Command, _ []string) error {
	app.cfg, app.logger = cli.Bootstrap(applog.ComponentCLI)

	store, cleanup, err := cli.OpenStore(cmd.Context(), app.cfg, app.logger.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if app.cfg.DataBackend == "memory" {
		app.logger.Warn("Using the memory backend, changes are lost when the command exits")
	}
	app.store, app.cleanup = store, cleanup

	pub, closePub := cli.OpenPublisher(app.cfg, app.logger.Logger)
	app.svc = cli.Wire(store, app.cfg, pub, nil)
	prev := app.cleanup
	app.cleanup = func() error {
		closePub()
		return prev()
	}
	return nil
}

func closeApp(*cobra.Command, []string) error {
	if app.cleanup != nil {
		return app.cleanup()
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
