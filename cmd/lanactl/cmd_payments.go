package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lana/internal/core"
)

var (
	paymentsDate string
	remindDate   string
)

var processPaymentsCmd = &cobra.Command{
	Use:   "process-payments",
	Short: "Materialize scheduled payments due on a date",
	Long: `Turn every active scheduled payment due on the given date into a ledger
transaction and advance its next due date. Each payment succeeds or fails on
its own.

Examples:
  lanactl process-payments
  lanactl process-payments --date 2024-05-01`,
	PreRunE:  openApp,
	PostRunE: closeApp,
	RunE:     runProcessPayments,
}

var remindCmd = &cobra.Command{
	Use:      "remind",
	Short:    "Emit reminders for payments due soon",
	PreRunE:  openApp,
	PostRunE: closeApp,
	RunE:     runRemind,
}

func init() {
	processPaymentsCmd.Flags().StringVar(&paymentsDate, "date", "", "Processing date as YYYY-MM-DD (default: today)")
	remindCmd.Flags().StringVar(&remindDate, "date", "", "Reference date as YYYY-MM-DD (default: today)")
}

// dateFlag parses a --date value, defaulting to today in the configured zone.
func dateFlag(v string) (core.Date, error) {
	if v == "" {
		return core.Today(app.cfg.Location()), nil
	}
	return core.ParseDate(v)
}

func runProcessPayments(cmd *cobra.Command, _ []string) error {
	date, err := dateFlag(paymentsDate)
	if err != nil {
		return err
	}
	if today := core.Today(app.cfg.Location()); date.After(today) {
		return fmt.Errorf("%w: processing date %s is after today (%s)", core.ErrInvalidDate, date, today)
	}

	outcomes, err := app.svc.Processor.ProcessDuePayments(cmd.Context(), date)
	renderOutcomes(cmd.OutOrStdout(), date, outcomes)
	if err != nil {
		return fmt.Errorf("process due payments: %w", err)
	}
	return nil
}

func runRemind(cmd *cobra.Command, _ []string) error {
	date, err := dateFlag(remindDate)
	if err != nil {
		return err
	}

	n, err := app.svc.Processor.RemindUpcoming(cmd.Context(), date)
	if err != nil {
		return fmt.Errorf("remind upcoming payments: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d reminder(s) emitted for %s\n", n, date)
	return nil
}
