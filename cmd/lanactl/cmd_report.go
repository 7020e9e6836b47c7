package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lana/internal/core"
	"lana/internal/services"
)

var (
	reportOwner int64
	reportYear  int
	reportMonth int
	reportKind  string
	reportLimit int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the ledger of one owner",
	Long: `Aggregate an owner's transactions. Year and month default to the current
ones in the configured time zone.

Examples:
  lanactl report categories --owner 1 --year 2024 --month 3
  lanactl report history --owner 1 --year 2024
  lanactl report top --owner 1 --kind expense --limit 3`,
}

var reportCategoriesCmd = &cobra.Command{
	Use:      "categories",
	Short:    "Income and expenses per category for one month",
	PreRunE:  openApp,
	PostRunE: closeApp,
	RunE:     runReportCategories,
}

var reportHistoryCmd = &cobra.Command{
	Use:      "history",
	Short:    "Income, expenses and balance per month of a year",
	PreRunE:  openApp,
	PostRunE: closeApp,
	RunE:     runReportHistory,
}

var reportTopCmd = &cobra.Command{
	Use:      "top",
	Short:    "Largest categories of a kind with their share",
	PreRunE:  openApp,
	PostRunE: closeApp,
	RunE:     runReportTop,
}

func init() {
	reportCmd.PersistentFlags().Int64Var(&reportOwner, "owner", 0, "Owner ID")
	reportCmd.PersistentFlags().IntVar(&reportYear, "year", 0, "Year (default: current)")
	_ = reportCmd.MarkPersistentFlagRequired("owner")

	reportCategoriesCmd.Flags().IntVar(&reportMonth, "month", 0, "Month 1-12 (default: current)")
	reportTopCmd.Flags().IntVar(&reportMonth, "month", 0, "Restrict to one month 1-12 (default: whole year)")
	reportTopCmd.Flags().StringVar(&reportKind, "kind", string(core.Expense), "Category kind: income or expense")
	reportTopCmd.Flags().IntVar(&reportLimit, "limit", services.DefaultTopCategories, "How many categories to show")

	reportCmd.AddCommand(reportCategoriesCmd, reportHistoryCmd, reportTopCmd)
}

// reportPeriod fills unset flags from today's date.
func reportPeriod(defaultMonth bool) core.Period {
	today := core.PeriodOf(core.Today(app.cfg.Location()))
	p := core.Period{Year: reportYear, Month: reportMonth}
	if p.Year == 0 {
		p.Year = today.Year
	}
	if p.Month == 0 && defaultMonth {
		p.Month = today.Month
	}
	return p
}

func runReportCategories(cmd *cobra.Command, _ []string) error {
	p := reportPeriod(true)
	o, err := app.svc.Reports.MonthOverview(cmd.Context(), reportOwner, p)
	if err != nil {
		return fmt.Errorf("report %s: %w", p, err)
	}
	renderMonthOverview(cmd.OutOrStdout(), o)
	return nil
}

func runReportHistory(cmd *cobra.Command, _ []string) error {
	p := reportPeriod(false)
	h, err := app.svc.Reports.YearHistory(cmd.Context(), reportOwner, p.Year)
	if err != nil {
		return fmt.Errorf("history %d: %w", p.Year, err)
	}
	renderYearHistory(cmd.OutOrStdout(), h)
	return nil
}

func runReportTop(cmd *cobra.Command, _ []string) error {
	p := reportPeriod(false)
	shares, err := app.svc.Reports.TopCategories(cmd.Context(), reportOwner, core.CategoryKind(reportKind), p.Year, p.Month, reportLimit)
	if err != nil {
		return fmt.Errorf("top categories: %w", err)
	}
	title := fmt.Sprintf("Top %s categories %d", reportKind, p.Year)
	if p.Month != 0 {
		title = fmt.Sprintf("Top %s categories %s", reportKind, p)
	}
	renderTopCategories(cmd.OutOrStdout(), title, shares)
	return nil
}
