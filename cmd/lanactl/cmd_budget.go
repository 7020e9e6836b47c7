package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lana/internal/core"
)

var (
	evalOwner    int64
	evalCategory int64
	evalDate     string
	evalAmount   string

	statusOwner int64
	statusID    int64
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run the budget check for one expense",
	Long: `Evaluate the budget that covers the given owner, category and date as if
an expense of the given amount had just been recorded. Raises a budget alert
when a threshold is crossed.

Example:
  lanactl evaluate --owner 1 --category 3 --date 2024-03-10 --amount 42.50`,
	PreRunE:  openApp,
	PostRunE: closeApp,
	RunE:     runEvaluate,
}

var budgetStatusCmd = &cobra.Command{
	Use:      "budget-status",
	Short:    "Show spent, remaining and utilization for a budget",
	PreRunE:  openApp,
	PostRunE: closeApp,
	RunE:     runBudgetStatus,
}

func init() {
	evaluateCmd.Flags().Int64Var(&evalOwner, "owner", 0, "Owner ID")
	evaluateCmd.Flags().Int64Var(&evalCategory, "category", 0, "Category ID")
	evaluateCmd.Flags().StringVar(&evalDate, "date", "", "Expense date as YYYY-MM-DD (default: today)")
	evaluateCmd.Flags().StringVar(&evalAmount, "amount", "", "Expense amount, e.g. 12.34")
	_ = evaluateCmd.MarkFlagRequired("owner")
	_ = evaluateCmd.MarkFlagRequired("category")
	_ = evaluateCmd.MarkFlagRequired("amount")

	budgetStatusCmd.Flags().Int64Var(&statusOwner, "owner", 0, "Owner ID")
	budgetStatusCmd.Flags().Int64Var(&statusID, "id", 0, "Budget ID")
	_ = budgetStatusCmd.MarkFlagRequired("owner")
	_ = budgetStatusCmd.MarkFlagRequired("id")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	date, err := dateFlag(evalDate)
	if err != nil {
		return err
	}
	amount, err := core.ParseMoney(evalAmount)
	if err != nil {
		return fmt.Errorf("amount %q: %w", evalAmount, err)
	}

	if err := app.svc.Evaluator.Evaluate(cmd.Context(), evalOwner, evalCategory, date, amount); err != nil {
		return fmt.Errorf("evaluate budget: %w", err)
	}

	pending, err := app.svc.Notifications.Pending(cmd.Context(), evalOwner)
	if err != nil {
		return err
	}
	renderNotifications(cmd.OutOrStdout(), pending)
	return nil
}

func runBudgetStatus(cmd *cobra.Command, _ []string) error {
	st, err := app.svc.Budgets.Status(cmd.Context(), statusOwner, statusID)
	if err != nil {
		return fmt.Errorf("budget %d: %w", statusID, err)
	}
	renderBudgetStatus(cmd.OutOrStdout(), st)
	return nil
}
