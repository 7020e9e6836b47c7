package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"lana/internal/core"
	"lana/internal/services"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func renderOutcomes(w io.Writer, date core.Date, outcomes []services.PaymentOutcome) {
	t := newTable(w)
	t.SetTitle("Scheduled payments for " + date.String())
	t.AppendHeader(table.Row{"Payment", "Status", "Transaction", "Next due", "Error"})

	processed, failed, skipped := 0, 0, 0
	for _, o := range outcomes {
		tx, next, msg := "-", "-", ""
		var status string
		switch o.Status {
		case services.StatusProcessed:
			processed++
			status = text.FgGreen.Sprint(string(o.Status))
			tx = fmt.Sprint(o.TransactionID)
			next = o.NextDue.String()
			if o.Deactivated {
				next = text.FgHiBlack.Sprint("deactivated")
			}
		case services.StatusSkipped:
			skipped++
			status = text.FgYellow.Sprint(string(o.Status))
			msg = "already processed by another run"
		default:
			failed++
			status = text.FgRed.Sprint(string(o.Status))
			if o.Err != nil {
				msg = o.Err.Error()
			}
		}
		t.AppendRow(table.Row{o.PaymentID, status, tx, next, msg})
	}

	t.AppendSeparator()
	t.AppendFooter(table.Row{
		"",
		text.Bold.Sprintf("%d processed", processed),
		text.Bold.Sprintf("%d failed", failed),
		text.Bold.Sprintf("%d skipped", skipped),
		"",
	})
	t.Render()
}

func renderBudgetStatus(w io.Writer, st core.BudgetStatus) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Budget", "Category", "Period", "Limit", "Spent", "Remaining", "Used", "Alert"})

	remaining := st.Remaining.String()
	if st.Remaining.Cents < 0 {
		remaining = text.FgRed.Sprint(remaining)
	}
	category := st.Budget.CategoryName
	if category == "" {
		category = fmt.Sprint(st.Budget.CategoryID)
	}
	alert := string(st.Tier())
	if alert == "" {
		alert = "-"
	}

	t.AppendRow(table.Row{
		st.Budget.ID,
		category,
		st.Budget.Period.String(),
		st.Budget.Limit.String(),
		st.Spent.String(),
		remaining,
		st.Utilization.Shift(2).StringFixed(1) + "%",
		alert,
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

func renderNotifications(w io.Writer, list []core.Notification) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no pending notifications")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Kind", "Message"})
	for _, n := range list {
		t.AppendRow(table.Row{n.ID, string(n.Kind), n.Message})
	}
	t.Render()
}

func renderMonthOverview(w io.Writer, o core.MonthOverview) {
	t := newTable(w)
	t.SetTitle("Ledger for " + o.Period.String())
	t.AppendHeader(table.Row{"Kind", "Category", "Total"})
	for _, c := range o.Income {
		t.AppendRow(table.Row{string(core.Income), c.Name, c.Amount.String()})
	}
	for _, c := range o.Expenses {
		t.AppendRow(table.Row{string(core.Expense), c.Name, c.Amount.String()})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"", "Income", o.TotalIncome.String()})
	t.AppendRow(table.Row{"", "Expenses", o.TotalExpense.String()})
	t.AppendFooter(table.Row{"", "Balance", signed(o.Balance())})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
	t.Render()
}

func renderYearHistory(w io.Writer, h core.YearHistory) {
	if len(h.Months) == 0 {
		fmt.Fprintf(w, "no transactions in %d\n", h.Year)
		return
	}
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("History for %d", h.Year))
	t.AppendHeader(table.Row{"Month", "Income", "Expenses", "Balance"})
	for _, m := range h.Months {
		t.AppendRow(table.Row{core.Period{Year: h.Year, Month: m.Month}.String(), m.Income.String(), m.Expense.String(), signed(m.Balance())})
	}
	t.AppendFooter(table.Row{"Total", h.TotalIncome.String(), h.TotalExpense.String(), signed(h.Balance())})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
}

func renderTopCategories(w io.Writer, title string, shares []core.CategoryShare) {
	if len(shares) == 0 {
		fmt.Fprintln(w, "no matching transactions")
		return
	}
	t := newTable(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"#", "Category", "Total", "Share"})
	for i, c := range shares {
		t.AppendRow(table.Row{i + 1, c.Name, c.Amount.String(), c.Percent.StringFixed(2) + "%"})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
}

// signed colors negative amounts red.
func signed(m core.Money) string {
	if m.Cents < 0 {
		return text.FgRed.Sprint(m.String())
	}
	return m.String()
}
