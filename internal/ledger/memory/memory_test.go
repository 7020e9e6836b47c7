package memory

import (
	"context"
	"errors"
	"testing"

	"lana/internal/core"
	"lana/internal/ledger"
)

func seed(t *testing.T, s *Store) (account, groceries, salary int64) {
	t.Helper()
	ctx := context.Background()
	var err error
	if account, err = s.CreateAccount(ctx, core.Account{OwnerID: 1, Name: "Main", Kind: core.Bank}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if groceries, err = s.CreateCategory(ctx, core.Category{Name: "Groceries", Kind: core.Expense}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	if salary, err = s.CreateCategory(ctx, core.Category{Name: "Salary", Kind: core.Income}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return account, groceries, salary
}

func TestSumExpensesOnlyCountsPeriodAndExpenseKind(t *testing.T) {
	ctx := context.Background()
	s := New()
	acc, groceries, salary := seed(t, s)

	txs := []core.Transaction{
		{OwnerID: 1, AccountID: acc, CategoryID: groceries, Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 3, 1)},
		{OwnerID: 1, AccountID: acc, CategoryID: groceries, Amount: core.Money{Cents: 2500}, Date: core.NewDate(2024, 3, 31)},
		{OwnerID: 1, AccountID: acc, CategoryID: groceries, Amount: core.Money{Cents: 9999}, Date: core.NewDate(2024, 4, 1)},
		{OwnerID: 2, AccountID: acc, CategoryID: groceries, Amount: core.Money{Cents: 9999}, Date: core.NewDate(2024, 3, 5)},
		{OwnerID: 1, AccountID: acc, CategoryID: salary, Amount: core.Money{Cents: 500000}, Date: core.NewDate(2024, 3, 5)},
	}
	for _, tx := range txs {
		if _, err := s.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.SumExpenses(ctx, 1, groceries, core.Period{Year: 2024, Month: 3})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if got.Cents != 3500 {
		t.Fatalf("SumExpenses = %d, want 3500", got.Cents)
	}
	if got, _ := s.SumExpenses(ctx, 1, salary, core.Period{Year: 2024, Month: 3}); got.Cents != 0 {
		t.Fatalf("income category should sum to zero, got %d", got.Cents)
	}
	if got, _ := s.SumExpenses(ctx, 1, groceries, core.Period{Year: 2024, Month: 5}); got.Cents != 0 {
		t.Fatalf("empty period should sum to zero, got %d", got.Cents)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	acc, groceries, _ := seed(t, s)
	pid, _ := s.CreatePayment(ctx, core.Payment{OwnerID: 1, AccountID: acc, CategoryID: groceries, Active: true, NextDue: core.NewDate(2024, 1, 1)})

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, w ledger.Writer) error {
		if _, err := w.InsertTransaction(ctx, core.Transaction{OwnerID: 1, AccountID: acc, CategoryID: groceries, Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1)}); err != nil {
			return err
		}
		if err := w.AdvancePayment(ctx, pid, core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1), true); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx err = %v, want boom", err)
	}
	if n := len(s.Transactions()); n != 0 {
		t.Fatalf("expected rollback, found %d transactions", n)
	}
	p, _ := s.GetPayment(ctx, pid)
	if !p.NextDue.Equal(core.NewDate(2024, 1, 1)) {
		t.Fatalf("payment advanced despite rollback: %s", p.NextDue)
	}

	err = s.InTx(ctx, func(ctx context.Context, w ledger.Writer) error {
		return w.AdvancePayment(ctx, pid, core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1), true)
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	p, _ = s.GetPayment(ctx, pid)
	if !p.NextDue.Equal(core.NewDate(2024, 2, 1)) {
		t.Fatalf("payment not advanced: %s", p.NextDue)
	}
}

func TestAdvancePaymentRejectsStaleOccurrence(t *testing.T) {
	ctx := context.Background()
	s := New()
	acc, groceries, _ := seed(t, s)
	pid, _ := s.CreatePayment(ctx, core.Payment{OwnerID: 1, AccountID: acc, CategoryID: groceries, Active: true, NextDue: core.NewDate(2024, 1, 1)})

	from, next := core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1)
	if err := s.AdvancePayment(ctx, pid, from, next, true); err != nil {
		t.Fatalf("first advance: %v", err)
	}
	if err := s.AdvancePayment(ctx, pid, from, next, true); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("second advance of the same occurrence: err = %v, want ErrConflict", err)
	}
	if err := s.AdvancePayment(ctx, pid, next, next, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := s.AdvancePayment(ctx, pid, next, next.AddDays(7), true); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("advance of inactive payment: err = %v, want ErrConflict", err)
	}
}

func TestInsertNotificationDedup(t *testing.T) {
	ctx := context.Background()
	s := New()
	n := core.Notification{OwnerID: 1, Kind: core.KindBudgetExceeded, DedupKey: "budget:1:2:2024-03:80%"}

	id, inserted, err := s.InsertNotification(ctx, n)
	if err != nil || !inserted || id == 0 {
		t.Fatalf("first insert: id=%d inserted=%v err=%v", id, inserted, err)
	}
	if _, inserted, _ := s.InsertNotification(ctx, n); inserted {
		t.Fatalf("second insert with same key should be dropped")
	}
	if _, inserted, _ := s.InsertNotification(ctx, core.Notification{OwnerID: 1}); !inserted {
		t.Fatalf("notification without key should always insert")
	}

	if err := s.DeleteNotification(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, inserted, _ := s.InsertNotification(ctx, n); !inserted {
		t.Fatalf("key should be free after delete")
	}
}

func TestDuePaymentsSelection(t *testing.T) {
	ctx := context.Background()
	s := New()
	today := core.NewDate(2024, 6, 10)
	overdue, _ := s.CreatePayment(ctx, core.Payment{OwnerID: 1, Active: true, NextDue: core.NewDate(2024, 6, 8)})
	dueToday, _ := s.CreatePayment(ctx, core.Payment{OwnerID: 1, Active: true, NextDue: today})
	_, _ = s.CreatePayment(ctx, core.Payment{OwnerID: 1, Active: true, NextDue: core.NewDate(2024, 6, 11)})
	_, _ = s.CreatePayment(ctx, core.Payment{OwnerID: 1, Active: false, NextDue: today})

	got, _ := s.DuePayments(ctx, today, ledger.OnOrBefore)
	if len(got) != 2 || got[0].ID != overdue || got[1].ID != dueToday {
		t.Fatalf("on-or-before selection = %+v", got)
	}
	got, _ = s.DuePayments(ctx, today, ledger.Exact)
	if len(got) != 1 || got[0].ID != dueToday {
		t.Fatalf("exact selection = %+v", got)
	}
}

func TestCreateBudgetConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	b := core.Budget{OwnerID: 1, CategoryID: 2, Period: core.Period{Year: 2024, Month: 1}, Limit: core.Money{Cents: 100}}
	if _, err := s.CreateBudget(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateBudget(ctx, b); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	b.Period.Month = 2
	if _, err := s.CreateBudget(ctx, b); err != nil {
		t.Fatalf("different period should be allowed: %v", err)
	}
}

func TestListNotificationsFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, _, _ := s.InsertNotification(ctx, core.Notification{OwnerID: 1, Kind: core.KindBudgetExceeded})
	_, _, _ = s.InsertNotification(ctx, core.Notification{OwnerID: 1, Kind: core.KindScheduledPayment})
	_, _, _ = s.InsertNotification(ctx, core.Notification{OwnerID: 2, Kind: core.KindBudgetExceeded})
	_ = s.SetNotificationState(ctx, a, core.StateRead, "", core.NewDate(2024, 1, 1).Time)

	read := true
	got, _ := s.ListNotifications(ctx, 1, ledger.NotificationFilter{Read: &read})
	if len(got) != 1 || got[0].ID != a {
		t.Fatalf("read filter = %+v", got)
	}
	got, _ = s.ListNotifications(ctx, 1, ledger.NotificationFilter{Kind: core.KindScheduledPayment})
	if len(got) != 1 {
		t.Fatalf("kind filter = %+v", got)
	}
	got, _ = s.ListNotifications(ctx, 1, ledger.NotificationFilter{Limit: 1})
	if len(got) != 1 {
		t.Fatalf("limit = %+v", got)
	}
	pending, _ := s.PendingNotifications(ctx, 0, 10)
	if len(pending) != 2 {
		t.Fatalf("pending across owners = %d, want 2", len(pending))
	}
}

func TestReportAggregates(t *testing.T) {
	ctx := context.Background()
	s := New()
	acc, groceries, salary := seed(t, s)

	for _, tx := range []core.Transaction{
		{OwnerID: 1, AccountID: acc, CategoryID: groceries, Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 1, 3)},
		{OwnerID: 1, AccountID: acc, CategoryID: groceries, Amount: core.Money{Cents: 2500}, Date: core.NewDate(2024, 3, 31)},
		{OwnerID: 1, AccountID: acc, CategoryID: groceries, Amount: core.Money{Cents: -500}, Date: core.NewDate(2024, 3, 10)},
		{OwnerID: 1, AccountID: acc, CategoryID: salary, Amount: core.Money{Cents: 300000}, Date: core.NewDate(2024, 3, 1)},
		{OwnerID: 1, AccountID: acc, CategoryID: groceries, Amount: core.Money{Cents: 7000}, Date: core.NewDate(2023, 12, 31)},
		{OwnerID: 2, AccountID: acc, CategoryID: groceries, Amount: core.Money{Cents: 9999}, Date: core.NewDate(2024, 3, 5)},
	} {
		if _, err := s.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	march := core.Period{Year: 2024, Month: 3}
	totals, err := s.CategoryTotals(ctx, 1, march.Start(), march.End())
	if err != nil {
		t.Fatalf("CategoryTotals: %v", err)
	}
	want := []core.CategoryAmount{
		{CategoryID: groceries, Name: "Groceries", Kind: core.Expense, Amount: core.Money{Cents: 2000}},
		{CategoryID: salary, Name: "Salary", Kind: core.Income, Amount: core.Money{Cents: 300000}},
	}
	if len(totals) != len(want) {
		t.Fatalf("CategoryTotals = %+v", totals)
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Errorf("totals[%d] = %+v, want %+v", i, totals[i], want[i])
		}
	}

	months, err := s.MonthlyTotals(ctx, 1, 2024)
	if err != nil {
		t.Fatalf("MonthlyTotals: %v", err)
	}
	if len(months) != 2 {
		t.Fatalf("MonthlyTotals = %+v, want January and March only", months)
	}
	if months[0] != (core.MonthTotals{Month: 1, Expense: core.Money{Cents: 1000}}) {
		t.Errorf("January = %+v", months[0])
	}
	if months[1] != (core.MonthTotals{Month: 3, Income: core.Money{Cents: 300000}, Expense: core.Money{Cents: 2000}}) {
		t.Errorf("March = %+v", months[1])
	}
}

func TestListBudgets(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, groceries, _ := seed(t, s)
	bills, _ := s.CreateCategory(ctx, core.Category{Name: "Bills", Kind: core.Expense})
	march := core.Period{Year: 2024, Month: 3}

	for _, b := range []core.Budget{
		{OwnerID: 1, CategoryID: groceries, Period: march, Limit: core.Money{Cents: 100}},
		{OwnerID: 1, CategoryID: bills, Period: march, Limit: core.Money{Cents: 100}},
		{OwnerID: 1, CategoryID: bills, Period: core.Period{Year: 2024, Month: 4}, Limit: core.Money{Cents: 100}},
		{OwnerID: 2, CategoryID: groceries, Period: march, Limit: core.Money{Cents: 100}},
	} {
		if _, err := s.CreateBudget(ctx, b); err != nil {
			t.Fatalf("create budget: %v", err)
		}
	}

	got, err := s.ListBudgets(ctx, 1, march)
	if err != nil {
		t.Fatalf("ListBudgets: %v", err)
	}
	if len(got) != 2 || got[0].CategoryName != "Bills" || got[1].CategoryName != "Groceries" {
		t.Fatalf("ListBudgets = %+v", got)
	}
}
