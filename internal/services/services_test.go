package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"lana/internal/core"
	"lana/internal/ledger"
	applog "lana/internal/log"
)

func TestTransactionService_Record(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.budget(t, march, 10000, true, true)
	svc := NewTransactionService(f.store, NewBudgetEvaluator(f.store, f.store, f.store))

	id, err := svc.Record(ctx, core.Transaction{
		OwnerID: owner, AccountID: f.account, CategoryID: f.groceries,
		Amount: core.Money{Cents: 9000}, Date: core.NewDate(2024, 3, 2), Description: "weekly shop",
	})
	if err != nil || id == 0 {
		t.Fatalf("Record() = %d, %v", id, err)
	}
	if n := len(f.alerts(t)); n != 1 {
		t.Fatalf("expense over 80%% should raise one alert, got %d", n)
	}

	_, err = svc.Record(ctx, core.Transaction{
		OwnerID: owner, AccountID: f.account, CategoryID: f.salary,
		Amount: core.Money{Cents: 500000}, Date: core.NewDate(2024, 3, 2),
	})
	if err != nil {
		t.Fatalf("Record(income) error = %v", err)
	}
	if n := len(f.alerts(t)); n != 1 {
		t.Fatalf("income must not raise alerts, got %d", n)
	}
}

func TestTransactionService_RejectsForeignAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, _ := f.store.CreateAccount(ctx, core.Account{OwnerID: 2, Name: "Theirs", Kind: core.Cash})
	svc := NewTransactionService(f.store, nil)

	tests := []struct {
		name string
		tx   core.Transaction
	}{
		{"someone else's account", core.Transaction{OwnerID: owner, AccountID: other, CategoryID: f.groceries, Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1)}},
		{"unknown account", core.Transaction{OwnerID: owner, AccountID: 999, CategoryID: f.groceries, Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1)}},
		{"unknown category", core.Transaction{OwnerID: owner, AccountID: f.account, CategoryID: 999, Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Record(ctx, tt.tx); !errors.Is(err, core.ErrInvalidReference) {
				t.Fatalf("Record() error = %v, want ErrInvalidReference", err)
			}
		})
	}
}

func TestTransactionService_EvaluatorFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	ev := &failingEvaluator{}
	svc := NewTransactionService(f.store, ev)

	id, err := svc.Record(context.Background(), core.Transaction{
		OwnerID: owner, AccountID: f.account, CategoryID: f.groceries,
		Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 3, 2),
	})
	if err != nil || id == 0 {
		t.Fatalf("Record() = %d, %v; evaluator errors must not fail the request", id, err)
	}
	if ev.calls != 1 {
		t.Fatalf("evaluator calls = %d", ev.calls)
	}
}

func TestTransactionService_LogsThroughRequestLogger(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Format: "json", Output: &buf}).
		With(applog.FieldRequestID, "req-42")
	ctx := context.WithValue(context.Background(), applog.LoggerContextKey, logger)

	id, err := NewTransactionService(f.store, nil).Record(ctx, core.Transaction{
		OwnerID: owner, AccountID: f.account, CategoryID: f.groceries,
		Amount: core.Money{Cents: 4599}, Date: core.NewDate(2024, 3, 2),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log output is not one JSON record: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "Transaction recorded" || rec[applog.FieldRequestID] != "req-42" {
		t.Errorf("unexpected record: %v", rec)
	}
	if rec[applog.FieldTransactionID] != float64(id) || rec[applog.FieldAmountCents] != float64(4599) {
		t.Errorf("transaction fields missing: %v", rec)
	}
}

func TestBudgetService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewBudgetService(f.store)

	b, err := svc.Create(ctx, core.Budget{OwnerID: owner, CategoryID: f.groceries, Period: march, Limit: core.Money{Cents: 20000}, Alert80: true, Alert100: true})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if b.CategoryName != "Groceries" {
		t.Errorf("CategoryName = %q", b.CategoryName)
	}

	_, err = svc.Create(ctx, core.Budget{OwnerID: owner, CategoryID: f.groceries, Period: march, Limit: core.Money{Cents: 1}})
	if !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("duplicate Create() error = %v, want ErrConflict", err)
	}
	_, err = svc.Create(ctx, core.Budget{OwnerID: owner, CategoryID: f.groceries, Period: march, Limit: core.Money{}})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("zero limit error = %v", err)
	}

	f.spend(t, core.NewDate(2024, 3, 9), 5000)
	status, err := svc.Status(ctx, owner, b.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Spent.Cents != 5000 || status.Remaining.Cents != 15000 || status.Utilization.String() != "0.25" {
		t.Errorf("unexpected status: spent=%d remaining=%d utilization=%s", status.Spent.Cents, status.Remaining.Cents, status.Utilization)
	}

	limit := core.Money{Cents: 6000}
	updated, err := svc.Update(ctx, owner, b.ID, core.BudgetUpdate{Limit: &limit})
	if err != nil || updated.Limit.Cents != 6000 {
		t.Fatalf("Update() = %+v, %v", updated, err)
	}

	if _, err := svc.Status(ctx, 2, b.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("other owner Status() error = %v, want ErrNotFound", err)
	}
}

func TestPaymentService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewPaymentService(f.store)
	today := core.NewDate(2024, 4, 1)

	p, err := svc.Create(ctx, core.Payment{
		OwnerID: owner, AccountID: f.account, CategoryID: f.groceries,
		Description: "  Internet ", Amount: core.Money{Cents: 3999}, Frequency: core.Monthly,
		NextDue: core.NewDate(2024, 4, 5),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !p.Active || p.LeadDays != core.DefaultLeadDays || p.Description != "Internet" {
		t.Errorf("defaults not applied: %+v", p)
	}

	upcoming, err := svc.Upcoming(ctx, owner, today, 0)
	if err != nil || len(upcoming) != 1 {
		t.Fatalf("Upcoming() = %+v, %v", upcoming, err)
	}
	if _, err := svc.Upcoming(ctx, owner, today, 400); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("Upcoming(400) error = %v", err)
	}

	if err := svc.Cancel(ctx, owner, p.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	stored, err := svc.Get(ctx, owner, p.ID)
	if err != nil || stored.Active {
		t.Fatalf("cancelled payment = %+v, %v", stored, err)
	}
	upcoming, _ = svc.Upcoming(ctx, owner, today, 30)
	if len(upcoming) != 0 {
		t.Fatalf("cancelled payment still upcoming")
	}

	if err := svc.Cancel(ctx, 2, p.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("foreign Cancel() error = %v", err)
	}
}

func TestNotificationService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewNotificationService(f.store)

	id, _, _ := f.store.InsertNotification(ctx, core.Notification{OwnerID: owner, Kind: core.KindBudgetExceeded, Message: "a"})
	_, _, _ = f.store.InsertNotification(ctx, core.Notification{OwnerID: owner, Kind: core.KindScheduledPayment, Message: "b"})

	if _, err := svc.List(ctx, owner, ledger.NotificationFilter{Limit: 1001}); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("List(1001) error = %v", err)
	}
	if _, err := svc.List(ctx, owner, ledger.NotificationFilter{Kind: "bogus"}); !errors.Is(err, core.ErrInvalidKind) {
		t.Fatalf("List(bogus kind) error = %v", err)
	}
	all, err := svc.List(ctx, owner, ledger.NotificationFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("List() = %d, %v", len(all), err)
	}

	n, err := svc.Get(ctx, owner, id)
	if err != nil || n.State != core.StateRead {
		t.Fatalf("Get() = %+v, %v; should mark read", n, err)
	}
	pending, _ := svc.Pending(ctx, owner)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	if _, err := svc.Get(ctx, 2, id); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("foreign Get() error = %v", err)
	}
	if err := svc.Delete(ctx, owner, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, owner, id); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("Get() after delete error = %v", err)
	}

	prefs, _ := svc.Preferences(ctx, owner)
	if prefs != core.DefaultPreferences(owner) {
		t.Fatalf("default preferences = %+v", prefs)
	}
}
