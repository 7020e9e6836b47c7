package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lana/internal/core"
	"lana/internal/ledger/memory"
)

const owner = int64(1)

type fixture struct {
	store     *memory.Store
	account   int64
	groceries int64
	salary    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	acc, err := s.CreateAccount(ctx, core.Account{OwnerID: owner, Name: "Checking", Kind: core.Bank})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	groceries, err := s.CreateCategory(ctx, core.Category{Name: "Groceries", Kind: core.Expense})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	salary, err := s.CreateCategory(ctx, core.Category{Name: "Salary", Kind: core.Income})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return &fixture{store: s, account: acc, groceries: groceries, salary: salary}
}

func (f *fixture) budget(t *testing.T, p core.Period, limit int64, alert80, alert100 bool) int64 {
	t.Helper()
	id, err := f.store.CreateBudget(context.Background(), core.Budget{
		OwnerID: owner, CategoryID: f.groceries, Period: p,
		Limit: core.Money{Cents: limit}, Alert80: alert80, Alert100: alert100,
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	return id
}

func (f *fixture) spend(t *testing.T, date core.Date, cents int64) {
	t.Helper()
	_, err := f.store.InsertTransaction(context.Background(), core.Transaction{
		OwnerID: owner, AccountID: f.account, CategoryID: f.groceries,
		Amount: core.Money{Cents: cents}, Date: date,
	})
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
}

func (f *fixture) payment(t *testing.T, desc string, freq core.Frequency, due core.Date, cents int64) int64 {
	t.Helper()
	id, err := f.store.CreatePayment(context.Background(), core.Payment{
		OwnerID: owner, AccountID: f.account, CategoryID: f.groceries,
		Description: desc, Amount: core.Money{Cents: cents}, Frequency: freq,
		NextDue: due, Active: true, LeadDays: core.DefaultLeadDays,
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return id
}

func (f *fixture) alerts(t *testing.T) []core.Notification {
	t.Helper()
	list, err := f.store.PendingNotifications(context.Background(), owner, 0)
	if err != nil {
		t.Fatalf("pending notifications: %v", err)
	}
	return list
}

type recordingPublisher struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (p *recordingPublisher) PublishNotification(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return p.err
}

type failingEvaluator struct{ calls int }

func (e *failingEvaluator) Evaluate(context.Context, int64, int64, core.Date, core.Money) error {
	e.calls++
	return errors.New("evaluator down")
}

func fixedClock() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }
