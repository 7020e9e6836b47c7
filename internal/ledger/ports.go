// Package ledger defines the storage ports the services depend on.
package ledger

import (
	"context"
	"errors"
	"time"

	"lana/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Selection decides which active payments count as due on a given day.
type Selection string

const (
	// OnOrBefore picks payments whose next-due date is today or earlier, so
	// a missed run catches up.
	OnOrBefore Selection = "on-or-before"
	// Exact picks only payments due today.
	Exact Selection = "exact"
)

func (s Selection) Valid() bool { return s == OnOrBefore || s == Exact }

// NotificationFilter narrows a notification listing. Limit is clamped by the
// service before it reaches the store.
type NotificationFilter struct {
	Read  *bool
	Kind  core.NotificationKind
	Limit int
}

// Ports for the evaluator and the processor.
type (
	BudgetReader interface {
		// FindBudget returns ErrNotFound when no budget covers the period.
		FindBudget(ctx context.Context, owner, category int64, p core.Period) (core.Budget, error)
	}

	ExpenseAggregator interface {
		// SumExpenses totals expense-kind transactions for the period; zero when none.
		SumExpenses(ctx context.Context, owner, category int64, p core.Period) (core.Money, error)
	}

	// ReportReader aggregates an owner's ledger. Amounts are signed sums and
	// groups without transactions are left out.
	ReportReader interface {
		// CategoryTotals sums transactions per category over [from, to).
		CategoryTotals(ctx context.Context, owner int64, from, to core.Date) ([]core.CategoryAmount, error)
		// MonthlyTotals sums income and expense per calendar month of year.
		MonthlyTotals(ctx context.Context, owner int64, year int) ([]core.MonthTotals, error)
	}

	PaymentReader interface {
		DuePayments(ctx context.Context, today core.Date, sel Selection) ([]core.Payment, error)
		// UpcomingPayments lists active payments due in [from, to]. Owner 0 means every owner.
		UpcomingPayments(ctx context.Context, owner int64, from, to core.Date) ([]core.Payment, error)
	}

	TransactionWriter interface {
		InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	}

	NotificationWriter interface {
		// InsertNotification stores n. When n.DedupKey is already taken the
		// row is dropped and inserted is false.
		InsertNotification(ctx context.Context, n core.Notification) (id int64, inserted bool, err error)
	}

	PaymentWriter interface {
		// AdvancePayment moves an active payment from the occurrence due on
		// from to next. It returns ErrConflict when the payment is no longer
		// active or no longer due on from, which means another run already
		// materialized that occurrence.
		AdvancePayment(ctx context.Context, id int64, from, next core.Date, active bool) error
	}

	// Writer is what a unit of work may touch.
	Writer interface {
		TransactionWriter
		PaymentWriter
		NotificationWriter
	}

	// Transactor runs fn atomically: every write made through w commits
	// together or not at all.
	Transactor interface {
		InTx(ctx context.Context, fn func(ctx context.Context, w Writer) error) error
	}
)

// Ports for the CRUD surface.
type (
	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) (int64, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	AccountStore interface {
		CreateAccount(ctx context.Context, a core.Account) (int64, error)
		GetAccount(ctx context.Context, id int64) (core.Account, error)
	}

	BudgetStore interface {
		BudgetReader
		// CreateBudget returns ErrConflict when the owner already has a budget
		// for that category and period.
		CreateBudget(ctx context.Context, b core.Budget) (int64, error)
		GetBudget(ctx context.Context, id int64) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) error
		// ListBudgets returns the owner's budgets for p ordered by category name.
		ListBudgets(ctx context.Context, owner int64, p core.Period) ([]core.Budget, error)
	}

	PaymentStore interface {
		PaymentReader
		CreatePayment(ctx context.Context, p core.Payment) (int64, error)
		GetPayment(ctx context.Context, id int64) (core.Payment, error)
		UpdatePayment(ctx context.Context, p core.Payment) error
	}

	NotificationStore interface {
		NotificationWriter
		GetNotification(ctx context.Context, id int64) (core.Notification, error)
		ListNotifications(ctx context.Context, owner int64, f NotificationFilter) ([]core.Notification, error)
		// PendingNotifications returns pending rows oldest first. Owner 0 means every owner.
		PendingNotifications(ctx context.Context, owner int64, limit int) ([]core.Notification, error)
		SetNotificationState(ctx context.Context, id int64, state core.NotificationState, ch core.Channel, at time.Time) error
		DeleteNotification(ctx context.Context, id int64) error
	}

	PreferenceStore interface {
		// GetPreferences falls back to core.DefaultPreferences when the owner never saved any.
		GetPreferences(ctx context.Context, owner int64) (core.NotificationPreferences, error)
		SavePreferences(ctx context.Context, p core.NotificationPreferences) error
	}
)

// Store is the full persistence surface a backend provides.
type Store interface {
	Transactor
	Writer
	ExpenseAggregator
	ReportReader
	CategoryStore
	AccountStore
	BudgetStore
	PaymentStore
	NotificationStore
	PreferenceStore
	Ping(ctx context.Context) error
	Close() error
}
