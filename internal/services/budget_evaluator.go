package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lana/internal/core"
	"lana/internal/ledger"
	applog "lana/internal/log"
	"lana/internal/metrics"
)

// NotificationPublisher hands a stored notification to the delivery queue.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, id int64) error
}

// ExpenseEvaluator is what recorders of expenses call after each write.
type ExpenseEvaluator interface {
	Evaluate(ctx context.Context, owner, category int64, date core.Date, amount core.Money) error
}

// BudgetAlertKey identifies one alert tier of one budget period at one limit.
// Changing the limit starts a fresh set of alerts for the period.
func BudgetAlertKey(owner, category int64, p core.Period, limit core.Money, tier core.AlertTier) string {
	return fmt.Sprintf("budget:%d:%d:%s:%d:%s", owner, category, p, limit.Cents, tier)
}

// BudgetEvaluator raises a budget-exceeded notification when the spend of a
// category crosses 80% or 100% of its monthly limit.
type BudgetEvaluator struct {
	budgets       ledger.BudgetReader
	expenses      ledger.ExpenseAggregator
	notifications ledger.NotificationWriter
	publisher     NotificationPublisher
	metrics       *metrics.Metrics
	dedup         bool
	now           func() time.Time
}

type EvaluatorOption func(*BudgetEvaluator)

// WithAlertDedup toggles the one-alert-per-tier-per-period rule. It is on by default.
func WithAlertDedup(on bool) EvaluatorOption {
	return func(e *BudgetEvaluator) { e.dedup = on }
}

func WithEvaluatorPublisher(p NotificationPublisher) EvaluatorOption {
	return func(e *BudgetEvaluator) { e.publisher = p }
}

func WithEvaluatorMetrics(m *metrics.Metrics) EvaluatorOption {
	return func(e *BudgetEvaluator) { e.metrics = m }
}

func WithEvaluatorClock(now func() time.Time) EvaluatorOption {
	return func(e *BudgetEvaluator) { e.now = now }
}

func NewBudgetEvaluator(budgets ledger.BudgetReader, expenses ledger.ExpenseAggregator, notifications ledger.NotificationWriter, opts ...EvaluatorOption) *BudgetEvaluator {
	e := &BudgetEvaluator{
		budgets:       budgets,
		expenses:      expenses,
		notifications: notifications,
		dedup:         true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate checks the budget covering (owner, category, date) against the
// spend recorded so far. No budget means no work. Only the highest enabled
// tier fires; storage failures are returned, publish failures are logged.
func (e *BudgetEvaluator) Evaluate(ctx context.Context, owner, category int64, date core.Date, amount core.Money) error {
	period := core.PeriodOf(date)

	budget, err := e.budgets.FindBudget(ctx, owner, category, period)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find budget: %w", err)
	}

	spent, err := e.expenses.SumExpenses(ctx, owner, category, period)
	if err != nil {
		return fmt.Errorf("sum expenses: %w", err)
	}

	status := core.NewBudgetStatus(budget, spent)
	tier := status.Tier()
	if tier == core.TierNone {
		return nil
	}

	n := core.Notification{
		OwnerID:      owner,
		Kind:         core.KindBudgetExceeded,
		Message:      alertMessage(budget, tier),
		ScheduledFor: e.now(),
		State:        core.StatePending,
		Payload: map[string]any{
			"level":       string(tier),
			"category_id": category,
			"month":       period.Month,
			"year":        period.Year,
			"spent_cents": spent.Cents,
			"limit_cents": budget.Limit.Cents,
			"utilization": status.Utilization.StringFixed(4),
		},
	}
	if e.dedup {
		n.DedupKey = BudgetAlertKey(owner, category, period, budget.Limit, tier)
	}

	id, inserted, err := e.notifications.InsertNotification(ctx, n)
	if err != nil {
		return fmt.Errorf("insert budget alert: %w", err)
	}
	if !inserted {
		e.metrics.BudgetAlert(string(tier), "suppressed")
		slog.DebugContext(ctx, "Budget alert already raised for period",
			applog.FieldOwnerID, owner,
			applog.FieldCategoryID, category,
			applog.FieldTier, tier,
			"period", period.String())
		return nil
	}

	e.metrics.BudgetAlert(string(tier), "stored")
	slog.InfoContext(ctx, "Budget alert raised",
		applog.FieldNotificationID, id,
		applog.FieldOwnerID, owner,
		applog.FieldCategoryID, category,
		applog.FieldTier, tier,
		"spent_cents", spent.Cents,
		"limit_cents", budget.Limit.Cents,
		applog.FieldAmountCents, amount.Cents)

	publish(ctx, e.publisher, id)
	return nil
}

func alertMessage(b core.Budget, tier core.AlertTier) string {
	name := b.CategoryName
	if name == "" {
		name = fmt.Sprintf("category %d", b.CategoryID)
	}
	if tier == core.Tier100 {
		return fmt.Sprintf("Budget exceeded at 100%% for %s", name)
	}
	return fmt.Sprintf("Budget reached 80%% for %s", name)
}

// publish is best effort: the notification is already stored and the
// delivery sweep picks it up if the queue is unavailable.
func publish(ctx context.Context, p NotificationPublisher, id int64) {
	if p == nil {
		return
	}
	if err := p.PublishNotification(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish notification",
			applog.FieldNotificationID, id,
			applog.FieldError, err)
	}
}
