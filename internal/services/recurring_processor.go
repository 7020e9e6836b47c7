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

// AutomaticPaymentPrefix starts the description of every transaction the
// processor materializes.
const AutomaticPaymentPrefix = "Automatic payment: "

type PaymentStatus string

const (
	StatusProcessed PaymentStatus = "processed"
	StatusFailed    PaymentStatus = "failed"
	// StatusSkipped means another run materialized the occurrence first.
	StatusSkipped PaymentStatus = "skipped"
)

// PaymentOutcome reports what happened to one due payment in a batch.
type PaymentOutcome struct {
	PaymentID     int64
	TransactionID int64
	Status        PaymentStatus
	NextDue       core.Date
	Deactivated   bool
	Err           error
}

// ReminderKey identifies the reminder for one occurrence of a payment.
func ReminderKey(payment int64, due core.Date) string {
	return fmt.Sprintf("reminder:%d:%s", payment, due)
}

// RecurringProcessor turns due scheduled payments into ledger transactions.
type RecurringProcessor struct {
	payments      ledger.PaymentReader
	store         ledger.Transactor
	notifications ledger.NotificationWriter
	evaluator     ExpenseEvaluator
	publisher     NotificationPublisher
	metrics       *metrics.Metrics
	selection     ledger.Selection
	now           func() time.Time
}

type ProcessorOption func(*RecurringProcessor)

// WithSelection picks which payments count as due. The default is ledger.OnOrBefore.
func WithSelection(sel ledger.Selection) ProcessorOption {
	return func(p *RecurringProcessor) { p.selection = sel }
}

// WithEvaluator evaluates each materialized expense against its budget.
func WithEvaluator(e ExpenseEvaluator) ProcessorOption {
	return func(p *RecurringProcessor) { p.evaluator = e }
}

func WithProcessorPublisher(pub NotificationPublisher) ProcessorOption {
	return func(p *RecurringProcessor) { p.publisher = pub }
}

func WithProcessorMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *RecurringProcessor) { p.metrics = m }
}

func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *RecurringProcessor) { p.now = now }
}

// ProcessorStore is the storage a processor needs.
type ProcessorStore interface {
	ledger.PaymentReader
	ledger.Transactor
	ledger.NotificationWriter
}

func NewRecurringProcessor(store ProcessorStore, opts ...ProcessorOption) *RecurringProcessor {
	p := &RecurringProcessor{
		payments:      store,
		store:         store,
		notifications: store,
		selection:     ledger.OnOrBefore,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessDuePayments materializes one occurrence of every due payment. Each
// payment commits or rolls back on its own, so one failure never affects the
// others. The error return is reserved for failing to select the batch or for
// cancellation, in which case the outcomes gathered so far come back with it.
func (p *RecurringProcessor) ProcessDuePayments(ctx context.Context, today core.Date) ([]PaymentOutcome, error) {
	if p.payments == nil || p.store == nil {
		return nil, fmt.Errorf("processor not properly initialized")
	}
	start := time.Now()
	defer func() { p.metrics.ObserveBatch(time.Since(start)) }()

	due, err := p.payments.DuePayments(ctx, today, p.selection)
	if err != nil {
		return nil, fmt.Errorf("failed to get due payments: %w", err)
	}

	slog.InfoContext(ctx, "Processing scheduled payments",
		"due", len(due),
		"processing_date", today.String(),
		"selection", p.selection)

	outcomes := make([]PaymentOutcome, 0, len(due))
	processed := 0
	for _, pay := range due {
		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "Scheduled payment batch interrupted",
				"processed", processed,
				"remaining", len(due)-len(outcomes),
				"reason", err)
			return outcomes, err
		}

		out := p.processOne(ctx, pay)
		outcomes = append(outcomes, out)
		p.metrics.PaymentProcessed(string(out.Status))
		if out.Status == StatusProcessed {
			processed++
		}
	}

	slog.InfoContext(ctx, "Scheduled payment processing complete",
		"processed", processed,
		"failed", countStatus(outcomes, StatusFailed),
		"skipped", countStatus(outcomes, StatusSkipped),
		"total_checked", len(due))

	return outcomes, nil
}

func countStatus(outcomes []PaymentOutcome, st PaymentStatus) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == st {
			n++
		}
	}
	return n
}

func (p *RecurringProcessor) processOne(ctx context.Context, pay core.Payment) PaymentOutcome {
	out := PaymentOutcome{PaymentID: pay.ID, Status: StatusFailed, NextDue: pay.NextDue}
	occurrence := pay.NextDue

	next, active, err := pay.NextOccurrence()
	if err != nil {
		out.Err = fmt.Errorf("advance next due date: %w", err)
		slog.ErrorContext(ctx, "Failed to compute next due date",
			applog.FieldPaymentID, pay.ID,
			"frequency", pay.Frequency,
			"next_due", occurrence.String(),
			applog.FieldError, err)
		return out
	}

	var txID int64
	err = p.store.InTx(ctx, func(ctx context.Context, w ledger.Writer) error {
		id, err := w.InsertTransaction(ctx, core.Transaction{
			OwnerID:     pay.OwnerID,
			AccountID:   pay.AccountID,
			CategoryID:  pay.CategoryID,
			Amount:      pay.Amount,
			Date:        occurrence,
			Description: AutomaticPaymentPrefix + pay.Description,
		})
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := w.AdvancePayment(ctx, pay.ID, occurrence, next, active); err != nil {
			return fmt.Errorf("advance payment: %w", err)
		}
		txID = id
		return nil
	})
	if errors.Is(err, ledger.ErrConflict) {
		out.Status = StatusSkipped
		slog.InfoContext(ctx, "Scheduled payment already processed by another run",
			applog.FieldPaymentID, pay.ID,
			"occurred_on", occurrence.String())
		return out
	}
	if err != nil {
		out.Err = err
		slog.ErrorContext(ctx, "Failed to process scheduled payment",
			applog.FieldPaymentID, pay.ID,
			"description", pay.Description,
			applog.FieldError, err)
		return out
	}

	out.Status = StatusProcessed
	out.TransactionID = txID
	out.NextDue = next
	out.Deactivated = !active

	slog.InfoContext(ctx, "Created transaction from scheduled payment",
		applog.FieldPaymentID, pay.ID,
		applog.FieldTransactionID, txID,
		applog.FieldAmountCents, pay.Amount.Cents,
		"frequency", pay.Frequency,
		"occurred_on", occurrence.String(),
		"next_due", next.String(),
		"active", active)

	if p.evaluator != nil {
		if err := p.evaluator.Evaluate(ctx, pay.OwnerID, pay.CategoryID, occurrence, pay.Amount); err != nil {
			slog.ErrorContext(ctx, "Failed to evaluate budget for scheduled payment",
				applog.FieldPaymentID, pay.ID,
				applog.FieldCategoryID, pay.CategoryID,
				applog.FieldError, err)
		}
	}

	return out
}

// RemindUpcoming stores one scheduled-payment notification for each active
// payment falling due within its lead window after today. A reminder is
// stored at most once per payment occurrence.
func (p *RecurringProcessor) RemindUpcoming(ctx context.Context, today core.Date) (int, error) {
	if p.payments == nil || p.notifications == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	upcoming, err := p.payments.UpcomingPayments(ctx, 0, today.AddDays(1), today.AddDays(30))
	if err != nil {
		return 0, fmt.Errorf("failed to get upcoming payments: %w", err)
	}

	emitted := 0
	for _, pay := range upcoming {
		if err := ctx.Err(); err != nil {
			return emitted, err
		}

		lead := pay.LeadDays
		if lead <= 0 {
			lead = core.DefaultLeadDays
		}
		if pay.NextDue.After(today.AddDays(lead)) {
			continue
		}

		daysLeft := int(pay.NextDue.Sub(today.Time).Hours() / 24)
		id, inserted, err := p.notifications.InsertNotification(ctx, core.Notification{
			OwnerID:      pay.OwnerID,
			Kind:         core.KindScheduledPayment,
			Message:      fmt.Sprintf("Scheduled payment %q of %s is due on %s", pay.Description, pay.Amount, pay.NextDue),
			ScheduledFor: p.now(),
			State:        core.StatePending,
			Payload: map[string]any{
				"payment_id":   pay.ID,
				"due_date":     pay.NextDue.String(),
				"amount_cents": pay.Amount.Cents,
				"days_left":    daysLeft,
			},
			DedupKey: ReminderKey(pay.ID, pay.NextDue),
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to store payment reminder",
				applog.FieldPaymentID, pay.ID,
				applog.FieldError, err)
			continue
		}
		if !inserted {
			continue
		}

		emitted++
		p.metrics.ReminderEmitted()
		publish(ctx, p.publisher, id)
	}

	slog.InfoContext(ctx, "Payment reminders complete",
		"emitted", emitted,
		"checked", len(upcoming))

	return emitted, nil
}
