package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lana/internal/core"
	"lana/internal/lock"
	"lana/internal/services"
)

// RecurringConfig holds configuration for the scheduled payment loop.
type RecurringConfig struct {
	// Interval between runs (default: 1h)
	Interval time.Duration

	// LockTTL bounds how long a crashed run can block other replicas (default: 10m)
	LockTTL time.Duration

	// Location decides which calendar day "today" is (default: UTC)
	Location *time.Location
}

func DefaultRecurringConfig() RecurringConfig {
	return RecurringConfig{
		Interval: time.Hour,
		LockTTL:  10 * time.Minute,
		Location: time.UTC,
	}
}

type recurringProcessor interface {
	ProcessDuePayments(ctx context.Context, today core.Date) ([]services.PaymentOutcome, error)
	RemindUpcoming(ctx context.Context, today core.Date) (int, error)
}

// RunSummary reports one pass of the recurring loop.
type RunSummary struct {
	Date      core.Date
	Skipped   bool
	Processed int
	Failed    int
	// AlreadyProcessed counts payments another run materialized first.
	AlreadyProcessed int
	Reminders        int
}

// RecurringRunner materializes due payments and emits reminders on a timer.
// Each pass holds a per-day lock so replicas do not process the same batch
// at the same time.
type RecurringRunner struct {
	processor recurringProcessor
	locker    lock.Locker
	config    RecurringConfig
	now       func() time.Time

	mu      sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce *sync.Once
}

func NewRecurringRunner(processor recurringProcessor, locker lock.Locker, config RecurringConfig) *RecurringRunner {
	def := DefaultRecurringConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = def.LockTTL
	}
	if config.Location == nil {
		config.Location = def.Location
	}
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &RecurringRunner{processor: processor, locker: locker, config: config, now: time.Now}
}

// RunOnce processes payments due today and then emits reminders. A pass that
// finds the lock taken is skipped without error.
func (r *RecurringRunner) RunOnce(ctx context.Context) (RunSummary, error) {
	today := core.DateOf(r.now().In(r.config.Location))
	summary := RunSummary{Date: today}

	release, err := r.locker.Acquire(ctx, "recurring:"+today.String(), r.config.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		slog.InfoContext(ctx, "Recurring run skipped, another worker holds the lock", "date", today.String())
		summary.Skipped = true
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("acquire recurring lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "Failed to release recurring lock", "error", err)
		}
	}()

	outcomes, err := r.processor.ProcessDuePayments(ctx, today)
	for _, o := range outcomes {
		switch o.Status {
		case services.StatusProcessed:
			summary.Processed++
		case services.StatusSkipped:
			summary.AlreadyProcessed++
		default:
			summary.Failed++
		}
	}
	if err != nil {
		return summary, fmt.Errorf("process due payments: %w", err)
	}

	summary.Reminders, err = r.processor.RemindUpcoming(ctx, today)
	if err != nil {
		return summary, fmt.Errorf("remind upcoming payments: %w", err)
	}

	slog.InfoContext(ctx, "Recurring run complete",
		"date", today.String(),
		"processed", summary.Processed,
		"failed", summary.Failed,
		"already_processed", summary.AlreadyProcessed,
		"reminders", summary.Reminders)
	return summary, nil
}

// Start begins the loop. The first pass runs immediately.
func (r *RecurringRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("recurring runner is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.stopOnce = new(sync.Once)
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	go r.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Recurring runner started", "interval", r.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (r *RecurringRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh, once := r.stopCh, r.doneCh, r.stopOnce
	r.mu.Unlock()

	// A Stop that timed out leaves the runner marked running; a later Stop
	// waits on the same loop again.
	once.Do(func() { close(stopCh) })

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Recurring runner stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring runner stop timed out")
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

func (r *RecurringRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *RecurringRunner) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.pass(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

func (r *RecurringRunner) pass(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Recurring run failed", "error", err)
	}
}
