package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lana/internal/amqp"
	"lana/internal/core"
	"lana/internal/ledger"
	applog "lana/internal/log"
	"lana/internal/metrics"
)

const noChannel = "none"

// NotifyStore is what the worker needs from storage.
type NotifyStore interface {
	GetNotification(ctx context.Context, id int64) (core.Notification, error)
	PendingNotifications(ctx context.Context, owner int64, limit int) ([]core.Notification, error)
	SetNotificationState(ctx context.Context, id int64, state core.NotificationState, ch core.Channel, at time.Time) error
	GetPreferences(ctx context.Context, owner int64) (core.NotificationPreferences, error)
}

// Sender delivers a notification on a given channel. delivery.Router
// satisfies it.
type Sender interface {
	Deliver(ctx context.Context, ch core.Channel, n core.Notification) error
}

// NotifyWorker moves pending notifications to sent or failed by handing them
// to the channel their owner prefers.
type NotifyWorker struct {
	store     NotifyStore
	sender    Sender
	metrics   *metrics.Metrics
	batchSize int
	now       func() time.Time
}

func NewNotifyWorker(store NotifyStore, sender Sender, batchSize int, m *metrics.Metrics) *NotifyWorker {
	if batchSize <= 0 {
		batchSize = DefaultSweeperConfig().BatchSize
	}
	return &NotifyWorker{
		store:     store,
		sender:    sender,
		metrics:   m,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HandleNotificationMessage processes a single notification message from
// AMQP. A returned error requeues the message, so only storage failures that
// may heal are reported; delivery failures end up on the row instead.
func (w *NotifyWorker) HandleNotificationMessage(ctx context.Context, msg *amqp.NotificationMessage) error {
	n, err := w.store.GetNotification(ctx, msg.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		slog.WarnContext(ctx, "Notification no longer exists, dropping message", applog.FieldNotificationID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}

	if n.State != core.StatePending {
		slog.DebugContext(ctx, "Notification already handled", applog.FieldNotificationID, n.ID, "state", string(n.State))
		return nil
	}

	_, err = w.deliver(ctx, n)
	return err
}

// ProcessPending delivers a batch of pending notifications. It backs up the
// AMQP path when messages are lost or the broker is down.
func (w *NotifyWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupCheck drains a larger backlog once, after worker downtime.
func (w *NotifyWorker) StartupCheck(ctx context.Context) error {
	sent, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup delivery check: %w", err)
	}
	slog.InfoContext(ctx, "Startup delivery check completed", "sent", sent)
	return nil
}

func (w *NotifyWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingNotifications(ctx, 0, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending notifications: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending notifications", "count", len(pending))

	sent := 0
	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		ok, err := w.deliver(ctx, n)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to deliver notification", applog.FieldNotificationID, n.ID, applog.FieldError, err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// deliver reports whether the notification went out. Errors are storage
// errors; a refused delivery is recorded as a failed row and is not an error.
func (w *NotifyWorker) deliver(ctx context.Context, n core.Notification) (bool, error) {
	prefs, err := w.store.GetPreferences(ctx, n.OwnerID)
	if err != nil {
		return false, fmt.Errorf("get preferences: %w", err)
	}

	ch, ok := prefs.PreferredChannel()
	if !ok {
		slog.InfoContext(ctx, "All channels disabled, notification not delivered",
			applog.FieldNotificationID, n.ID,
			applog.FieldOwnerID, n.OwnerID)
		w.metrics.Delivery(noChannel, string(core.StateFailed))
		return false, w.mark(ctx, n.ID, core.StateFailed, "")
	}

	if err := w.sender.Deliver(ctx, ch, n); err != nil {
		slog.ErrorContext(ctx, "Delivery failed",
			applog.FieldNotificationID, n.ID,
			"channel", string(ch),
			applog.FieldError, err)
		w.metrics.Delivery(string(ch), string(core.StateFailed))
		return false, w.mark(ctx, n.ID, core.StateFailed, ch)
	}

	w.metrics.Delivery(string(ch), string(core.StateSent))
	if err := w.mark(ctx, n.ID, core.StateSent, ch); err != nil {
		return false, err
	}

	slog.InfoContext(ctx, "Notification sent",
		applog.FieldNotificationID, n.ID,
		applog.FieldOwnerID, n.OwnerID,
		"channel", string(ch))
	return true, nil
}

func (w *NotifyWorker) mark(ctx context.Context, id int64, state core.NotificationState, ch core.Channel) error {
	if err := w.store.SetNotificationState(ctx, id, state, ch, w.now()); err != nil {
		return fmt.Errorf("mark notification %s: %w", state, err)
	}
	return nil
}
