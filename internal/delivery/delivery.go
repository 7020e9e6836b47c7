// Package delivery sends stored notifications out on a concrete channel.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lana/internal/core"
)

var ErrNoDeliverer = errors.New("no deliverer for channel")

// Deliverer hands one notification to an external system.
type Deliverer interface {
	Deliver(ctx context.Context, n core.Notification) error
}

// Router picks the Deliverer registered for a channel.
type Router map[core.Channel]Deliverer

func (r Router) Deliver(ctx context.Context, ch core.Channel, n core.Notification) error {
	d, ok := r[ch]
	if !ok || d == nil {
		return fmt.Errorf("%w: %s", ErrNoDeliverer, ch)
	}
	return d.Deliver(ctx, n)
}

// LogDeliverer writes the notification to the structured log. It stands in
// for channels without a provider configured.
type LogDeliverer struct {
	Channel core.Channel
	Logger  *slog.Logger
}

func (d LogDeliverer) Deliver(ctx context.Context, n core.Notification) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Notification delivered",
		"channel", string(d.Channel),
		"notification_id", n.ID,
		"owner_id", n.OwnerID,
		"kind", string(n.Kind),
		"message", n.Message)
	return nil
}
