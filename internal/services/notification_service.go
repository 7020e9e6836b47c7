package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lana/internal/core"
	"lana/internal/ledger"
)

const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 1000
)

var ErrInvalidLimit = errors.New("limit must be between 1 and 1000")

type NotificationServiceStore interface {
	ledger.NotificationStore
	ledger.PreferenceStore
}

// NotificationService is the owner-facing side of notifications: listing,
// reading and deleting them, and managing delivery preferences.
type NotificationService struct {
	store NotificationServiceStore
	now   func() time.Time
}

func NewNotificationService(store NotificationServiceStore) *NotificationService {
	return &NotificationService{store: store, now: time.Now}
}

func (s *NotificationService) List(ctx context.Context, owner int64, f ledger.NotificationFilter) ([]core.Notification, error) {
	if f.Limit == 0 {
		f.Limit = DefaultNotificationLimit
	}
	if f.Limit < 1 || f.Limit > MaxNotificationLimit {
		return nil, ErrInvalidLimit
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, core.ErrInvalidKind
	}
	return s.store.ListNotifications(ctx, owner, f)
}

func (s *NotificationService) Pending(ctx context.Context, owner int64) ([]core.Notification, error) {
	return s.store.PendingNotifications(ctx, owner, MaxNotificationLimit)
}

// Get returns the notification and marks it read if it was still pending.
func (s *NotificationService) Get(ctx context.Context, owner, id int64) (core.Notification, error) {
	n, err := s.owned(ctx, owner, id)
	if err != nil {
		return core.Notification{}, err
	}
	if n.State == core.StatePending {
		if err := s.store.SetNotificationState(ctx, id, core.StateRead, "", s.now()); err != nil {
			return core.Notification{}, fmt.Errorf("mark notification read: %w", err)
		}
		n.State = core.StateRead
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, owner, id int64) error {
	if _, err := s.owned(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.SetNotificationState(ctx, id, core.StateRead, "", s.now()); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, owner, id int64) error {
	if _, err := s.owned(ctx, owner, id); err != nil {
		return err
	}
	return s.store.DeleteNotification(ctx, id)
}

func (s *NotificationService) Preferences(ctx context.Context, owner int64) (core.NotificationPreferences, error) {
	return s.store.GetPreferences(ctx, owner)
}

func (s *NotificationService) SavePreferences(ctx context.Context, p core.NotificationPreferences) error {
	if p.OwnerID <= 0 {
		return core.ErrInvalidOwner
	}
	return s.store.SavePreferences(ctx, p)
}

func (s *NotificationService) owned(ctx context.Context, owner, id int64) (core.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return core.Notification{}, err
	}
	if n.OwnerID != owner {
		return core.Notification{}, ledger.ErrNotFound
	}
	return n, nil
}
