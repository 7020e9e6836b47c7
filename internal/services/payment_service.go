package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lana/internal/core"
	"lana/internal/ledger"
)

// DefaultUpcomingDays is the look-ahead window of Upcoming when none is given.
const DefaultUpcomingDays = 7

var ErrInvalidWindow = errors.New("days must be between 1 and 365")

type PaymentServiceStore interface {
	ledger.PaymentStore
	CatalogStore
}

// PaymentService manages scheduled payments. Payments are never deleted;
// cancelling one deactivates it.
type PaymentService struct {
	store PaymentServiceStore
}

func NewPaymentService(store PaymentServiceStore) *PaymentService {
	return &PaymentService{store: store}
}

func (s *PaymentService) Create(ctx context.Context, p core.Payment) (core.Payment, error) {
	p.Description = strings.TrimSpace(p.Description)
	if p.LeadDays == 0 {
		p.LeadDays = core.DefaultLeadDays
	}
	p.Active = true
	if p.DueDay == 0 && !p.NextDue.IsZero() {
		p.DueDay = p.NextDue.Day()
	}
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}
	if _, err := checkRefs(ctx, s.store, p.OwnerID, p.AccountID, p.CategoryID); err != nil {
		return core.Payment{}, err
	}

	id, err := s.store.CreatePayment(ctx, p)
	if err != nil {
		return core.Payment{}, fmt.Errorf("create payment: %w", err)
	}
	p.ID = id
	return p, nil
}

func (s *PaymentService) Get(ctx context.Context, owner, id int64) (core.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return core.Payment{}, err
	}
	if p.OwnerID != owner {
		return core.Payment{}, ledger.ErrNotFound
	}
	return p, nil
}

func (s *PaymentService) Update(ctx context.Context, owner, id int64, u core.PaymentUpdate) (core.Payment, error) {
	if err := u.Validate(); err != nil {
		return core.Payment{}, err
	}
	p, err := s.Get(ctx, owner, id)
	if err != nil {
		return core.Payment{}, err
	}
	u.Apply(&p)
	if err := s.store.UpdatePayment(ctx, p); err != nil {
		return core.Payment{}, fmt.Errorf("update payment: %w", err)
	}
	return p, nil
}

// Cancel deactivates the payment; its history stays in the ledger.
func (s *PaymentService) Cancel(ctx context.Context, owner, id int64) error {
	inactive := false
	_, err := s.Update(ctx, owner, id, core.PaymentUpdate{Active: &inactive})
	return err
}

// Upcoming lists the owner's active payments due between today and
// today+days inclusive.
func (s *PaymentService) Upcoming(ctx context.Context, owner int64, today core.Date, days int) ([]core.Payment, error) {
	if days == 0 {
		days = DefaultUpcomingDays
	}
	if days < 1 || days > 365 {
		return nil, ErrInvalidWindow
	}
	return s.store.UpcomingPayments(ctx, owner, today, today.AddDays(days))
}
