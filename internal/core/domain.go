package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  CategoryKind = "income"
	Expense CategoryKind = "expense"
)

const (
	Bank      AccountKind = "bank"
	Card      AccountKind = "card"
	Cash      AccountKind = "cash"
	OtherKind AccountKind = "other"
)

const (
	KindBudgetExceeded   NotificationKind = "budget-exceeded"
	KindScheduledPayment NotificationKind = "scheduled-payment"
	KindLowBalance       NotificationKind = "low-balance"
	KindRecovery         NotificationKind = "recovery"
)

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

const (
	StatePending NotificationState = "pending"
	StateSent    NotificationState = "sent"
	StateFailed  NotificationState = "failed"
	StateRead    NotificationState = "read"
)

// DefaultLeadDays is how many days ahead of a due date a reminder goes out
// when the payment does not say otherwise.
const DefaultLeadDays = 2

type (
	CategoryKind      string
	AccountKind       string
	NotificationKind  string
	Channel           string
	NotificationState string

	Category struct {
		ID   int64
		Name string
		Kind CategoryKind
	}

	Account struct {
		ID             int64
		OwnerID        int64
		Name           string
		Kind           AccountKind
		OpeningBalance Money
	}

	// Transaction is an immutable ledger entry. Amount is signed.
	Transaction struct {
		ID          int64
		OwnerID     int64
		AccountID   int64
		CategoryID  int64
		Amount      Money
		Date        Date
		Description string
	}

	Budget struct {
		ID           int64
		OwnerID      int64
		CategoryID   int64
		CategoryName string
		Period       Period
		Limit        Money
		Alert80      bool
		Alert100     bool
	}

	Payment struct {
		ID          int64
		OwnerID     int64
		AccountID   int64
		CategoryID  int64
		Description string
		Amount      Money
		Frequency   Frequency
		NextDue     Date

		// DueDay is the day of month the schedule is anchored to. Zero
		// means the day of NextDue.
		DueDay   int
		Active   bool
		LeadDays int
	}

	Notification struct {
		ID           int64
		OwnerID      int64
		Kind         NotificationKind
		Channel      Channel
		Message      string
		ScheduledFor time.Time
		SentAt       time.Time
		State        NotificationState
		Payload      map[string]any
		// DedupKey, when set, makes the row unique: a second insert with the
		// same key is dropped by the store.
		DedupKey string
	}

	NotificationPreferences struct {
		OwnerID int64
		ByEmail bool
		BySMS   bool
		ByPush  bool
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrInvalidOwner     = errors.New("invalid owner")
	ErrInvalidReference = errors.New("invalid account or category reference")
	ErrInvalidLeadDays  = errors.New("lead days must be between 1 and 30")
	ErrTooLong          = errors.New("value too long")
)

// DefaultPreferences mirrors what a user gets before touching their settings.
func DefaultPreferences(owner int64) NotificationPreferences {
	return NotificationPreferences{OwnerID: owner, ByEmail: true, ByPush: true}
}

// PreferredChannel picks the channel a notification goes out on. Push wins
// over email, email over SMS. ok is false when every channel is disabled.
func (p NotificationPreferences) PreferredChannel() (Channel, bool) {
	switch {
	case p.ByPush:
		return ChannelPush, true
	case p.ByEmail:
		return ChannelEmail, true
	case p.BySMS:
		return ChannelSMS, true
	default:
		return "", false
	}
}

func (k CategoryKind) Valid() bool { return k == Income || k == Expense }

func (k AccountKind) Valid() bool {
	switch k {
	case Bank, Card, Cash, OtherKind:
		return true
	}
	return false
}

func (k NotificationKind) Valid() bool {
	switch k {
	case KindBudgetExceeded, KindScheduledPayment, KindLowBalance, KindRecovery:
		return true
	}
	return false
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 50 {
		return fmt.Errorf("%w: name (max 50 characters)", ErrTooLong)
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (a Account) Validate() error {
	if a.OwnerID <= 0 {
		return ErrInvalidOwner
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return fmt.Errorf("%w: name (max 100 characters)", ErrTooLong)
	}
	if !a.Kind.Valid() {
		return ErrInvalidKind
	}
	if a.OpeningBalance.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.OwnerID <= 0 {
		return ErrInvalidOwner
	}
	if t.AccountID <= 0 || t.CategoryID <= 0 {
		return ErrInvalidReference
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 255 {
		return fmt.Errorf("%w: description (max 255 characters)", ErrTooLong)
	}
	return nil
}

func (b Budget) Validate() error {
	if b.OwnerID <= 0 {
		return ErrInvalidOwner
	}
	if b.CategoryID <= 0 {
		return ErrInvalidReference
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if err := b.Limit.Validate(); err != nil {
		return err
	}
	return nil
}

func (p Payment) Validate() error {
	if p.OwnerID <= 0 {
		return ErrInvalidOwner
	}
	if p.AccountID <= 0 || p.CategoryID <= 0 {
		return ErrInvalidReference
	}
	if len(strings.TrimSpace(p.Description)) < 2 {
		return ErrEmptyDescription
	}
	if len(p.Description) > 100 {
		return fmt.Errorf("%w: description (max 100 characters)", ErrTooLong)
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if !p.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if err := p.NextDue.Validate(); err != nil {
		return err
	}
	if p.LeadDays < 1 || p.LeadDays > 30 {
		return ErrInvalidLeadDays
	}
	if p.DueDay < 0 || p.DueDay > 31 {
		return fmt.Errorf("%w: due day %d", ErrInvalidDate, p.DueDay)
	}
	return nil
}

// NextOccurrence returns the due date following NextDue, honoring the
// anchored day of month.
func (p Payment) NextOccurrence() (next Date, active bool, err error) {
	day := p.DueDay
	if day == 0 {
		day = p.NextDue.Day()
	}
	return p.Frequency.AdvanceOnDay(p.NextDue, day)
}

// BudgetUpdate lists the fields of a budget that may change after creation.
// Nil fields are left untouched.
type BudgetUpdate struct {
	Limit    *Money
	Alert80  *bool
	Alert100 *bool
}

func (u BudgetUpdate) Validate() error {
	if u.Limit != nil {
		if err := u.Limit.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (u BudgetUpdate) Apply(b *Budget) {
	if u.Limit != nil {
		b.Limit = *u.Limit
	}
	if u.Alert80 != nil {
		b.Alert80 = *u.Alert80
	}
	if u.Alert100 != nil {
		b.Alert100 = *u.Alert100
	}
}

// PaymentUpdate lists the fields of a scheduled payment that may change.
// Owner, account and category are fixed at creation.
type PaymentUpdate struct {
	Description *string
	Amount      *Money
	Frequency   *Frequency
	NextDue     *Date
	Active      *bool
	LeadDays    *int
}

func (u PaymentUpdate) Validate() error {
	if u.Description != nil {
		d := strings.TrimSpace(*u.Description)
		if len(d) < 2 {
			return ErrEmptyDescription
		}
		if len(*u.Description) > 100 {
			return fmt.Errorf("%w: description (max 100 characters)", ErrTooLong)
		}
	}
	if u.Amount != nil {
		if err := u.Amount.Validate(); err != nil {
			return err
		}
	}
	if u.Frequency != nil && !u.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if u.NextDue != nil {
		if err := u.NextDue.Validate(); err != nil {
			return err
		}
	}
	if u.LeadDays != nil && (*u.LeadDays < 1 || *u.LeadDays > 30) {
		return ErrInvalidLeadDays
	}
	return nil
}

func (u PaymentUpdate) Apply(p *Payment) {
	if u.Description != nil {
		p.Description = strings.TrimSpace(*u.Description)
	}
	if u.Amount != nil {
		p.Amount = *u.Amount
	}
	if u.Frequency != nil {
		p.Frequency = *u.Frequency
	}
	if u.NextDue != nil {
		p.NextDue = *u.NextDue
		p.DueDay = u.NextDue.Day()
	}
	if u.Active != nil {
		p.Active = *u.Active
	}
	if u.LeadDays != nil {
		p.LeadDays = *u.LeadDays
	}
}
