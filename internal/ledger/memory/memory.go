// Package memory is an in-process ledger store used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lana/internal/core"
	"lana/internal/ledger"
)

// Hooks let tests inject failures at the write points of a unit of work.
// A non-nil error aborts the call before anything is staged.
type Hooks struct {
	InsertTransaction  func(core.Transaction) error
	AdvancePayment     func(id int64) error
	InsertNotification func(core.Notification) error
	SumExpenses        func(owner, category int64) error
}

type Store struct {
	mu    sync.Mutex
	st    *state
	Hooks Hooks
}

type state struct {
	nextID        int64
	categories    map[int64]core.Category
	accounts      map[int64]core.Account
	transactions  map[int64]core.Transaction
	budgets       map[int64]core.Budget
	payments      map[int64]core.Payment
	notifications map[int64]core.Notification
	dedup         map[string]int64
	prefs         map[int64]core.NotificationPreferences
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

func newState() *state {
	return &state{
		categories:    map[int64]core.Category{},
		accounts:      map[int64]core.Account{},
		transactions:  map[int64]core.Transaction{},
		budgets:       map[int64]core.Budget{},
		payments:      map[int64]core.Payment{},
		notifications: map[int64]core.Notification{},
		dedup:         map[string]int64{},
		prefs:         map[int64]core.NotificationPreferences{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		nextID:        s.nextID,
		categories:    cloneMap(s.categories),
		accounts:      cloneMap(s.accounts),
		transactions:  cloneMap(s.transactions),
		budgets:       cloneMap(s.budgets),
		payments:      cloneMap(s.payments),
		notifications: cloneMap(s.notifications),
		dedup:         cloneMap(s.dedup),
		prefs:         cloneMap(s.prefs),
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// InTx stages every write made through w on a copy of the store and swaps it
// in only when fn returns nil. fn must not call back into s.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, w ledger.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := s.st.clone()
	if err := fn(ctx, &writer{st: staged, hooks: &s.Hooks}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = staged
	return nil
}

// writer applies writes to a staged state without locking; the owning
// Store holds the mutex for the lifetime of the unit of work.
type writer struct {
	st    *state
	hooks *Hooks
}

func (w *writer) InsertTransaction(_ context.Context, tx core.Transaction) (int64, error) {
	return w.st.insertTransaction(w.hooks, tx)
}

func (w *writer) AdvancePayment(_ context.Context, id int64, from, next core.Date, active bool) error {
	return w.st.advancePayment(w.hooks, id, from, next, active)
}

func (w *writer) InsertNotification(_ context.Context, n core.Notification) (int64, bool, error) {
	return w.st.insertNotification(w.hooks, n)
}

func (s *state) insertTransaction(h *Hooks, tx core.Transaction) (int64, error) {
	if h.InsertTransaction != nil {
		if err := h.InsertTransaction(tx); err != nil {
			return 0, err
		}
	}
	if _, ok := s.accounts[tx.AccountID]; !ok {
		return 0, fmt.Errorf("account %d: %w", tx.AccountID, core.ErrInvalidReference)
	}
	if _, ok := s.categories[tx.CategoryID]; !ok {
		return 0, fmt.Errorf("category %d: %w", tx.CategoryID, core.ErrInvalidReference)
	}
	tx.ID = s.id()
	s.transactions[tx.ID] = tx
	return tx.ID, nil
}

func (s *state) advancePayment(h *Hooks, id int64, from, next core.Date, active bool) error {
	if h.AdvancePayment != nil {
		if err := h.AdvancePayment(id); err != nil {
			return err
		}
	}
	p, ok := s.payments[id]
	if !ok {
		return ledger.ErrNotFound
	}
	if !p.Active || !p.NextDue.Equal(from) {
		return fmt.Errorf("payment %d due %s: %w", id, from, ledger.ErrConflict)
	}
	p.NextDue = next
	p.Active = active
	s.payments[id] = p
	return nil
}

func (s *state) insertNotification(h *Hooks, n core.Notification) (int64, bool, error) {
	if h.InsertNotification != nil {
		if err := h.InsertNotification(n); err != nil {
			return 0, false, err
		}
	}
	if n.DedupKey != "" {
		if _, taken := s.dedup[n.DedupKey]; taken {
			return 0, false, nil
		}
	}
	n.ID = s.id()
	if n.State == "" {
		n.State = core.StatePending
	}
	s.notifications[n.ID] = n
	if n.DedupKey != "" {
		s.dedup[n.DedupKey] = n.ID
	}
	return n.ID, true, nil
}

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.insertTransaction(&s.Hooks, tx)
}

func (s *Store) AdvancePayment(_ context.Context, id int64, from, next core.Date, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.advancePayment(&s.Hooks, id, from, next, active)
}

func (s *Store) InsertNotification(_ context.Context, n core.Notification) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.insertNotification(&s.Hooks, n)
}

// Categories and accounts.

func (s *Store) CreateCategory(_ context.Context, c core.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.st.categories {
		if existing.Name == c.Name {
			return 0, ledger.ErrConflict
		}
	}
	c.ID = s.st.id()
	s.st.categories[c.ID] = c
	return c.ID, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.categories[id]
	if !ok {
		return core.Category{}, ledger.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.st.categories))
	for _, c := range s.st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.st.id()
	s.st.accounts[a.ID] = a
	return a.ID, nil
}

func (s *Store) GetAccount(_ context.Context, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[id]
	if !ok {
		return core.Account{}, ledger.ErrNotFound
	}
	return a, nil
}

// Budgets.

func (s *Store) FindBudget(_ context.Context, owner, category int64, p core.Period) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.st.budgets {
		if b.OwnerID == owner && b.CategoryID == category && b.Period == p {
			return s.st.withCategoryName(b), nil
		}
	}
	return core.Budget{}, ledger.ErrNotFound
}

func (s *state) withCategoryName(b core.Budget) core.Budget {
	if c, ok := s.categories[b.CategoryID]; ok {
		b.CategoryName = c.Name
	}
	return b
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.st.budgets {
		if existing.OwnerID == b.OwnerID && existing.CategoryID == b.CategoryID && existing.Period == b.Period {
			return 0, ledger.ErrConflict
		}
	}
	b.ID = s.st.id()
	b.CategoryName = ""
	s.st.budgets[b.ID] = b
	return b.ID, nil
}

func (s *Store) GetBudget(_ context.Context, id int64) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.st.budgets[id]
	if !ok {
		return core.Budget{}, ledger.ErrNotFound
	}
	return s.st.withCategoryName(b), nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.budgets[b.ID]; !ok {
		return ledger.ErrNotFound
	}
	b.CategoryName = ""
	s.st.budgets[b.ID] = b
	return nil
}

func (s *Store) ListBudgets(_ context.Context, owner int64, p core.Period) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.st.budgets {
		if b.OwnerID == owner && b.Period == p {
			out = append(out, s.st.withCategoryName(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CategoryName != out[j].CategoryName {
			return out[i].CategoryName < out[j].CategoryName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SumExpenses(_ context.Context, owner, category int64, p core.Period) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Hooks.SumExpenses != nil {
		if err := s.Hooks.SumExpenses(owner, category); err != nil {
			return core.Money{}, err
		}
	}
	if c, ok := s.st.categories[category]; !ok || c.Kind != core.Expense {
		return core.Money{}, nil
	}
	start, end := p.Start(), p.End()
	var total int64
	for _, tx := range s.st.transactions {
		if tx.OwnerID != owner || tx.CategoryID != category {
			continue
		}
		if tx.Date.Before(start) || !tx.Date.Before(end) {
			continue
		}
		total += tx.Amount.Cents
	}
	return core.Money{Cents: total}, nil
}

// Transactions returns a snapshot of the ledger ordered by id.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.st.transactions))
	for _, tx := range s.st.transactions {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reports.

func (s *Store) CategoryTotals(_ context.Context, owner int64, from, to core.Date) ([]core.CategoryAmount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sums := map[int64]int64{}
	for _, tx := range s.st.transactions {
		if tx.OwnerID != owner || tx.Date.Before(from) || !tx.Date.Before(to) {
			continue
		}
		sums[tx.CategoryID] += tx.Amount.Cents
	}
	out := make([]core.CategoryAmount, 0, len(sums))
	for id, cents := range sums {
		c := s.st.categories[id]
		out = append(out, core.CategoryAmount{CategoryID: id, Name: c.Name, Kind: c.Kind, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (s *Store) MonthlyTotals(_ context.Context, owner int64, year int) ([]core.MonthTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	months := map[int]*core.MonthTotals{}
	for _, tx := range s.st.transactions {
		if tx.OwnerID != owner || tx.Date.Year() != year {
			continue
		}
		m, ok := months[tx.Date.Month()]
		if !ok {
			m = &core.MonthTotals{Month: tx.Date.Month()}
			months[m.Month] = m
		}
		switch s.st.categories[tx.CategoryID].Kind {
		case core.Income:
			m.Income = m.Income.Add(tx.Amount)
		case core.Expense:
			m.Expense = m.Expense.Add(tx.Amount)
		}
	}
	out := make([]core.MonthTotals, 0, len(months))
	for _, m := range months {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// Payments.

func (s *Store) CreatePayment(_ context.Context, p core.Payment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.st.id()
	s.st.payments[p.ID] = p
	return p.ID, nil
}

func (s *Store) GetPayment(_ context.Context, id int64) (core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.payments[id]
	if !ok {
		return core.Payment{}, ledger.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdatePayment(_ context.Context, p core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.payments[p.ID]; !ok {
		return ledger.ErrNotFound
	}
	s.st.payments[p.ID] = p
	return nil
}

func (s *Store) DuePayments(_ context.Context, today core.Date, sel ledger.Selection) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Payment
	for _, p := range s.st.payments {
		if !p.Active {
			continue
		}
		if sel == ledger.Exact && !p.NextDue.Equal(today) {
			continue
		}
		if p.NextDue.After(today) {
			continue
		}
		out = append(out, p)
	}
	sortPayments(out)
	return out, nil
}

func (s *Store) UpcomingPayments(_ context.Context, owner int64, from, to core.Date) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Payment
	for _, p := range s.st.payments {
		if !p.Active || (owner != 0 && p.OwnerID != owner) {
			continue
		}
		if p.NextDue.Before(from) || p.NextDue.After(to) {
			continue
		}
		out = append(out, p)
	}
	sortPayments(out)
	return out, nil
}

func sortPayments(ps []core.Payment) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].NextDue.Equal(ps[j].NextDue) {
			return ps[i].NextDue.Before(ps[j].NextDue)
		}
		return ps[i].ID < ps[j].ID
	})
}

// Notifications.

func (s *Store) GetNotification(_ context.Context, id int64) (core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.st.notifications[id]
	if !ok {
		return core.Notification{}, ledger.ErrNotFound
	}
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, owner int64, f ledger.NotificationFilter) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Notification
	for _, n := range s.st.notifications {
		if n.OwnerID != owner {
			continue
		}
		if f.Read != nil && (n.State == core.StateRead) != *f.Read {
			continue
		}
		if f.Kind != "" && n.Kind != f.Kind {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ScheduledFor.After(out[j].ScheduledFor)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) PendingNotifications(_ context.Context, owner int64, limit int) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Notification
	for _, n := range s.st.notifications {
		if n.State != core.StatePending || (owner != 0 && n.OwnerID != owner) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetNotificationState(_ context.Context, id int64, state core.NotificationState, ch core.Channel, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.st.notifications[id]
	if !ok {
		return ledger.ErrNotFound
	}
	n.State = state
	if ch != "" {
		n.Channel = ch
	}
	if state == core.StateSent {
		n.SentAt = at
	}
	s.st.notifications[id] = n
	return nil
}

func (s *Store) DeleteNotification(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.st.notifications[id]
	if !ok {
		return ledger.ErrNotFound
	}
	delete(s.st.notifications, id)
	if n.DedupKey != "" {
		delete(s.st.dedup, n.DedupKey)
	}
	return nil
}

// Preferences.

func (s *Store) GetPreferences(_ context.Context, owner int64) (core.NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.st.prefs[owner]; ok {
		return p, nil
	}
	return core.DefaultPreferences(owner), nil
}

func (s *Store) SavePreferences(_ context.Context, p core.NotificationPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.prefs[p.OwnerID] = p
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
