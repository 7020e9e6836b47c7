package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"lana/internal/core"
	"lana/internal/ledger"
)

type categoryRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
	Kind string `db:"kind"`
}

type accountRow struct {
	ID                  int64  `db:"id"`
	OwnerID             int64  `db:"owner_id"`
	Name                string `db:"name"`
	Kind                string `db:"kind"`
	OpeningBalanceCents int64  `db:"opening_balance_cents"`
}

type budgetRow struct {
	ID           int64  `db:"id"`
	OwnerID      int64  `db:"owner_id"`
	CategoryID   int64  `db:"category_id"`
	CategoryName string `db:"category_name"`
	Month        int    `db:"month"`
	Year         int    `db:"year"`
	LimitCents   int64  `db:"limit_cents"`
	Alert80      bool   `db:"alert_80"`
	Alert100     bool   `db:"alert_100"`
}

type paymentRow struct {
	ID          int64  `db:"id"`
	OwnerID     int64  `db:"owner_id"`
	AccountID   int64  `db:"account_id"`
	CategoryID  int64  `db:"category_id"`
	Description string `db:"description"`
	AmountCents int64  `db:"amount_cents"`
	Frequency   string `db:"frequency"`
	NextDue     string `db:"next_due"`
	DueDay      int    `db:"due_day"`
	Active      bool   `db:"active"`
	LeadDays    int    `db:"lead_days"`
}

type notificationRow struct {
	ID           int64          `db:"id"`
	OwnerID      int64          `db:"owner_id"`
	Kind         string         `db:"kind"`
	Channel      string         `db:"channel"`
	Message      string         `db:"message"`
	ScheduledFor string         `db:"scheduled_for"`
	SentAt       sql.NullString `db:"sent_at"`
	State        string         `db:"state"`
	Payload      string         `db:"payload"`
	DedupKey     sql.NullString `db:"dedup_key"`
}

type categoryTotalRow struct {
	CategoryID  int64  `db:"category_id"`
	Name        string `db:"name"`
	Kind        string `db:"kind"`
	AmountCents int64  `db:"amount_cents"`
}

type monthTotalRow struct {
	Month        int   `db:"month"`
	IncomeCents  int64 `db:"income_cents"`
	ExpenseCents int64 `db:"expense_cents"`
}

type preferencesRow struct {
	OwnerID int64 `db:"owner_id"`
	ByEmail bool  `db:"by_email"`
	BySMS   bool  `db:"by_sms"`
	ByPush  bool  `db:"by_push"`
}

func (r categoryRow) toCore() core.Category {
	return core.Category{ID: r.ID, Name: r.Name, Kind: core.CategoryKind(r.Kind)}
}

func (r accountRow) toCore() core.Account {
	return core.Account{
		ID: r.ID, OwnerID: r.OwnerID, Name: r.Name,
		Kind:           core.AccountKind(r.Kind),
		OpeningBalance: core.Money{Cents: r.OpeningBalanceCents},
	}
}

func (r budgetRow) toCore() core.Budget {
	return core.Budget{
		ID: r.ID, OwnerID: r.OwnerID, CategoryID: r.CategoryID, CategoryName: r.CategoryName,
		Period:   core.Period{Year: r.Year, Month: r.Month},
		Limit:    core.Money{Cents: r.LimitCents},
		Alert80:  r.Alert80,
		Alert100: r.Alert100,
	}
}

func (r paymentRow) toCore() (core.Payment, error) {
	due, err := core.ParseDate(r.NextDue)
	if err != nil {
		return core.Payment{}, fmt.Errorf("payment %d: %w", r.ID, err)
	}
	return core.Payment{
		ID: r.ID, OwnerID: r.OwnerID, AccountID: r.AccountID, CategoryID: r.CategoryID,
		Description: r.Description,
		Amount:      core.Money{Cents: r.AmountCents},
		Frequency:   core.Frequency(r.Frequency),
		NextDue:     due,
		DueDay:      r.DueDay,
		Active:      r.Active,
		LeadDays:    r.LeadDays,
	}, nil
}

func (r notificationRow) toCore() core.Notification {
	return core.Notification{
		ID: r.ID, OwnerID: r.OwnerID,
		Kind:         core.NotificationKind(r.Kind),
		Channel:      core.Channel(r.Channel),
		Message:      r.Message,
		ScheduledFor: parseTime(r.ScheduledFor),
		SentAt:       parseTime(r.SentAt.String),
		State:        core.NotificationState(r.State),
		Payload:      decodePayload(r.Payload),
		DedupKey:     r.DedupKey.String,
	}
}

func paymentsFromRows(rows []paymentRow) ([]core.Payment, error) {
	out := make([]core.Payment, 0, len(rows))
	for _, row := range rows {
		p, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Categories and accounts.

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	var id int64
	err := r.get(ctx, &id, `INSERT INTO categories (name, kind) VALUES (?, ?) RETURNING id`, c.Name, string(c.Kind))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("category %q: %w", c.Name, ledger.ErrConflict)
		}
		return 0, fmt.Errorf("create category: %w", err)
	}
	return id, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var row categoryRow
	if err := r.get(ctx, &row, `SELECT id, name, kind FROM categories WHERE id = ?`, id); err != nil {
		return core.Category{}, notFound(err)
	}
	return row.toCore(), nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	var rows []categoryRow
	if err := r.selectRows(ctx, &rows, `SELECT id, name, kind FROM categories ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCore())
	}
	return out, nil
}

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	var id int64
	err := r.get(ctx, &id, `
		INSERT INTO accounts (owner_id, name, kind, opening_balance_cents)
		VALUES (?, ?, ?, ?)
		RETURNING id`,
		a.OwnerID, a.Name, string(a.Kind), a.OpeningBalance.Cents)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	var row accountRow
	err := r.get(ctx, &row, `SELECT id, owner_id, name, kind, opening_balance_cents FROM accounts WHERE id = ?`, id)
	if err != nil {
		return core.Account{}, notFound(err)
	}
	return row.toCore(), nil
}

// Budgets.

const budgetColumns = `b.id, b.owner_id, b.category_id, COALESCE(c.name, '') AS category_name,
	b.month, b.year, b.limit_cents, b.alert_80, b.alert_100`

func (r *Repository) FindBudget(ctx context.Context, owner, category int64, p core.Period) (core.Budget, error) {
	var row budgetRow
	err := r.get(ctx, &row, `
		SELECT `+budgetColumns+`
		FROM budgets b LEFT JOIN categories c ON c.id = b.category_id
		WHERE b.owner_id = ? AND b.category_id = ? AND b.month = ? AND b.year = ?`,
		owner, category, p.Month, p.Year)
	if err != nil {
		if err = notFound(err); err == ledger.ErrNotFound {
			return core.Budget{}, err
		}
		return core.Budget{}, fmt.Errorf("find budget: %w", err)
	}
	return row.toCore(), nil
}

func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) (int64, error) {
	var id int64
	err := r.get(ctx, &id, `
		INSERT INTO budgets (owner_id, category_id, month, year, limit_cents, alert_80, alert_100)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		b.OwnerID, b.CategoryID, b.Period.Month, b.Period.Year, b.Limit.Cents, b.Alert80, b.Alert100)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("budget for %s: %w", b.Period, ledger.ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("create budget: %w", core.ErrInvalidReference)
		}
		return 0, fmt.Errorf("create budget: %w", err)
	}
	return id, nil
}

func (r *Repository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	var row budgetRow
	err := r.get(ctx, &row, `
		SELECT `+budgetColumns+`
		FROM budgets b LEFT JOIN categories c ON c.id = b.category_id
		WHERE b.id = ?`, id)
	if err != nil {
		return core.Budget{}, notFound(err)
	}
	return row.toCore(), nil
}

func (r *Repository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.exec(ctx, `UPDATE budgets SET limit_cents = ?, alert_80 = ?, alert_100 = ? WHERE id = ?`,
		b.Limit.Cents, b.Alert80, b.Alert100, b.ID)
	if err != nil {
		return fmt.Errorf("update budget %d: %w", b.ID, err)
	}
	return expectRow(res)
}

// SumExpenses is recomputed from the ledger on every call.
func (r *Repository) SumExpenses(ctx context.Context, owner, category int64, p core.Period) (core.Money, error) {
	var total int64
	err := r.get(ctx, &total, `
		SELECT CAST(COALESCE(SUM(t.amount_cents), 0) AS BIGINT)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.owner_id = ? AND t.category_id = ? AND c.kind = 'expense'
		  AND t.occurred_on >= ? AND t.occurred_on < ?`,
		owner, category, p.Start().String(), p.End().String())
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: total}, nil
}

func (r *Repository) ListBudgets(ctx context.Context, owner int64, p core.Period) ([]core.Budget, error) {
	var rows []budgetRow
	err := r.selectRows(ctx, &rows, `
		SELECT `+budgetColumns+`
		FROM budgets b LEFT JOIN categories c ON c.id = b.category_id
		WHERE b.owner_id = ? AND b.month = ? AND b.year = ?
		ORDER BY COALESCE(c.name, ''), b.id`,
		owner, p.Month, p.Year)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.Budget, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCore())
	}
	return out, nil
}

// Reports.

func (r *Repository) CategoryTotals(ctx context.Context, owner int64, from, to core.Date) ([]core.CategoryAmount, error) {
	var rows []categoryTotalRow
	err := r.selectRows(ctx, &rows, `
		SELECT t.category_id, c.name, c.kind, CAST(SUM(t.amount_cents) AS BIGINT) AS amount_cents
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.owner_id = ? AND t.occurred_on >= ? AND t.occurred_on < ?
		GROUP BY t.category_id, c.name, c.kind
		ORDER BY t.category_id`,
		owner, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	out := make([]core.CategoryAmount, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.CategoryAmount{
			CategoryID: row.CategoryID,
			Name:       row.Name,
			Kind:       core.CategoryKind(row.Kind),
			Amount:     core.Money{Cents: row.AmountCents},
		})
	}
	return out, nil
}

// MonthlyTotals groups on the month digits of occurred_on, which is stored as
// YYYY-MM-DD on both backends.
func (r *Repository) MonthlyTotals(ctx context.Context, owner int64, year int) ([]core.MonthTotals, error) {
	var rows []monthTotalRow
	err := r.selectRows(ctx, &rows, `
		SELECT CAST(SUBSTR(t.occurred_on, 6, 2) AS INTEGER) AS month,
		       CAST(SUM(CASE WHEN c.kind = 'income' THEN t.amount_cents ELSE 0 END) AS BIGINT) AS income_cents,
		       CAST(SUM(CASE WHEN c.kind = 'expense' THEN t.amount_cents ELSE 0 END) AS BIGINT) AS expense_cents
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.owner_id = ? AND t.occurred_on >= ? AND t.occurred_on < ?
		GROUP BY SUBSTR(t.occurred_on, 6, 2)
		ORDER BY month`,
		owner, core.NewDate(year, 1, 1).String(), core.NewDate(year+1, 1, 1).String())
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	out := make([]core.MonthTotals, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.MonthTotals{
			Month:   row.Month,
			Income:  core.Money{Cents: row.IncomeCents},
			Expense: core.Money{Cents: row.ExpenseCents},
		})
	}
	return out, nil
}

// Payments.

const paymentColumns = `id, owner_id, account_id, category_id, description, amount_cents,
	frequency, next_due, due_day, active, lead_days`

func (r *Repository) CreatePayment(ctx context.Context, p core.Payment) (int64, error) {
	var id int64
	err := r.get(ctx, &id, `
		INSERT INTO scheduled_payments (owner_id, account_id, category_id, description, amount_cents, frequency, next_due, due_day, active, lead_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.OwnerID, p.AccountID, p.CategoryID, p.Description, p.Amount.Cents,
		string(p.Frequency), p.NextDue.String(), p.DueDay, p.Active, p.LeadDays)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("create payment: %w", core.ErrInvalidReference)
		}
		return 0, fmt.Errorf("create payment: %w", err)
	}
	return id, nil
}

func (r *Repository) GetPayment(ctx context.Context, id int64) (core.Payment, error) {
	var row paymentRow
	if err := r.get(ctx, &row, `SELECT `+paymentColumns+` FROM scheduled_payments WHERE id = ?`, id); err != nil {
		return core.Payment{}, notFound(err)
	}
	return row.toCore()
}

func (r *Repository) UpdatePayment(ctx context.Context, p core.Payment) error {
	res, err := r.exec(ctx, `
		UPDATE scheduled_payments
		SET description = ?, amount_cents = ?, frequency = ?, next_due = ?, due_day = ?, active = ?, lead_days = ?
		WHERE id = ?`,
		p.Description, p.Amount.Cents, string(p.Frequency), p.NextDue.String(), p.DueDay, p.Active, p.LeadDays, p.ID)
	if err != nil {
		return fmt.Errorf("update payment %d: %w", p.ID, err)
	}
	return expectRow(res)
}

func (r *Repository) DuePayments(ctx context.Context, today core.Date, sel ledger.Selection) ([]core.Payment, error) {
	op := "<="
	if sel == ledger.Exact {
		op = "="
	}
	var rows []paymentRow
	err := r.selectRows(ctx, &rows, `
		SELECT `+paymentColumns+`
		FROM scheduled_payments
		WHERE active AND next_due `+op+` ?
		ORDER BY next_due, id`, today.String())
	if err != nil {
		return nil, fmt.Errorf("select due payments: %w", err)
	}
	return paymentsFromRows(rows)
}

func (r *Repository) UpcomingPayments(ctx context.Context, owner int64, from, to core.Date) ([]core.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM scheduled_payments WHERE active AND next_due >= ? AND next_due <= ?`
	args := []any{from.String(), to.String()}
	if owner != 0 {
		query += ` AND owner_id = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY next_due, id`

	var rows []paymentRow
	if err := r.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select upcoming payments: %w", err)
	}
	return paymentsFromRows(rows)
}

// Notifications.

const notificationColumns = `id, owner_id, kind, channel, message, scheduled_for, sent_at, state, payload, dedup_key`

func (r *Repository) GetNotification(ctx context.Context, id int64) (core.Notification, error) {
	var row notificationRow
	if err := r.get(ctx, &row, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id); err != nil {
		return core.Notification{}, notFound(err)
	}
	return row.toCore(), nil
}

func (r *Repository) ListNotifications(ctx context.Context, owner int64, f ledger.NotificationFilter) ([]core.Notification, error) {
	var where strings.Builder
	where.WriteString(`owner_id = ?`)
	args := []any{owner}
	if f.Read != nil {
		if *f.Read {
			where.WriteString(` AND state = 'read'`)
		} else {
			where.WriteString(` AND state <> 'read'`)
		}
	}
	if f.Kind != "" {
		where.WriteString(` AND kind = ?`)
		args = append(args, string(f.Kind))
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + where.String() +
		` ORDER BY scheduled_for DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	var rows []notificationRow
	if err := r.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notificationsFromRows(rows), nil
}

func (r *Repository) PendingNotifications(ctx context.Context, owner int64, limit int) ([]core.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE state = 'pending'`
	var args []any
	if owner != 0 {
		query += ` AND owner_id = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []notificationRow
	if err := r.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select pending notifications: %w", err)
	}
	return notificationsFromRows(rows), nil
}

func notificationsFromRows(rows []notificationRow) []core.Notification {
	out := make([]core.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCore())
	}
	return out
}

func (r *Repository) SetNotificationState(ctx context.Context, id int64, state core.NotificationState, ch core.Channel, at time.Time) error {
	var sentAt any
	if state == core.StateSent {
		sentAt = formatTime(at)
	}
	res, err := r.exec(ctx, `
		UPDATE notifications
		SET state = ?,
		    channel = CASE WHEN ? = '' THEN channel ELSE ? END,
		    sent_at = COALESCE(?, sent_at)
		WHERE id = ?`,
		string(state), string(ch), string(ch), sentAt, id)
	if err != nil {
		return fmt.Errorf("set notification %d state: %w", id, err)
	}
	return expectRow(res)
}

func (r *Repository) DeleteNotification(ctx context.Context, id int64) error {
	res, err := r.exec(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete notification %d: %w", id, err)
	}
	return expectRow(res)
}

// Preferences.

func (r *Repository) GetPreferences(ctx context.Context, owner int64) (core.NotificationPreferences, error) {
	var row preferencesRow
	err := r.get(ctx, &row, `SELECT owner_id, by_email, by_sms, by_push FROM notification_preferences WHERE owner_id = ?`, owner)
	if err != nil {
		if notFound(err) == ledger.ErrNotFound {
			return core.DefaultPreferences(owner), nil
		}
		return core.NotificationPreferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return core.NotificationPreferences{OwnerID: row.OwnerID, ByEmail: row.ByEmail, BySMS: row.BySMS, ByPush: row.ByPush}, nil
}

func (r *Repository) SavePreferences(ctx context.Context, p core.NotificationPreferences) error {
	_, err := r.exec(ctx, `
		INSERT INTO notification_preferences (owner_id, by_email, by_sms, by_push)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET by_email = excluded.by_email, by_sms = excluded.by_sms, by_push = excluded.by_push`,
		p.OwnerID, p.ByEmail, p.BySMS, p.ByPush)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
