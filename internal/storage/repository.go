package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"lana/internal/core"
	"lana/internal/ledger"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// timestampLayout keeps a fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// Repository implements ledger.Store on top of database/sql. The same
// queries run on SQLite and PostgreSQL; sqlx rebinds placeholders.
type Repository struct {
	db      *sqlx.DB
	dialect Dialect
}

var _ ledger.Store = (*Repository)(nil)

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sqlx.Open(SQLite.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY between a unit of work and its callers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(SQLite, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewRepository(db, SQLite), nil
}

func NewPostgresRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sqlx.Open(Postgres.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(Postgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewRepository(db, Postgres), nil
}

// NewRepository wraps an open handle without running migrations.
func NewRepository(db *sqlx.DB, dialect Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) conn() *conn { return &conn{q: r.db} }

// InTx runs fn inside a database transaction. The transaction is rolled back
// when fn fails or the commit does.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, w ledger.Writer) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &conn{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// conn holds the write path shared by the repository and its transactions.
type conn struct {
	q sqlx.ExtContext
}

func (c *conn) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, c.q, dest, c.q.Rebind(query), args...)
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.q.Rebind(query), args...)
}

func (c *conn) InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	var id int64
	err := c.get(ctx, &id, `
		INSERT INTO transactions (owner_id, account_id, category_id, amount_cents, occurred_on, description)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		tx.OwnerID, tx.AccountID, tx.CategoryID, tx.Amount.Cents, tx.Date.String(), tx.Description)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("insert transaction: %w", core.ErrInvalidReference)
		}
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

func (c *conn) AdvancePayment(ctx context.Context, id int64, from, next core.Date, active bool) error {
	res, err := c.exec(ctx, `
		UPDATE scheduled_payments SET next_due = ?, active = ?
		WHERE id = ? AND active AND next_due = ?`,
		next.String(), active, id, from.String())
	if err != nil {
		return fmt.Errorf("advance payment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("payment %d due %s: %w", id, from, ledger.ErrConflict)
	}
	return nil
}

func (c *conn) InsertNotification(ctx context.Context, n core.Notification) (int64, bool, error) {
	payload, err := encodePayload(n.Payload)
	if err != nil {
		return 0, false, err
	}
	state := n.State
	if state == "" {
		state = core.StatePending
	}
	var dedup any
	if n.DedupKey != "" {
		dedup = n.DedupKey
	}

	var id int64
	err = c.get(ctx, &id, `
		INSERT INTO notifications (owner_id, kind, channel, message, scheduled_for, state, payload, dedup_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING id`,
		n.OwnerID, string(n.Kind), string(n.Channel), n.Message, formatTime(n.ScheduledFor), string(state), payload, dedup)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert notification: %w", err)
	}
	return id, true, nil
}

func (r *Repository) InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	return r.conn().InsertTransaction(ctx, tx)
}

func (r *Repository) AdvancePayment(ctx context.Context, id int64, from, next core.Date, active bool) error {
	return r.conn().AdvancePayment(ctx, id, from, next, active)
}

func (r *Repository) InsertNotification(ctx context.Context, n core.Notification) (int64, bool, error) {
	return r.conn().InsertNotification(ctx, n)
}

func (r *Repository) get(ctx context.Context, dest any, query string, args ...any) error {
	return r.db.GetContext(ctx, dest, r.db.Rebind(query), args...)
}

func (r *Repository) selectRows(ctx context.Context, dest any, query string, args ...any) error {
	return r.db.SelectContext(ctx, dest, r.db.Rebind(query), args...)
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.db.Rebind(query), args...)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodePayload(p map[string]any) (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(b), nil
}

func decodePayload(s string) map[string]any {
	s = strings.TrimSpace(s)
	if s == "" || s == "{}" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return map[string]any{"raw": s}
	}
	return out
}
