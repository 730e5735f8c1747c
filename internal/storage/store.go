// Package storage implements ledger.Store on SQL databases: SQLite through
// modernc.org/sqlite and Postgres through lib/pq.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"pfm/internal/core"
	"pfm/internal/ledger"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string { return string(d) }

// rebind rewrites ? placeholders to $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Store struct {
	queries
	db          *sql.DB
	lockTimeout time.Duration
}

var _ ledger.Store = (*Store)(nil)

// SQLiteDSN builds the connection string used for SQLite. Write transactions
// start with BEGIN IMMEDIATE so the balance lock is taken up front, and
// busy_timeout bounds how long a second writer waits for it.
func SQLiteDSN(dbPath string, lockTimeout time.Duration) string {
	params := []string{
		"_txlock=immediate",
		"_time_format=sqlite",
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", lockTimeout.Milliseconds()),
	}
	return dbPath + "?" + strings.Join(params, "&")
}

func NewSQLiteStore(dbPath string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(SQLite, SQLiteDSN(dbPath, lockTimeout), lockTimeout)
}

func NewPostgresStore(databaseURL string, lockTimeout time.Duration) (*Store, error) {
	return open(Postgres, databaseURL, lockTimeout)
}

func open(d Dialect, dsn string, lockTimeout time.Duration) (*Store, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		queries:     queries{db: db, dialect: d},
		db:          db,
		lockTimeout: lockTimeout,
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`INSERT INTO users (email, password_hash, balance, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		u.Email, u.PasswordHash, u.Balance, u.CreatedAt)
	if err := row.Scan(&u.ID); err != nil {
		return classify("create user", err)
	}
	return nil
}

// InUserTx implements ledger.Store. The user's row is the balance lock:
// SQLite takes the database write lock at BEGIN IMMEDIATE, Postgres locks
// the row with SELECT ... FOR UPDATE under lock_timeout.
func (s *Store) InUserTx(ctx context.Context, userID core.ID, fn func(ledger.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if s.dialect == Postgres && s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := sqlTx.ExecContext(ctx, stmt); err != nil {
			return classify("set lock timeout", err)
		}
	}

	t := &tx{queries: queries{db: sqlTx, dialect: s.dialect}, userID: userID}
	if _, err := t.Balance(ctx); err != nil {
		return err
	}

	if err := fn(t); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

type tx struct {
	queries
	userID core.ID
}

func (t *tx) UserID() core.ID { return t.userID }

func (t *tx) Balance(ctx context.Context) (core.Money, error) {
	query := `SELECT balance FROM users WHERE id = ?`
	if t.dialect == Postgres {
		query += ` FOR UPDATE`
	}
	var balance core.Money
	if err := t.db.QueryRowContext(ctx, t.dialect.rebind(query), t.userID).Scan(&balance); err != nil {
		return core.Zero, classify(fmt.Sprintf("user %d balance", t.userID), err)
	}
	return balance, nil
}

func (t *tx) SetBalance(ctx context.Context, balance core.Money) error {
	_, err := t.exec(ctx, "set balance", `UPDATE users SET balance = ? WHERE id = ?`, balance, t.userID)
	return err
}

func (t *tx) SaveExpense(ctx context.Context, e *core.Expense) error {
	if e.ID == 0 {
		e.UserID = t.userID
		return t.insert(ctx, "insert expense", &e.ID,
			`INSERT INTO expenses (user_id, category, amount, expense_date, description) VALUES (?, ?, ?, ?, ?) RETURNING id`,
			e.UserID, e.Category, e.Amount, e.Date, e.Description)
	}
	return t.update(ctx, fmt.Sprintf("expense %d", e.ID),
		`UPDATE expenses SET category = ?, amount = ?, expense_date = ?, description = ? WHERE id = ? AND user_id = ?`,
		e.Category, e.Amount, e.Date, e.Description, e.ID, t.userID)
}

func (t *tx) DeleteExpense(ctx context.Context, id core.ID) error {
	return t.update(ctx, fmt.Sprintf("expense %d", id),
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, t.userID)
}

func (t *tx) SaveInvestment(ctx context.Context, i *core.Investment) error {
	if i.ID == 0 {
		i.UserID = t.userID
		return t.insert(ctx, "insert investment", &i.ID,
			`INSERT INTO investments (user_id, name, amount, created_at, closed_at, profit_loss, is_active) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			i.UserID, i.Name, i.Amount, i.CreatedAt, nullTime(i.ClosedAt), nullMoney(i.ProfitLoss), i.IsActive)
	}
	return t.update(ctx, fmt.Sprintf("investment %d", i.ID),
		`UPDATE investments SET name = ?, amount = ?, closed_at = ?, profit_loss = ?, is_active = ? WHERE id = ? AND user_id = ?`,
		i.Name, i.Amount, nullTime(i.ClosedAt), nullMoney(i.ProfitLoss), i.IsActive, i.ID, t.userID)
}

func (t *tx) DeleteInvestment(ctx context.Context, id core.ID) error {
	return t.update(ctx, fmt.Sprintf("investment %d", id),
		`DELETE FROM investments WHERE id = ? AND user_id = ?`, id, t.userID)
}

func (t *tx) SaveBudget(ctx context.Context, b *core.Budget) error {
	if b.ID == 0 {
		b.UserID = t.userID
		return t.insert(ctx, "insert budget", &b.ID,
			`INSERT INTO budgets (user_id, category, target_amount, start_date, end_date) VALUES (?, ?, ?, ?, ?) RETURNING id`,
			b.UserID, b.Category, b.TargetAmount, b.StartDate, b.EndDate)
	}
	return t.update(ctx, fmt.Sprintf("budget %d", b.ID),
		`UPDATE budgets SET category = ?, target_amount = ?, start_date = ?, end_date = ? WHERE id = ? AND user_id = ?`,
		b.Category, b.TargetAmount, b.StartDate, b.EndDate, b.ID, t.userID)
}

func (t *tx) DeleteBudget(ctx context.Context, id core.ID) error {
	return t.update(ctx, fmt.Sprintf("budget %d", id),
		`DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, t.userID)
}

func (t *tx) insert(ctx context.Context, op string, id *core.ID, query string, args ...any) error {
	if err := t.db.QueryRowContext(ctx, t.dialect.rebind(query), args...).Scan(id); err != nil {
		return classify(op, err)
	}
	return nil
}

// update runs a statement that must affect exactly one row of the user.
func (t *tx) update(ctx context.Context, op string, query string, args ...any) error {
	n, err := t.exec(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func (t *tx) exec(ctx context.Context, op string, query string, args ...any) (int64, error) {
	res, err := t.db.ExecContext(ctx, t.dialect.rebind(query), args...)
	if err != nil {
		return 0, classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(op, err)
	}
	return n, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullMoney(m *core.Money) any {
	if m == nil {
		return nil
	}
	return *m
}
