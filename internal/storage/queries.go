package storage

import (
	"context"
	"database/sql"
	"fmt"

	"pfm/internal/core"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements ledger.Queries over a querier.
type queries struct {
	db      querier
	dialect Dialect
}

type scanner interface {
	Scan(dest ...any) error
}

const (
	userColumns       = `id, email, password_hash, balance, created_at`
	expenseColumns    = `id, user_id, category, amount, expense_date, description`
	investmentColumns = `id, user_id, name, amount, created_at, closed_at, profit_loss, is_active`
	budgetColumns     = `id, user_id, category, target_amount, start_date, end_date`
)

func scanUser(row scanner) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Balance, &u.CreatedAt)
	return u, err
}

func scanExpense(row scanner) (core.Expense, error) {
	var e core.Expense
	err := row.Scan(&e.ID, &e.UserID, &e.Category, &e.Amount, &e.Date, &e.Description)
	return e, err
}

func scanInvestment(row scanner) (core.Investment, error) {
	var (
		i          core.Investment
		closedAt   sql.NullTime
		profitLoss sql.NullString
	)
	if err := row.Scan(&i.ID, &i.UserID, &i.Name, &i.Amount, &i.CreatedAt, &closedAt, &profitLoss, &i.IsActive); err != nil {
		return i, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		i.ClosedAt = &t
	}
	if profitLoss.Valid {
		pl, err := core.ParseMoney(profitLoss.String)
		if err != nil {
			return i, fmt.Errorf("profit_loss %q: %w", profitLoss.String, err)
		}
		i.ProfitLoss = &pl
	}
	return i, nil
}

func scanBudget(row scanner) (core.Budget, error) {
	var b core.Budget
	err := row.Scan(&b.ID, &b.UserID, &b.Category, &b.TargetAmount, &b.StartDate, &b.EndDate)
	return b, err
}

func getOne[T any](ctx context.Context, q queries, op string, scan func(scanner) (T, error), query string, args ...any) (T, error) {
	v, err := scan(q.db.QueryRowContext(ctx, q.dialect.rebind(query), args...))
	if err != nil {
		var zero T
		return zero, classify(op, err)
	}
	return v, nil
}

func list[T any](ctx context.Context, q queries, op string, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.db.QueryContext(ctx, q.dialect.rebind(query), args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func (q queries) GetUser(ctx context.Context, id core.ID) (core.User, error) {
	return getOne(ctx, q, fmt.Sprintf("user %d", id), scanUser,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return getOne(ctx, q, fmt.Sprintf("user %q", email), scanUser,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (q queries) GetExpense(ctx context.Context, id core.ID) (core.Expense, error) {
	return getOne(ctx, q, fmt.Sprintf("expense %d", id), scanExpense,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
}

func (q queries) ListExpenses(ctx context.Context, userID core.ID) ([]core.Expense, error) {
	return list(ctx, q, "list expenses", scanExpense,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? ORDER BY id`, userID)
}

func (q queries) ListExpensesBetween(ctx context.Context, userID core.ID, from, to core.Date) ([]core.Expense, error) {
	return list(ctx, q, "list expenses between", scanExpense,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? AND expense_date >= ? AND expense_date <= ? ORDER BY id`,
		userID, from, to)
}

func (q queries) GetInvestment(ctx context.Context, id core.ID) (core.Investment, error) {
	return getOne(ctx, q, fmt.Sprintf("investment %d", id), scanInvestment,
		`SELECT `+investmentColumns+` FROM investments WHERE id = ?`, id)
}

func (q queries) ListInvestments(ctx context.Context, userID core.ID) ([]core.Investment, error) {
	return list(ctx, q, "list investments", scanInvestment,
		`SELECT `+investmentColumns+` FROM investments WHERE user_id = ? ORDER BY id`, userID)
}

func (q queries) GetBudget(ctx context.Context, id core.ID) (core.Budget, error) {
	return getOne(ctx, q, fmt.Sprintf("budget %d", id), scanBudget,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
}

func (q queries) ListBudgets(ctx context.Context, userID core.ID) ([]core.Budget, error) {
	return list(ctx, q, "list budgets", scanBudget,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY id`, userID)
}

func (q queries) ListActiveBudgets(ctx context.Context, userID core.ID, category string, date core.Date) ([]core.Budget, error) {
	return list(ctx, q, "list active budgets", scanBudget,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND lower(category) = lower(?) AND start_date <= ? AND end_date >= ? ORDER BY id`,
		userID, category, date, date)
}
