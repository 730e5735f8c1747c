// Package ledger defines the storage ports of the balance ledger and the single
// entry point through which every balance change flows.
package ledger

import (
	"context"

	"pfm/internal/core"
)

// Ports for storage adapters.
type (
	// Queries are the read-side lookups. Lookups by id return core.ErrNotFound
	// when nothing matches; lists are ordered by ascending id.
	Queries interface {
		GetUser(ctx context.Context, id core.ID) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)

		GetExpense(ctx context.Context, id core.ID) (core.Expense, error)
		ListExpenses(ctx context.Context, userID core.ID) ([]core.Expense, error)
		// ListExpensesBetween returns expenses dated in [from, to].
		ListExpensesBetween(ctx context.Context, userID core.ID, from, to core.Date) ([]core.Expense, error)

		GetInvestment(ctx context.Context, id core.ID) (core.Investment, error)
		ListInvestments(ctx context.Context, userID core.ID) ([]core.Investment, error)

		GetBudget(ctx context.Context, id core.ID) (core.Budget, error)
		ListBudgets(ctx context.Context, userID core.ID) ([]core.Budget, error)
		// ListActiveBudgets returns budgets in category whose window contains date.
		ListActiveBudgets(ctx context.Context, userID core.ID, category string, date core.Date) ([]core.Budget, error)
	}

	// Tx is a transaction scoped to one user. Reads through a Tx observe its own
	// uncommitted writes. Save methods insert when the entity ID is zero, assign
	// the new ID and stamp the transaction's user as owner. Writes never touch
	// rows of another user: those fail with core.ErrNotFound.
	Tx interface {
		Queries

		UserID() core.ID
		Balance(ctx context.Context) (core.Money, error)
		SetBalance(ctx context.Context, balance core.Money) error

		SaveExpense(ctx context.Context, e *core.Expense) error
		DeleteExpense(ctx context.Context, id core.ID) error

		SaveInvestment(ctx context.Context, i *core.Investment) error
		DeleteInvestment(ctx context.Context, id core.ID) error

		SaveBudget(ctx context.Context, b *core.Budget) error
		DeleteBudget(ctx context.Context, id core.ID) error
	}

	// Store owns the persisted state.
	Store interface {
		Queries

		// CreateUser inserts u and assigns its ID. Duplicate emails fail with
		// core.ErrEmailTaken.
		CreateUser(ctx context.Context, u *core.User) error

		// InUserTx runs fn in a transaction holding the user's balance lock.
		// Transactions of the same user are serialized; failure to obtain the
		// lock returns core.ErrStorageConflict. Nothing is committed when fn
		// returns an error.
		InUserTx(ctx context.Context, userID core.ID, fn func(Tx) error) error

		Ping(ctx context.Context) error
		Close() error
	}
)
