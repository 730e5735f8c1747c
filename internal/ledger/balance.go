package ledger

import (
	"context"
	"fmt"

	"pfm/internal/core"
)

// Apply adds delta to the balance of the transaction's user and returns the new
// balance. A debit that would leave the balance below zero fails with
// core.ErrInsufficientFunds and writes nothing. Credits always succeed.
func Apply(ctx context.Context, tx Tx, delta core.Money) (core.Money, error) {
	current, err := tx.Balance(ctx)
	if err != nil {
		return core.Zero, fmt.Errorf("read balance: %w", err)
	}
	if delta.IsZero() {
		return current, nil
	}
	next := current.Add(delta)
	if delta.IsNegative() && next.IsNegative() {
		return current, fmt.Errorf("%w: balance %s, debit %s", core.ErrInsufficientFunds, current, delta.Neg())
	}
	if err := tx.SetBalance(ctx, next); err != nil {
		return current, fmt.Errorf("write balance: %w", err)
	}
	return next, nil
}

// BalanceStore is the per-user balance contract on top of a Store.
type BalanceStore struct {
	store Store
}

func NewBalanceStore(store Store) *BalanceStore {
	return &BalanceStore{store: store}
}

// Get returns the committed balance of the user.
func (b *BalanceStore) Get(ctx context.Context, userID core.ID) (core.Money, error) {
	u, err := b.store.GetUser(ctx, userID)
	if err != nil {
		return core.Zero, err
	}
	return u.Balance, nil
}

// Apply commits delta as its own transaction.
func (b *BalanceStore) Apply(ctx context.Context, userID core.ID, delta core.Money) (core.Money, error) {
	var balance core.Money
	err := b.store.InUserTx(ctx, userID, func(tx Tx) error {
		var err error
		balance, err = Apply(ctx, tx, delta)
		return err
	})
	if err != nil {
		return core.Zero, err
	}
	return balance, nil
}
