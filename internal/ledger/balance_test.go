package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfm/internal/core"
	"pfm/internal/ledger"
	"pfm/internal/ledger/memory"
)

func newUser(t *testing.T, store *memory.Store, balance string) core.ID {
	t.Helper()
	u := core.User{Email: "u@example.com", Balance: core.MustMoney(balance)}
	require.NoError(t, store.CreateUser(context.Background(), &u))
	return u.ID
}

func TestApplyDebitAndCredit(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	balances := ledger.NewBalanceStore(store)
	uid := newUser(t, store, "100")

	got, err := balances.Apply(ctx, uid, core.MustMoney("-30"))
	require.NoError(t, err)
	assert.Equal(t, "70.00", got.String())

	got, err = balances.Apply(ctx, uid, core.MustMoney("-70"))
	require.NoError(t, err, "debiting down to exactly zero is allowed")
	assert.True(t, got.IsZero())

	got, err = balances.Apply(ctx, uid, core.MustMoney("12.5"))
	require.NoError(t, err)
	assert.Equal(t, "12.50", got.String())
}

func TestApplyRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	balances := ledger.NewBalanceStore(store)
	uid := newUser(t, store, "10")

	_, err := balances.Apply(ctx, uid, core.MustMoney("-30"))
	require.ErrorIs(t, err, core.ErrInsufficientFunds)

	current, err := balances.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "10.00", current.String())
}

func TestApplyCreditNeverFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	uid := newUser(t, store, "0")

	// A negative starting balance is representable; credits still apply.
	err := store.InUserTx(ctx, uid, func(tx ledger.Tx) error {
		return tx.SetBalance(ctx, core.MustMoney("-5"))
	})
	require.NoError(t, err)

	got, err := ledger.NewBalanceStore(store).Apply(ctx, uid, core.MustMoney("2"))
	require.NoError(t, err)
	assert.Equal(t, "-3.00", got.String())
}

func TestApplyUnknownUser(t *testing.T) {
	_, err := ledger.NewBalanceStore(memory.New(0)).Apply(context.Background(), 42, core.MustMoney("1"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	balances := ledger.NewBalanceStore(store)
	uid := newUser(t, store, "100")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := balances.Apply(ctx, uid, core.MustMoney("-10"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, core.ErrInsufficientFunds):
				fail++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 40, fail)
	current, err := balances.Get(ctx, uid)
	require.NoError(t, err)
	assert.True(t, current.IsZero())
}
