package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfm/internal/core"
	"pfm/internal/events"
)

func TestExpenseLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "100")

	e, err := f.expenses.Create(ctx, uid, expense("30"))
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.Equal(t, uid, e.UserID)
	assert.Equal(t, "70.00", f.balance(t, uid))

	e, err = f.expenses.Update(ctx, uid, e.ID, expense("50"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", e.Amount.String())
	assert.Equal(t, "50.00", f.balance(t, uid))

	require.NoError(t, f.expenses.Delete(ctx, uid, e.ID))
	assert.Equal(t, "100.00", f.balance(t, uid))

	_, err = f.expenses.Get(ctx, uid, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, []events.Kind{events.ExpenseCreated, events.ExpenseUpdated, events.ExpenseDeleted}, f.events.kinds())
}

func TestExpenseCreateInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "10")

	_, err := f.expenses.Create(ctx, uid, expense("30"))
	require.ErrorIs(t, err, core.ErrInsufficientFunds)

	assert.Equal(t, "10.00", f.balance(t, uid))
	list, err := f.expenses.List(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, list, "no expense may be persisted when the debit fails")
	assert.Empty(t, f.events.kinds())
}

func TestExpenseUpdateInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "40")

	e, err := f.expenses.Create(ctx, uid, expense("30"))
	require.NoError(t, err)

	_, err = f.expenses.Update(ctx, uid, e.ID, expense("45"))
	require.ErrorIs(t, err, core.ErrInsufficientFunds)

	got, err := f.expenses.Get(ctx, uid, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", got.Amount.String())
	assert.Equal(t, "10.00", f.balance(t, uid))
}

func TestExpenseUpdateDecreaseIsCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "30")

	e, err := f.expenses.Create(ctx, uid, expense("30"))
	require.NoError(t, err)
	require.Equal(t, "0.00", f.balance(t, uid))

	_, err = f.expenses.Update(ctx, uid, e.ID, expense("12.5"))
	require.NoError(t, err)
	assert.Equal(t, "17.50", f.balance(t, uid))
}

func TestExpenseValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "100")

	tests := []struct {
		name string
		in   core.ExpenseInput
		want error
	}{
		{"zero amount", expense("0"), core.ErrInvalidAmount},
		{"negative amount", expense("-5"), core.ErrInvalidAmount},
		{"empty category", func() core.ExpenseInput { in := expense("5"); in.Category = " "; return in }(), core.ErrEmptyCategory},
		{"empty description", func() core.ExpenseInput { in := expense("5"); in.Description = ""; return in }(), core.ErrEmptyDescription},
		{"missing date", func() core.ExpenseInput { in := expense("5"); in.Date = core.Date{}; return in }(), core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.expenses.Create(ctx, uid, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
	assert.Equal(t, "100.00", f.balance(t, uid))
}

func TestExpenseOwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice@example.com", "100")
	bob := f.user(t, "bob@example.com", "100")

	e, err := f.expenses.Create(ctx, alice, expense("30"))
	require.NoError(t, err)

	_, err = f.expenses.Update(ctx, bob, e.ID, expense("10"))
	assert.ErrorIs(t, err, core.ErrForbidden)
	assert.ErrorIs(t, f.expenses.Delete(ctx, bob, e.ID), core.ErrForbidden)
	_, err = f.expenses.Get(ctx, bob, e.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	assert.Equal(t, "70.00", f.balance(t, alice))
	assert.Equal(t, "100.00", f.balance(t, bob))

	list, err := f.expenses.List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestExpenseMonthly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "1000")

	for _, d := range []core.Date{
		core.NewDate(2024, 2, 29),
		core.NewDate(2024, 3, 1),
		core.NewDate(2024, 3, 31),
		core.NewDate(2024, 4, 1),
	} {
		in := expense("10")
		in.Date = d
		_, err := f.expenses.Create(ctx, uid, in)
		require.NoError(t, err)
	}

	march, err := f.expenses.Monthly(ctx, uid, 2024, 3)
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, "2024-03-01", march[0].Date.String())
	assert.Equal(t, "2024-03-31", march[1].Date.String())

	_, err = f.expenses.Monthly(ctx, uid, 2024, 13)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}
