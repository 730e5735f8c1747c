package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfm/internal/core"
	"pfm/internal/events"
)

func investment(amount string) core.InvestmentInput {
	return core.InvestmentInput{Name: "ETF", Amount: core.MustMoney(amount)}
}

func TestInvestmentCloseWithProfit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "200")

	inv, err := f.investments.Create(ctx, uid, investment("150"))
	require.NoError(t, err)
	assert.True(t, inv.IsActive)
	assert.Equal(t, epoch, inv.CreatedAt)
	assert.Equal(t, "50.00", f.balance(t, uid))

	inv, err = f.investments.Close(ctx, uid, inv.ID, core.MustMoney("20"))
	require.NoError(t, err)
	assert.False(t, inv.IsActive)
	require.NotNil(t, inv.ClosedAt)
	assert.Equal(t, epoch, *inv.ClosedAt)
	require.NotNil(t, inv.ProfitLoss)
	assert.Equal(t, "20.00", inv.ProfitLoss.String())
	assert.Equal(t, "220.00", f.balance(t, uid))

	stored, err := f.investments.Get(ctx, uid, inv.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestInvestmentDeleteWhileOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "200")

	inv, err := f.investments.Create(ctx, uid, investment("150"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", f.balance(t, uid))

	require.NoError(t, f.investments.Delete(ctx, uid, inv.ID))
	assert.Equal(t, "200.00", f.balance(t, uid))
}

func TestInvestmentDeleteAfterCloseDoesNotCreditAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "200")

	inv, err := f.investments.Create(ctx, uid, investment("150"))
	require.NoError(t, err)
	_, err = f.investments.Close(ctx, uid, inv.ID, core.MustMoney("-50"))
	require.NoError(t, err)
	assert.Equal(t, "150.00", f.balance(t, uid))

	require.NoError(t, f.investments.Delete(ctx, uid, inv.ID))
	assert.Equal(t, "150.00", f.balance(t, uid))
}

func TestInvestmentCloseOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "200")

	inv, err := f.investments.Create(ctx, uid, investment("150"))
	require.NoError(t, err)
	_, err = f.investments.Close(ctx, uid, inv.ID, core.MustMoney("20"))
	require.NoError(t, err)

	_, err = f.investments.Close(ctx, uid, inv.ID, core.MustMoney("20"))
	assert.ErrorIs(t, err, core.ErrInvalidState)
	assert.Equal(t, "220.00", f.balance(t, uid))
	assert.Equal(t, []events.Kind{events.InvestmentCreated, events.InvestmentClosed}, f.events.kinds())
}

func TestInvestmentCloseLossBeyondAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "200")

	inv, err := f.investments.Create(ctx, uid, investment("150"))
	require.NoError(t, err)

	_, err = f.investments.Close(ctx, uid, inv.ID, core.MustMoney("-150.01"))
	assert.ErrorIs(t, err, core.ErrInvalidProfitLoss)
	assert.ErrorIs(t, err, core.ErrValidation)

	stored, err := f.investments.Get(ctx, uid, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive, "a rejected close leaves the investment open")
	assert.Equal(t, "50.00", f.balance(t, uid))

	_, err = f.investments.Close(ctx, uid, inv.ID, core.MustMoney("-150"))
	require.NoError(t, err, "a total loss settles to zero")
	assert.Equal(t, "50.00", f.balance(t, uid))
}

func TestInvestmentCreditsSucceedOnAnyBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "150")

	first, err := f.investments.Create(ctx, uid, investment("100"))
	require.NoError(t, err)
	second, err := f.investments.Create(ctx, uid, investment("50"))
	require.NoError(t, err)
	require.Equal(t, "0.00", f.balance(t, uid))

	_, err = f.investments.Close(ctx, uid, first.ID, core.MustMoney("0"))
	require.NoError(t, err)
	require.NoError(t, f.investments.Delete(ctx, uid, second.ID))
	assert.Equal(t, "150.00", f.balance(t, uid))
}

func TestInvestmentUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "200")

	inv, err := f.investments.Create(ctx, uid, investment("150"))
	require.NoError(t, err)

	t.Run("open amount change moves the balance", func(t *testing.T) {
		updated, err := f.investments.Update(ctx, uid, inv.ID, core.InvestmentInput{Name: "Bonds", Amount: core.MustMoney("120")})
		require.NoError(t, err)
		assert.Equal(t, "Bonds", updated.Name)
		assert.Equal(t, "80.00", f.balance(t, uid))
	})

	t.Run("raise beyond balance is rejected", func(t *testing.T) {
		_, err := f.investments.Update(ctx, uid, inv.ID, investment("500"))
		assert.ErrorIs(t, err, core.ErrInsufficientFunds)
		assert.Equal(t, "80.00", f.balance(t, uid))
	})

	_, err = f.investments.Close(ctx, uid, inv.ID, core.MustMoney("10"))
	require.NoError(t, err)
	require.Equal(t, "210.00", f.balance(t, uid))

	t.Run("closed amount is frozen", func(t *testing.T) {
		_, err := f.investments.Update(ctx, uid, inv.ID, investment("100"))
		assert.ErrorIs(t, err, core.ErrInvalidState)
	})

	t.Run("closed rename is allowed", func(t *testing.T) {
		updated, err := f.investments.Update(ctx, uid, inv.ID, core.InvestmentInput{Name: "Old bonds", Amount: core.MustMoney("120")})
		require.NoError(t, err)
		assert.Equal(t, "Old bonds", updated.Name)
		assert.False(t, updated.IsActive)
		assert.Equal(t, "210.00", f.balance(t, uid))
	})
}

func TestInvestmentOwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice@example.com", "200")
	bob := f.user(t, "bob@example.com", "200")

	inv, err := f.investments.Create(ctx, alice, investment("150"))
	require.NoError(t, err)

	_, err = f.investments.Close(ctx, bob, inv.ID, core.MustMoney("1000"))
	assert.ErrorIs(t, err, core.ErrForbidden)
	_, err = f.investments.Update(ctx, bob, inv.ID, investment("1"))
	assert.ErrorIs(t, err, core.ErrForbidden)
	assert.ErrorIs(t, f.investments.Delete(ctx, bob, inv.ID), core.ErrForbidden)

	assert.Equal(t, "50.00", f.balance(t, alice))
	assert.Equal(t, "200.00", f.balance(t, bob))
}

func TestInvestmentNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.user(t, "a@example.com", "200")

	_, err := f.investments.Close(ctx, uid, 9999, core.Zero)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, f.investments.Delete(ctx, uid, 9999), core.ErrNotFound)
}
