package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfm/internal/auth"
	"pfm/internal/core"
	"pfm/internal/events"
	"pfm/internal/services"
)

func newUserService(f *fixture) (*services.UserService, *auth.Tokens) {
	clock := core.FixedClock{T: epoch}
	tokens := auth.NewTokens("test-secret-0123456789", time.Hour, clock)
	d := services.Deps{Store: f.store, Events: f.events, Clock: clock}
	return services.NewUserService(d, tokens), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users, tokens := newUserService(f)

	u, err := users.Register(ctx, "  Alice@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.Balance.IsZero())
	assert.NotEqual(t, "secret1", u.PasswordHash)

	res, err := users.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(time.Hour), res.ExpiresAt)

	id, err := tokens.Resolve("Bearer " + res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = users.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
	_, err = users.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users, _ := newUserService(f)

	_, err := users.Register(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, core.ErrInvalidEmail)
	_, err = users.Register(ctx, "a@example.com", "123")
	assert.ErrorIs(t, err, core.ErrWeakPassword)
	_, err = users.Register(ctx, "a@example.com", strings.Repeat("p", auth.MaxPasswordLen+1))
	assert.ErrorIs(t, err, core.ErrPasswordTooLong)

	_, err = users.Register(ctx, "a@example.com", "secret1")
	require.NoError(t, err)
	_, err = users.Register(ctx, "A@example.com", "secret2")
	assert.ErrorIs(t, err, core.ErrEmailTaken)
}

func TestTopUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users, _ := newUserService(f)
	uid := f.user(t, "a@example.com", "10")

	balance, err := users.TopUp(ctx, uid, core.MustMoney("90"), core.SourceSalary)
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.String())

	got, err := users.Balance(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "100.00", got.String())

	_, err = users.TopUp(ctx, uid, core.MustMoney("-5"), core.SourceGift)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = users.TopUp(ctx, uid, core.MustMoney("5"), core.BalanceSource("LOTTERY"))
	assert.ErrorIs(t, err, core.ErrInvalidSource)
	_, err = users.TopUp(ctx, 9999, core.MustMoney("5"), core.SourceOther)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, []events.Kind{events.BalanceToppedUp}, f.events.kinds())
	assert.Len(t, users.Sources(), 4)
}

func TestRegisterWithBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users, _ := newUserService(f)

	u, err := users.RegisterWithBalance(ctx, "b@example.com", "secret1", core.MustMoney("250.50"))
	require.NoError(t, err)
	got, err := users.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "250.50", got.String())
	assert.Equal(t, []events.Kind{events.BalanceToppedUp}, f.events.kinds())

	_, err = users.RegisterWithBalance(ctx, "c@example.com", "secret1", core.MustMoney("-1"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = f.store.GetUserByEmail(ctx, "c@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound, "a rejected opening balance leaves no user behind")

	_, err = users.RegisterWithBalance(ctx, "B@example.com", "secret1", core.MustMoney("10"))
	assert.ErrorIs(t, err, core.ErrEmailTaken)
	got, err = users.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "250.50", got.String())
}
