package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pfm/internal/core"
	"pfm/internal/events"
	"pfm/internal/ledger/memory"
	"pfm/internal/services"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []events.LedgerEvent
}

func (r *recorder) Emit(_ context.Context, e events.LedgerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	store       *memory.Store
	events      *recorder
	expenses    *services.ExpenseService
	investments *services.InvestmentService
	budgets     *services.BudgetService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New(time.Second)
	rec := &recorder{}
	d := services.Deps{Store: store, Events: rec, Clock: core.FixedClock{T: epoch}}
	return &fixture{
		store:       store,
		events:      rec,
		expenses:    services.NewExpenseService(d),
		investments: services.NewInvestmentService(d),
		budgets:     services.NewBudgetService(d),
	}
}

func (f *fixture) user(t *testing.T, email, balance string) core.ID {
	t.Helper()
	u := core.User{Email: email, Balance: core.MustMoney(balance), CreatedAt: epoch}
	require.NoError(t, f.store.CreateUser(context.Background(), &u))
	return u.ID
}

func (f *fixture) balance(t *testing.T, id core.ID) string {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u.Balance.String()
}

func expense(amount string) core.ExpenseInput {
	return core.ExpenseInput{
		Category:    "Groceries",
		Amount:      core.MustMoney(amount),
		Date:        core.NewDate(2024, 3, 5),
		Description: "weekly shop",
	}
}
