package services

import (
	"context"
	"fmt"
	"strings"

	"pfm/internal/core"
	"pfm/internal/events"
	"pfm/internal/ledger"
	"pfm/internal/log"
)

// ExpenseService records expenses as debits against the owner's balance.
type ExpenseService struct {
	base
}

func NewExpenseService(d Deps) *ExpenseService {
	return &ExpenseService{base: newBase(d, log.ComponentExpense)}
}

// Create debits the amount and persists the expense in one transaction.
// Without sufficient funds nothing is written.
func (s *ExpenseService) Create(ctx context.Context, userID core.ID, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	var (
		e       core.Expense
		balance core.Money
		delta   = in.Amount.Neg()
	)
	err := s.store.InUserTx(ctx, userID, func(tx ledger.Tx) error {
		var err error
		if balance, err = ledger.Apply(ctx, tx, delta); err != nil {
			return err
		}
		e = applyExpenseInput(core.Expense{UserID: userID}, in)
		return tx.SaveExpense(ctx, &e)
	})
	if err != nil {
		s.failed(ctx, log.OpCreate, userID, 0, err)
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	s.committed(ctx, log.OpCreate, events.ExpenseCreated, userID, e.ID, delta, balance)
	return e, nil
}

// Update overwrites the expense and applies old-new to the balance.
func (s *ExpenseService) Update(ctx context.Context, userID, id core.ID, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	var (
		e       core.Expense
		balance core.Money
		delta   core.Money
	)
	err := s.store.InUserTx(ctx, userID, func(tx ledger.Tx) error {
		cur, err := tx.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if err := core.Guard(cur.UserID, userID); err != nil {
			return err
		}
		delta = cur.Amount.Sub(in.Amount)
		if balance, err = ledger.Apply(ctx, tx, delta); err != nil {
			return err
		}
		e = applyExpenseInput(cur, in)
		return tx.SaveExpense(ctx, &e)
	})
	if err != nil {
		s.failed(ctx, log.OpUpdate, userID, id, err)
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}

	s.committed(ctx, log.OpUpdate, events.ExpenseUpdated, userID, id, delta, balance)
	return e, nil
}

// Delete credits the full amount back and removes the expense.
func (s *ExpenseService) Delete(ctx context.Context, userID, id core.ID) error {
	var balance, delta core.Money
	err := s.store.InUserTx(ctx, userID, func(tx ledger.Tx) error {
		cur, err := tx.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if err := core.Guard(cur.UserID, userID); err != nil {
			return err
		}
		delta = cur.Amount
		if balance, err = ledger.Apply(ctx, tx, delta); err != nil {
			return err
		}
		return tx.DeleteExpense(ctx, id)
	})
	if err != nil {
		s.failed(ctx, log.OpDelete, userID, id, err)
		return fmt.Errorf("delete expense %d: %w", id, err)
	}

	s.committed(ctx, log.OpDelete, events.ExpenseDeleted, userID, id, delta, balance)
	return nil
}

func (s *ExpenseService) Get(ctx context.Context, userID, id core.ID) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := core.Guard(e.UserID, userID); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *ExpenseService) List(ctx context.Context, userID core.ID) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, userID)
}

// Monthly lists the user's expenses dated in the given calendar month.
func (s *ExpenseService) Monthly(ctx context.Context, userID core.ID, year, month int) ([]core.Expense, error) {
	from, to, err := core.MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return s.store.ListExpensesBetween(ctx, userID, from, to)
}

func applyExpenseInput(e core.Expense, in core.ExpenseInput) core.Expense {
	e.Category = strings.TrimSpace(in.Category)
	e.Amount = in.Amount
	e.Date = in.Date
	e.Description = strings.TrimSpace(in.Description)
	return e
}
