package services

import (
	"context"
	"fmt"
	"strings"

	"pfm/internal/core"
	"pfm/internal/ledger"
	"pfm/internal/log"
)

// BudgetService manages spending targets per category and date window.
// Budgets never touch the balance. Overlapping windows for the same category
// are rejected on write, so at most one budget is active for a category on
// any date.
type BudgetService struct {
	base
}

// BudgetStatus is the spending position against the budget active on a date.
type BudgetStatus struct {
	Budget    core.Budget `json:"budget"`
	Target    core.Money  `json:"target_amount"`
	Spent     core.Money  `json:"spent"`
	Remaining core.Money  `json:"remaining"`
	Exceeded  bool        `json:"exceeded"`
}

func NewBudgetService(d Deps) *BudgetService {
	return &BudgetService{base: newBase(d, log.ComponentBudget)}
}

func (s *BudgetService) Create(ctx context.Context, userID core.ID, in core.BudgetInput) (core.Budget, error) {
	if err := in.Validate(); err != nil {
		return core.Budget{}, err
	}
	var b core.Budget
	err := s.store.InUserTx(ctx, userID, func(tx ledger.Tx) error {
		b = applyBudgetInput(core.Budget{UserID: userID}, in)
		if err := checkOverlap(ctx, tx, b); err != nil {
			return err
		}
		return tx.SaveBudget(ctx, &b)
	})
	if err != nil {
		s.failed(ctx, log.OpCreate, userID, 0, err)
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	s.logger.InfoContext(ctx, "Budget created", log.FieldUserID, int64(userID), log.FieldEntityID, int64(b.ID), log.FieldCategory, b.Category)
	return b, nil
}

func (s *BudgetService) Update(ctx context.Context, userID, id core.ID, in core.BudgetInput) (core.Budget, error) {
	if err := in.Validate(); err != nil {
		return core.Budget{}, err
	}
	var b core.Budget
	err := s.store.InUserTx(ctx, userID, func(tx ledger.Tx) error {
		cur, err := tx.GetBudget(ctx, id)
		if err != nil {
			return err
		}
		if err := core.Guard(cur.UserID, userID); err != nil {
			return err
		}
		b = applyBudgetInput(cur, in)
		if err := checkOverlap(ctx, tx, b); err != nil {
			return err
		}
		return tx.SaveBudget(ctx, &b)
	})
	if err != nil {
		s.failed(ctx, log.OpUpdate, userID, id, err)
		return core.Budget{}, fmt.Errorf("update budget %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Budget updated", log.FieldUserID, int64(userID), log.FieldEntityID, int64(id))
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id core.ID) error {
	err := s.store.InUserTx(ctx, userID, func(tx ledger.Tx) error {
		cur, err := tx.GetBudget(ctx, id)
		if err != nil {
			return err
		}
		if err := core.Guard(cur.UserID, userID); err != nil {
			return err
		}
		return tx.DeleteBudget(ctx, id)
	})
	if err != nil {
		s.failed(ctx, log.OpDelete, userID, id, err)
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Budget deleted", log.FieldUserID, int64(userID), log.FieldEntityID, int64(id))
	return nil
}

func (s *BudgetService) Get(ctx context.Context, userID, id core.ID) (core.Budget, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}
	if err := core.Guard(b.UserID, userID); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *BudgetService) List(ctx context.Context, userID core.ID) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, userID)
}

// FindActive returns the user's budget for category whose window contains
// date, both ends inclusive. When several match, the lowest id wins.
func (s *BudgetService) FindActive(ctx context.Context, userID core.ID, category string, date core.Date) (core.Budget, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return core.Budget{}, core.ErrEmptyCategory
	}
	if err := date.Validate(); err != nil {
		return core.Budget{}, err
	}
	active, err := s.store.ListActiveBudgets(ctx, userID, category, date)
	if err != nil {
		return core.Budget{}, err
	}
	if len(active) == 0 {
		return core.Budget{}, fmt.Errorf("no active budget for %q on %s: %w", category, date, core.ErrNotFound)
	}
	return active[0], nil
}

// Status reports the active budget's target and what was spent in its
// category over its window.
func (s *BudgetService) Status(ctx context.Context, userID core.ID, category string, date core.Date) (BudgetStatus, error) {
	b, err := s.FindActive(ctx, userID, category, date)
	if err != nil {
		return BudgetStatus{}, err
	}
	expenses, err := s.store.ListExpensesBetween(ctx, userID, b.StartDate, b.EndDate)
	if err != nil {
		return BudgetStatus{}, err
	}
	spent := core.Zero
	for _, e := range expenses {
		if strings.EqualFold(e.Category, b.Category) {
			spent = spent.Add(e.Amount)
		}
	}
	remaining := b.TargetAmount.Sub(spent)
	return BudgetStatus{
		Budget:    b,
		Target:    b.TargetAmount,
		Spent:     spent,
		Remaining: remaining,
		Exceeded:  remaining.IsNegative(),
	}, nil
}

func checkOverlap(ctx context.Context, tx ledger.Tx, b core.Budget) error {
	existing, err := tx.ListBudgets(ctx, b.UserID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID != b.ID && b.Overlaps(other) {
			return fmt.Errorf("%w: budget %d covers %s..%s", core.ErrBudgetOverlap, other.ID, other.StartDate, other.EndDate)
		}
	}
	return nil
}

func applyBudgetInput(b core.Budget, in core.BudgetInput) core.Budget {
	b.Category = strings.TrimSpace(in.Category)
	b.TargetAmount = in.TargetAmount
	b.StartDate = in.StartDate
	b.EndDate = in.EndDate
	return b
}
