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

// InvestmentService debits the invested amount on create and settles it on
// close. An investment is open while IsActive is true.
type InvestmentService struct {
	base
}

func NewInvestmentService(d Deps) *InvestmentService {
	return &InvestmentService{base: newBase(d, log.ComponentInvestment)}
}

func (s *InvestmentService) Create(ctx context.Context, userID core.ID, in core.InvestmentInput) (core.Investment, error) {
	if err := in.Validate(); err != nil {
		return core.Investment{}, err
	}

	var (
		inv     core.Investment
		balance core.Money
		delta   = in.Amount.Neg()
	)
	err := s.store.InUserTx(ctx, userID, func(tx ledger.Tx) error {
		var err error
		if balance, err = ledger.Apply(ctx, tx, delta); err != nil {
			return err
		}
		inv = core.Investment{
			UserID:    userID,
			Name:      strings.TrimSpace(in.Name),
			Amount:    in.Amount,
			CreatedAt: s.clock.Now(),
			IsActive:  true,
		}
		return tx.SaveInvestment(ctx, &inv)
	})
	if err != nil {
		s.failed(ctx, log.OpCreate, userID, 0, err)
		return core.Investment{}, fmt.Errorf("create investment: %w", err)
	}

	s.committed(ctx, log.OpCreate, events.InvestmentCreated, userID, inv.ID, delta, balance)
	return inv, nil
}

// Update renames the investment and, while it is open, changes its amount by
// applying old-new to the balance. The amount of a closed investment is
// settled and cannot change.
func (s *InvestmentService) Update(ctx context.Context, userID, id core.ID, in core.InvestmentInput) (core.Investment, error) {
	if err := in.Validate(); err != nil {
		return core.Investment{}, err
	}

	var (
		inv     core.Investment
		balance core.Money
		delta   core.Money
	)
	err := s.store.InUserTx(ctx, userID, func(tx ledger.Tx) error {
		cur, err := tx.GetInvestment(ctx, id)
		if err != nil {
			return err
		}
		if err := core.Guard(cur.UserID, userID); err != nil {
			return err
		}
		if !cur.IsActive && !cur.Amount.Equal(in.Amount) {
			return fmt.Errorf("%w: amount of a closed investment cannot change", core.ErrInvalidState)
		}
		if cur.IsActive {
			delta = cur.Amount.Sub(in.Amount)
		}
		if balance, err = ledger.Apply(ctx, tx, delta); err != nil {
			return err
		}
		inv = cur
		inv.Name = strings.TrimSpace(in.Name)
		inv.Amount = in.Amount
		return tx.SaveInvestment(ctx, &inv)
	})
	if err != nil {
		s.failed(ctx, log.OpUpdate, userID, id, err)
		return core.Investment{}, fmt.Errorf("update investment %d: %w", id, err)
	}

	s.committed(ctx, log.OpUpdate, events.InvestmentUpdated, userID, id, delta, balance)
	return inv, nil
}

// Close records the realized profitLoss and credits amount+profitLoss.
// Closing twice fails with core.ErrInvalidState. A loss larger than the
// invested amount would make the settlement a debit, so profitLoss below
// -amount is rejected with core.ErrInvalidProfitLoss, a validation error.
func (s *InvestmentService) Close(ctx context.Context, userID, id core.ID, profitLoss core.Money) (core.Investment, error) {
	var (
		inv     core.Investment
		balance core.Money
		delta   core.Money
	)
	err := s.store.InUserTx(ctx, userID, func(tx ledger.Tx) error {
		cur, err := tx.GetInvestment(ctx, id)
		if err != nil {
			return err
		}
		if err := core.Guard(cur.UserID, userID); err != nil {
			return err
		}
		if !cur.IsActive {
			return fmt.Errorf("%w: already closed", core.ErrInvalidState)
		}
		delta = cur.Settlement(profitLoss)
		if delta.IsNegative() {
			return core.ErrInvalidProfitLoss
		}

		closedAt := s.clock.Now()
		pl := profitLoss
		inv = cur
		inv.IsActive = false
		inv.ClosedAt = &closedAt
		inv.ProfitLoss = &pl
		if err := tx.SaveInvestment(ctx, &inv); err != nil {
			return err
		}
		balance, err = ledger.Apply(ctx, tx, delta)
		return err
	})
	if err != nil {
		s.failed(ctx, log.OpClose, userID, id, err)
		return core.Investment{}, fmt.Errorf("close investment %d: %w", id, err)
	}

	s.committed(ctx, log.OpClose, events.InvestmentClosed, userID, id, delta, balance)
	return inv, nil
}

// Delete removes the investment. An open investment's amount is credited
// back first; a closed one was already settled.
func (s *InvestmentService) Delete(ctx context.Context, userID, id core.ID) error {
	var balance, delta core.Money
	err := s.store.InUserTx(ctx, userID, func(tx ledger.Tx) error {
		cur, err := tx.GetInvestment(ctx, id)
		if err != nil {
			return err
		}
		if err := core.Guard(cur.UserID, userID); err != nil {
			return err
		}
		if cur.IsActive {
			delta = cur.Amount
		}
		if balance, err = ledger.Apply(ctx, tx, delta); err != nil {
			return err
		}
		return tx.DeleteInvestment(ctx, id)
	})
	if err != nil {
		s.failed(ctx, log.OpDelete, userID, id, err)
		return fmt.Errorf("delete investment %d: %w", id, err)
	}

	s.committed(ctx, log.OpDelete, events.InvestmentDeleted, userID, id, delta, balance)
	return nil
}

func (s *InvestmentService) Get(ctx context.Context, userID, id core.ID) (core.Investment, error) {
	inv, err := s.store.GetInvestment(ctx, id)
	if err != nil {
		return core.Investment{}, err
	}
	if err := core.Guard(inv.UserID, userID); err != nil {
		return core.Investment{}, err
	}
	return inv, nil
}

func (s *InvestmentService) List(ctx context.Context, userID core.ID) ([]core.Investment, error) {
	return s.store.ListInvestments(ctx, userID)
}
