// Package services implements the ledger operations on expenses, investments,
// budgets and users. Every balance change runs inside the owning user's
// transaction and goes through ledger.Apply.
package services

import (
	"context"
	"errors"

	"pfm/internal/core"
	"pfm/internal/events"
	"pfm/internal/ledger"
	"pfm/internal/log"
)

// Deps are the collaborators shared by all services. Events may be nil.
type Deps struct {
	Store  ledger.Store
	Events events.Emitter
	Clock  core.Clock
	Logger *log.Logger
}

type base struct {
	store  ledger.Store
	events events.Emitter
	clock  core.Clock
	logger *log.Logger
	entity string
}

func newBase(d Deps, component string) base {
	clock := d.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}
	logger := d.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return base{
		store:  d.Store,
		events: d.Events,
		clock:  clock,
		logger: logger.WithComponent(component),
		entity: component,
	}
}

// committed logs a balance-affecting operation and emits its event. It must
// only be called after the transaction committed.
func (b base) committed(ctx context.Context, op string, kind events.Kind, userID, entityID core.ID, delta, balance core.Money) {
	fields := log.NewFields().
		WithOperation(op).
		WithLedger(userID, b.entity, entityID, delta, balance)
	b.logger.InfoContext(ctx, "Ledger operation committed", fields.ToSlice()...)

	if b.events == nil {
		return
	}
	b.events.Emit(ctx, events.NewLedgerEvent(userID, kind, entityID, delta, balance, b.clock.Now()))
}

// failed logs a rejected operation. Client-side rejections are warnings;
// anything else is an error.
func (b base) failed(ctx context.Context, op string, userID, entityID core.ID, err error) {
	fields := log.NewFields().WithOperation(op).WithError(err)
	fields[log.FieldUserID] = int64(userID)
	if entityID != 0 {
		fields[log.FieldEntityID] = int64(entityID)
	}
	if isRejection(err) {
		b.logger.WarnContext(ctx, "Ledger operation rejected", fields.ToSlice()...)
		return
	}
	b.logger.ErrorContext(ctx, "Ledger operation failed", fields.ToSlice()...)
}

func isRejection(err error) bool {
	for _, target := range []error{
		core.ErrInsufficientFunds,
		core.ErrForbidden,
		core.ErrNotFound,
		core.ErrInvalidState,
		core.ErrValidation,
		core.ErrBudgetOverlap,
		core.ErrUnauthenticated,
		core.ErrEmailTaken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
