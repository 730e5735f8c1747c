package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pfm/internal/core"
)

type Kind string

const (
	ExpenseCreated    Kind = "expense.created"
	ExpenseUpdated    Kind = "expense.updated"
	ExpenseDeleted    Kind = "expense.deleted"
	InvestmentCreated Kind = "investment.created"
	InvestmentUpdated Kind = "investment.updated"
	InvestmentClosed  Kind = "investment.closed"
	InvestmentDeleted Kind = "investment.deleted"
	BalanceToppedUp   Kind = "balance.topped_up"
)

// LedgerEvent describes one committed balance-affecting operation.
type LedgerEvent struct {
	ID         uuid.UUID  `json:"id"`
	UserID     core.ID    `json:"user_id"`
	Kind       Kind       `json:"kind"`
	EntityID   core.ID    `json:"entity_id,omitempty"`
	Delta      core.Money `json:"delta"`
	Balance    core.Money `json:"balance"`
	OccurredAt time.Time  `json:"occurred_at"`
}

func NewLedgerEvent(userID core.ID, kind Kind, entityID core.ID, delta, balance core.Money, at time.Time) LedgerEvent {
	return LedgerEvent{
		ID:         uuid.New(),
		UserID:     userID,
		Kind:       kind,
		EntityID:   entityID,
		Delta:      delta,
		Balance:    balance,
		OccurredAt: at,
	}
}

// ToJSON converts the event to JSON bytes
func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event published by Client.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	return e, nil
}
