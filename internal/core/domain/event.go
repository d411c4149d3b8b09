package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"ledger-core/pkg/apperror"
)

// EventPayload is implemented by every domain event. The type tag is used
// for storage and for bus dispatch.
type EventPayload interface {
	EventType() string
}

// Event is the stored envelope around a domain event. Version is strictly
// increasing per aggregate; events are immutable once appended.
type Event struct {
	AggregateID uuid.UUID         `json:"aggregate_id"`
	Version     int64             `json:"version"`
	Type        string            `json:"type"`
	Payload     EventPayload      `json:"payload"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// DecodePayload reconstructs a typed payload from its stored JSON form.
// The dispatch set is closed: an unknown type is a hard error, not a skip.
func DecodePayload(eventType string, data []byte) (EventPayload, error) {
	var p EventPayload

	switch eventType {
	case TypeAccountOpened:
		p = &AccountOpened{}
	case TypeMoneyCredited:
		p = &MoneyCredited{}
	case TypeMoneyDebited:
		p = &MoneyDebited{}
	case TypeAccountFrozen:
		p = &AccountFrozen{}
	case TypeAccountUnfrozen:
		p = &AccountUnfrozen{}
	case TypeLoanApplicationSubmitted:
		p = &LoanApplicationSubmitted{}
	case TypeLoanApplicationApproved:
		p = &LoanApplicationApproved{}
	case TypeLoanApplicationRejected:
		p = &LoanApplicationRejected{}
	case TypeLoanApplicationWithdrawn:
		p = &LoanApplicationWithdrawn{}
	case TypeLoanCreated:
		p = &LoanCreated{}
	case TypeLoanFunded:
		p = &LoanFunded{}
	case TypeLoanDisbursed:
		p = &LoanDisbursed{}
	case TypeLoanRepaymentMade:
		p = &LoanRepaymentMade{}
	case TypeLoanPaymentMissed:
		p = &LoanPaymentMissed{}
	case TypeLoanDefaulted:
		p = &LoanDefaulted{}
	case TypeLoanCompleted:
		p = &LoanCompleted{}
	case TypeLoanSettledEarly:
		p = &LoanSettledEarly{}
	case TypePoolCreated:
		p = &PoolCreated{}
	case TypeLiquidityAdded:
		p = &LiquidityAdded{}
	case TypeLiquidityRemoved:
		p = &LiquidityRemoved{}
	case TypeSwapExecuted:
		p = &SwapExecuted{}
	case TypePoolRebalanced:
		p = &PoolRebalanced{}
	case TypePoolParametersUpdated:
		p = &PoolParametersUpdated{}
	case TypeOrderPlaced:
		p = &OrderPlaced{}
	case TypeOrderRouted:
		p = &OrderRouted{}
	case TypeOrderSplit:
		p = &OrderSplit{}
	case TypeRoutingFailed:
		p = &RoutingFailed{}
	case TypeOrderExecuted:
		p = &OrderExecuted{}
	case TypeMarketVolatilityChanged:
		p = &MarketVolatilityChanged{}
	case TypeSpreadAdjusted:
		p = &SpreadAdjusted{}
	case TypeInventoryImbalanceDetected:
		p = &InventoryImbalanceDetected{}
	default:
		return nil, apperror.ErrUnknownEventType(eventType)
	}

	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}
