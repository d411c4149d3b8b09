package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order routing and market condition event type tags.
const (
	TypeOrderPlaced                = "order.placed"
	TypeOrderRouted                = "order.routed"
	TypeOrderSplit                 = "order.split"
	TypeRoutingFailed              = "order.routing_failed"
	TypeOrderExecuted              = "order.executed"
	TypeMarketVolatilityChanged    = "market.volatility_changed"
	TypeSpreadAdjusted             = "market.spread_adjusted"
	TypeInventoryImbalanceDetected = "market.inventory_imbalance_detected"
)

// OrderSide is the direction of an order against the base currency.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderPlaced struct {
	OrderID       uuid.UUID       `json:"order_id"`
	BaseCurrency  string          `json:"base_currency"`
	QuoteCurrency string          `json:"quote_currency"`
	Side          OrderSide       `json:"side"`
	Amount        decimal.Decimal `json:"amount"`
}

func (*OrderPlaced) EventType() string { return TypeOrderPlaced }

// OrderRouted assigns an order, or one leg of a split order, to a pool.
type OrderRouted struct {
	OrderID        uuid.UUID       `json:"order_id"`
	PoolID         uuid.UUID       `json:"pool_id"`
	Amount         decimal.Decimal `json:"amount"`
	EstimatedPrice decimal.Decimal `json:"estimated_price"`
	FeeRate        decimal.Decimal `json:"fee_rate"`
}

func (*OrderRouted) EventType() string { return TypeOrderRouted }

// RouteAllocation is one leg of a split order.
type RouteAllocation struct {
	PoolID         uuid.UUID       `json:"pool_id"`
	Amount         decimal.Decimal `json:"amount"`
	EstimatedPrice decimal.Decimal `json:"estimated_price"`
	FeeRate        decimal.Decimal `json:"fee_rate"`
}

// OrderSplit distributes an order across several pools when no single pool
// can absorb it under the impact cap.
type OrderSplit struct {
	OrderID        uuid.UUID         `json:"order_id"`
	Allocations    []RouteAllocation `json:"allocations"`
	TotalAllocated decimal.Decimal   `json:"total_allocated"`
}

func (*OrderSplit) EventType() string { return TypeOrderSplit }

type RoutingFailed struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}

func (*RoutingFailed) EventType() string { return TypeRoutingFailed }

type OrderExecuted struct {
	OrderID      uuid.UUID       `json:"order_id"`
	PoolID       uuid.UUID       `json:"pool_id"`
	FilledAmount decimal.Decimal `json:"filled_amount"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

func (*OrderExecuted) EventType() string { return TypeOrderExecuted }

// VolatilityLevel classifies observed market volatility.
type VolatilityLevel string

const (
	VolatilityNormal   VolatilityLevel = "normal"
	VolatilityElevated VolatilityLevel = "elevated"
	VolatilityExtreme  VolatilityLevel = "extreme"
)

type MarketVolatilityChanged struct {
	AssetCode string          `json:"asset_code"`
	Level     VolatilityLevel `json:"level"`
	// Delta is the absolute relative price change that triggered the event,
	// e.g. 0.07 for a 7% move.
	Delta decimal.Decimal `json:"delta"`
}

func (*MarketVolatilityChanged) EventType() string { return TypeMarketVolatilityChanged }

type SpreadAdjusted struct {
	PoolID       uuid.UUID `json:"pool_id"`
	OldSpreadBps float64   `json:"old_spread_bps"`
	NewSpreadBps float64   `json:"new_spread_bps"`
	Reason       string    `json:"reason"`
}

func (*SpreadAdjusted) EventType() string { return TypeSpreadAdjusted }

// ImbalanceSeverity grades how far a pool's base-value share has drifted
// from 50/50.
type ImbalanceSeverity string

const (
	ImbalanceModerate ImbalanceSeverity = "moderate"
	ImbalanceCritical ImbalanceSeverity = "critical"
)

type InventoryImbalanceDetected struct {
	PoolID            uuid.UUID         `json:"pool_id"`
	BaseRatio         decimal.Decimal   `json:"base_ratio"`
	Severity          ImbalanceSeverity `json:"severity"`
	RecommendedAction string            `json:"recommended_action"`
}

func (*InventoryImbalanceDetected) EventType() string { return TypeInventoryImbalanceDetected }
