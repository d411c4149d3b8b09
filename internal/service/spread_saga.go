package service

import (
	"context"
	"math"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Volatility classification and spread scaling thresholds.
const (
	elevatedVolatilityDelta = 0.05
	extremeVolatilityDelta  = 0.10

	elevatedSpreadMultiplier = 2.0
	extremeSpreadMultiplier  = 3.0

	// Spread changes under 10% are ignored to avoid churn on small moves.
	minRelativeSpreadChange = 0.10

	// Shallow pools quote wider: depth is both reserves valued in quote units.
	lowDepthNotional            = 10_000
	mediumDepthNotional         = 50_000
	lowDepthSpreadMultiplier    = 1.5
	mediumDepthSpreadMultiplier = 1.2

	moderateImbalanceSpreadMultiplier = 1.25
	criticalImbalanceSpreadMultiplier = 1.5
)

// Reason tags carried on SpreadAdjusted events.
const (
	reasonVolatilityChange = "volatility_change"
	reasonLiquidityAdded   = "liquidity_added"
	reasonLiquidityRemoved = "liquidity_removed"
)

// SpreadOptions bound the adaptive spread and grade inventory imbalance.
type SpreadOptions struct {
	MinSpreadBps     float64
	MaxSpreadBps     float64
	DefaultSpreadBps float64
	// ModerateImbalance and CriticalImbalance are deviations of the base
	// value share from 50%, e.g. 0.15 and 0.35.
	ModerateImbalance float64
	CriticalImbalance float64
}

// SpreadController widens pool spreads under volatility and flags inventory
// imbalance. Spread changes are persisted through the pool aggregate, so they
// survive restarts and replays.
type SpreadController struct {
	pools     *Repository[*domain.LiquidityPool]
	directory ports.PoolDirectory
	state     ports.SpreadStateStore
	rates     ports.RateService
	bus       ports.EventBus
	opts      SpreadOptions
	log       zerolog.Logger
}

// NewSpreadController creates a new SpreadController.
func NewSpreadController(
	pools *Repository[*domain.LiquidityPool],
	directory ports.PoolDirectory,
	state ports.SpreadStateStore,
	rates ports.RateService,
	bus ports.EventBus,
	opts SpreadOptions,
	log zerolog.Logger,
) *SpreadController {
	return &SpreadController{
		pools:     pools,
		directory: directory,
		state:     state,
		rates:     rates,
		bus:       bus,
		opts:      opts,
		log:       log,
	}
}

// Register subscribes the controller to reserve-changing pool events: spreads
// are retuned when liquidity moves, imbalance is graded as inventory drifts.
// Must be registered after the pool projector so the directory is current.
func (c *SpreadController) Register(bus ports.EventBus) {
	bus.Subscribe(domain.TypeLiquidityAdded, func(ctx context.Context, event domain.Event) error {
		return c.onLiquidityChange(ctx, event.AggregateID, reasonLiquidityAdded)
	})
	bus.Subscribe(domain.TypeLiquidityRemoved, func(ctx context.Context, event domain.Event) error {
		return c.onLiquidityChange(ctx, event.AggregateID, reasonLiquidityRemoved)
	})
	bus.Subscribe(domain.TypeSwapExecuted, func(ctx context.Context, event domain.Event) error {
		_, err := c.CheckInventory(ctx, event.AggregateID)
		return err
	})
}

func (c *SpreadController) onLiquidityChange(ctx context.Context, poolID uuid.UUID, reason string) error {
	if err := c.RecalculateSpread(ctx, poolID, reason); err != nil {
		return err
	}
	_, err := c.CheckInventory(ctx, poolID)
	return err
}

// ClassifyVolatility grades an absolute relative price move.
func ClassifyVolatility(delta float64) domain.VolatilityLevel {
	switch {
	case math.Abs(delta) > extremeVolatilityDelta:
		return domain.VolatilityExtreme
	case math.Abs(delta) > elevatedVolatilityDelta:
		return domain.VolatilityElevated
	default:
		return domain.VolatilityNormal
	}
}

// TargetSpreadBps computes the spread for a volatility level, clamped to the
// configured bounds.
func (c *SpreadController) TargetSpreadBps(level domain.VolatilityLevel) float64 {
	target := c.opts.DefaultSpreadBps
	switch level {
	case domain.VolatilityElevated:
		target *= elevatedSpreadMultiplier
	case domain.VolatilityExtreme:
		target *= extremeSpreadMultiplier
	}
	return math.Min(math.Max(target, c.opts.MinSpreadBps), c.opts.MaxSpreadBps)
}

// OnPriceMove records the new volatility level for an asset and retunes the
// spread of every pool trading it.
func (c *SpreadController) OnPriceMove(ctx context.Context, assetCode string, delta float64) error {
	level := ClassifyVolatility(delta)
	if err := c.state.SetVolatility(ctx, assetCode, level); err != nil {
		return err
	}

	c.publish(ctx, uuid.Nil, &domain.MarketVolatilityChanged{
		AssetCode: assetCode,
		Level:     level,
		Delta:     decimal.NewFromFloat(math.Abs(delta)),
	})

	pools, err := c.poolsTrading(ctx, assetCode)
	if err != nil {
		return err
	}
	for _, pool := range pools {
		if err := c.adjustPool(ctx, pool, c.TargetSpreadBps(level), reasonVolatilityChange); err != nil {
			c.log.Error().Err(err).Str("pool_id", pool.ID.String()).Msg("spread adjustment failed")
		}
	}
	return nil
}

// RecalculateSpread retunes one pool's spread from its current volatility,
// liquidity depth and inventory skew. Called when liquidity moves.
func (c *SpreadController) RecalculateSpread(ctx context.Context, poolID uuid.UUID, reason string) error {
	state, err := c.directory.Get(ctx, poolID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	level, err := c.state.GetVolatility(ctx, state.BaseCurrency)
	if err != nil {
		level = domain.VolatilityNormal
	}
	baseValue, err := c.baseValue(ctx, state)
	if err != nil {
		return err
	}

	return c.adjustPool(ctx, *state, c.targetSpreadForPool(level, baseValue, state.QuoteReserve), reason)
}

// targetSpreadForPool composes the volatility, depth and imbalance
// multipliers, then clamps to the configured bounds.
func (c *SpreadController) targetSpreadForPool(level domain.VolatilityLevel, baseValue, quoteReserve decimal.Decimal) float64 {
	target := c.opts.DefaultSpreadBps
	switch level {
	case domain.VolatilityElevated:
		target *= elevatedSpreadMultiplier
	case domain.VolatilityExtreme:
		target *= extremeSpreadMultiplier
	}

	total := baseValue.Add(quoteReserve)
	depth, _ := total.Float64()
	switch {
	case depth < lowDepthNotional:
		target *= lowDepthSpreadMultiplier
	case depth < mediumDepthNotional:
		target *= mediumDepthSpreadMultiplier
	}

	if total.IsPositive() {
		ratio, _ := baseValue.DivRound(total, 18).Float64()
		switch deviation := math.Abs(ratio - 0.5); {
		case deviation > c.opts.CriticalImbalance:
			target *= criticalImbalanceSpreadMultiplier
		case deviation > c.opts.ModerateImbalance:
			target *= moderateImbalanceSpreadMultiplier
		}
	}

	return math.Min(math.Max(target, c.opts.MinSpreadBps), c.opts.MaxSpreadBps)
}

// adjustPool applies the target spread when the relative change is large
// enough to matter.
func (c *SpreadController) adjustPool(ctx context.Context, state ports.PoolState, target float64, reason string) error {
	current := state.SpreadBps
	if stored, ok, err := c.state.GetSpread(ctx, state.ID); err == nil && ok {
		current = stored
	}

	if current > 0 && math.Abs(target-current)/current <= minRelativeSpreadChange {
		return nil
	}

	pool, err := c.pools.Load(ctx, state.ID)
	if err != nil {
		return err
	}
	pool.UpdateParameters(nil, nil, &target)
	if err := c.pools.Save(ctx, pool); err != nil {
		return err
	}
	if err := c.state.SetSpread(ctx, state.ID, target); err != nil {
		c.log.Warn().Err(err).Str("pool_id", state.ID.String()).Msg("spread state write failed")
	}

	c.publish(ctx, state.ID, &domain.SpreadAdjusted{
		PoolID:       state.ID,
		OldSpreadBps: current,
		NewSpreadBps: target,
		Reason:       reason,
	})

	metrics.SpreadAdjustments.Inc()
	c.log.Info().
		Str("pool_id", state.ID.String()).
		Float64("old_bps", current).
		Float64("new_bps", target).
		Str("reason", reason).
		Msg("spread adjusted")
	return nil
}

// CheckInventory values both reserves at the market rate and grades how far
// the base share has drifted from 50%.
func (c *SpreadController) CheckInventory(ctx context.Context, poolID uuid.UUID) (*domain.InventoryImbalanceDetected, error) {
	state, err := c.directory.Get(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	baseValue, err := c.baseValue(ctx, state)
	if err != nil {
		return nil, err
	}

	total := baseValue.Add(state.QuoteReserve)
	if !total.IsPositive() {
		return nil, nil
	}
	baseRatio := baseValue.DivRound(total, 18)
	deviation, _ := baseRatio.Sub(decimal.NewFromFloat(0.5)).Abs().Float64()

	var severity domain.ImbalanceSeverity
	var action string
	switch {
	case deviation > c.opts.CriticalImbalance:
		severity, action = domain.ImbalanceCritical, "rebalance_urgent"
	case deviation > c.opts.ModerateImbalance:
		severity, action = domain.ImbalanceModerate, "monitor"
	default:
		return nil, nil
	}

	detected := &domain.InventoryImbalanceDetected{
		PoolID:            poolID,
		BaseRatio:         baseRatio,
		Severity:          severity,
		RecommendedAction: action,
	}
	c.publish(ctx, poolID, detected)

	c.log.Warn().
		Str("pool_id", poolID.String()).
		Str("base_ratio", baseRatio.String()).
		Str("severity", string(severity)).
		Msg("inventory imbalance detected")

	if severity == domain.ImbalanceCritical {
		if err := c.rebalance(ctx, state, baseValue); err != nil {
			c.log.Error().Err(err).Str("pool_id", poolID.String()).Msg("automatic rebalance failed")
		}
	}
	return detected, nil
}

// rebalance records the urgent rebalancing intent through the pool aggregate.
// The target is the base/quote reserve ratio that values both sides equally.
func (c *SpreadController) rebalance(ctx context.Context, state *ports.PoolState, baseValue decimal.Decimal) error {
	if !baseValue.IsPositive() || !state.QuoteReserve.IsPositive() {
		return nil
	}

	pool, err := c.pools.Load(ctx, state.ID)
	if err != nil {
		return err
	}
	if err := pool.Rebalance(state.BaseReserve.DivRound(baseValue, 18), decimal.Zero); err != nil {
		return err
	}
	return c.pools.Save(ctx, pool)
}

// baseValue prices the base reserve in quote units at the market rate.
func (c *SpreadController) baseValue(ctx context.Context, state *ports.PoolState) (decimal.Decimal, error) {
	if c.rates == nil {
		return state.BaseReserve, nil
	}
	return c.rates.Convert(ctx, state.BaseCurrency, state.QuoteCurrency, state.BaseReserve)
}

func (c *SpreadController) poolsTrading(ctx context.Context, assetCode string) ([]ports.PoolState, error) {
	return c.directory.ListByAsset(ctx, assetCode)
}

func (c *SpreadController) publish(ctx context.Context, aggregateID uuid.UUID, payload domain.EventPayload) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(ctx, domain.Event{
		AggregateID: aggregateID,
		Type:        payload.EventType(),
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	})
}
