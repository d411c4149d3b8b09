package domain

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-core/pkg/apperror"
)

// Liquidity pool event type tags.
const (
	TypePoolCreated           = "pool.created"
	TypeLiquidityAdded        = "pool.liquidity_added"
	TypeLiquidityRemoved      = "pool.liquidity_removed"
	TypeSwapExecuted          = "pool.swap_executed"
	TypePoolRebalanced        = "pool.rebalanced"
	TypePoolParametersUpdated = "pool.parameters_updated"
)

// Reserve ratio on follow-up liquidity adds may deviate at most 1% from the
// pool ratio.
var poolRatioTolerance = decimal.NewFromFloat(0.01)

type PoolCreated struct {
	PoolID        uuid.UUID       `json:"pool_id"`
	BaseCurrency  string          `json:"base_currency"`
	QuoteCurrency string          `json:"quote_currency"`
	FeeRate       decimal.Decimal `json:"fee_rate"`
	SpreadBps     float64         `json:"spread_bps"`
}

func (*PoolCreated) EventType() string { return TypePoolCreated }

// LiquidityAdded carries the post-add reserves so replay needs no recomputation.
type LiquidityAdded struct {
	PoolID          uuid.UUID       `json:"pool_id"`
	ProviderID      string          `json:"provider_id"`
	BaseAmount      decimal.Decimal `json:"base_amount"`
	QuoteAmount     decimal.Decimal `json:"quote_amount"`
	SharesMinted    decimal.Decimal `json:"shares_minted"`
	NewBaseReserve  decimal.Decimal `json:"new_base_reserve"`
	NewQuoteReserve decimal.Decimal `json:"new_quote_reserve"`
	NewTotalShares  decimal.Decimal `json:"new_total_shares"`
}

func (*LiquidityAdded) EventType() string { return TypeLiquidityAdded }

type LiquidityRemoved struct {
	PoolID          uuid.UUID       `json:"pool_id"`
	ProviderID      string          `json:"provider_id"`
	SharesBurned    decimal.Decimal `json:"shares_burned"`
	BaseAmount      decimal.Decimal `json:"base_amount"`
	QuoteAmount     decimal.Decimal `json:"quote_amount"`
	NewBaseReserve  decimal.Decimal `json:"new_base_reserve"`
	NewQuoteReserve decimal.Decimal `json:"new_quote_reserve"`
	NewTotalShares  decimal.Decimal `json:"new_total_shares"`
}

func (*LiquidityRemoved) EventType() string { return TypeLiquidityRemoved }

// SwapExecuted records a constant-product swap. The fee stays in the input
// reserve, so the invariant product never decreases.
type SwapExecuted struct {
	PoolID          uuid.UUID       `json:"pool_id"`
	InputCurrency   string          `json:"input_currency"`
	InputAmount     decimal.Decimal `json:"input_amount"`
	OutputCurrency  string          `json:"output_currency"`
	OutputAmount    decimal.Decimal `json:"output_amount"`
	FeeAmount       decimal.Decimal `json:"fee_amount"`
	PriceImpactPct  decimal.Decimal `json:"price_impact_pct"`
	NewBaseReserve  decimal.Decimal `json:"new_base_reserve"`
	NewQuoteReserve decimal.Decimal `json:"new_quote_reserve"`
}

func (*SwapExecuted) EventType() string { return TypeSwapExecuted }

type PoolRebalanced struct {
	PoolID      uuid.UUID       `json:"pool_id"`
	OldRatio    decimal.Decimal `json:"old_ratio"`
	TargetRatio decimal.Decimal `json:"target_ratio"`
}

func (*PoolRebalanced) EventType() string { return TypePoolRebalanced }

// PoolParametersUpdated changes fee rate, active flag and/or spread. Nil
// fields are left untouched.
type PoolParametersUpdated struct {
	PoolID    uuid.UUID        `json:"pool_id"`
	FeeRate   *decimal.Decimal `json:"fee_rate,omitempty"`
	IsActive  *bool            `json:"is_active,omitempty"`
	SpreadBps *float64         `json:"spread_bps,omitempty"`
}

func (*PoolParametersUpdated) EventType() string { return TypePoolParametersUpdated }

// SwapResult is returned to the caller of Swap.
type SwapResult struct {
	OutputAmount   decimal.Decimal
	OutputCurrency string
	FeeAmount      decimal.Decimal
	PriceImpactPct decimal.Decimal
}

// LiquidityPool is the constant-product AMM aggregate. Reserves are mutated
// only through its command methods.
type LiquidityPool struct {
	ID            uuid.UUID
	BaseCurrency  string
	QuoteCurrency string
	BaseReserve   decimal.Decimal
	QuoteReserve  decimal.Decimal
	TotalShares   decimal.Decimal
	FeeRate       decimal.Decimal
	SpreadBps     float64
	IsActive      bool
	Providers     map[string]decimal.Decimal

	Version int64
	changes []Event
}

// NewLiquidityPool returns an empty aggregate ready for replay.
func NewLiquidityPool(id uuid.UUID) *LiquidityPool {
	return &LiquidityPool{
		ID:           id,
		BaseReserve:  decimal.Zero,
		QuoteReserve: decimal.Zero,
		TotalShares:  decimal.Zero,
		FeeRate:      decimal.NewFromFloat(0.003),
		Providers:    make(map[string]decimal.Decimal),
	}
}

func (p *LiquidityPool) Changes() []Event { return p.changes }

func (p *LiquidityPool) MarkCommitted() {
	p.Version += int64(len(p.changes))
	p.changes = nil
}

// Create opens the pool stream. FeeRate defaults to 0.3% when zero.
func (p *LiquidityPool) Create(baseCurrency, quoteCurrency string, feeRate decimal.Decimal, spreadBps float64) error {
	if p.Version > 0 || len(p.changes) > 0 {
		return apperror.ErrAlreadyExists("Pool")
	}
	if feeRate.IsZero() {
		feeRate = decimal.NewFromFloat(0.003)
	}
	p.recordThat(&PoolCreated{
		PoolID:        p.ID,
		BaseCurrency:  baseCurrency,
		QuoteCurrency: quoteCurrency,
		FeeRate:       feeRate,
		SpreadBps:     spreadBps,
	}, nil)
	return nil
}

// AddLiquidity mints shares proportional to the contribution. The first
// provider receives the geometric mean of both amounts; later providers must
// match the pool ratio within tolerance and receive the minimum of the two
// reserve ratios, which prevents share-price manipulation.
func (p *LiquidityPool) AddLiquidity(providerID string, baseAmount, quoteAmount, minShares decimal.Decimal) error {
	if !p.IsActive {
		return apperror.ErrPoolInactive()
	}
	if !baseAmount.IsPositive() || !quoteAmount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}

	if !p.TotalShares.IsZero() {
		currentRatio := p.QuoteReserve.DivRound(p.BaseReserve, 18)
		inputRatio := quoteAmount.DivRound(baseAmount, 18)
		deviation := inputRatio.Sub(currentRatio).Abs().DivRound(currentRatio, 18)
		if deviation.GreaterThan(poolRatioTolerance) {
			return apperror.ErrRatioDeviation()
		}
	}

	shares := p.sharesForLiquidity(baseAmount, quoteAmount)
	if shares.LessThan(minShares) {
		return apperror.ErrSlippageExceeded()
	}

	p.recordThat(&LiquidityAdded{
		PoolID:          p.ID,
		ProviderID:      providerID,
		BaseAmount:      baseAmount,
		QuoteAmount:     quoteAmount,
		SharesMinted:    shares,
		NewBaseReserve:  p.BaseReserve.Add(baseAmount),
		NewQuoteReserve: p.QuoteReserve.Add(quoteAmount),
		NewTotalShares:  p.TotalShares.Add(shares),
	}, nil)
	return nil
}

// RemoveLiquidity burns shares and returns the proportional reserve amounts.
func (p *LiquidityPool) RemoveLiquidity(providerID string, shares, minBaseAmount, minQuoteAmount decimal.Decimal) error {
	if !p.IsActive {
		return apperror.ErrPoolInactive()
	}
	if !shares.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if p.Providers[providerID].LessThan(shares) {
		return apperror.ErrInsufficientShares()
	}

	shareRatio := shares.DivRound(p.TotalShares, 18)
	baseAmount := p.BaseReserve.Mul(shareRatio).RoundDown(8)
	quoteAmount := p.QuoteReserve.Mul(shareRatio).RoundDown(2)
	if baseAmount.LessThan(minBaseAmount) || quoteAmount.LessThan(minQuoteAmount) {
		return apperror.ErrSlippageExceeded()
	}

	p.recordThat(&LiquidityRemoved{
		PoolID:          p.ID,
		ProviderID:      providerID,
		SharesBurned:    shares,
		BaseAmount:      baseAmount,
		QuoteAmount:     quoteAmount,
		NewBaseReserve:  p.BaseReserve.Sub(baseAmount),
		NewQuoteReserve: p.QuoteReserve.Sub(quoteAmount),
		NewTotalShares:  p.TotalShares.Sub(shares),
	}, nil)
	return nil
}

// Swap executes a constant-product swap of inputAmount of inputCurrency.
func (p *LiquidityPool) Swap(inputCurrency string, inputAmount, minOutputAmount decimal.Decimal) (*SwapResult, error) {
	if !p.IsActive {
		return nil, apperror.ErrPoolInactive()
	}
	if !inputAmount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if inputCurrency != p.BaseCurrency && inputCurrency != p.QuoteCurrency {
		return nil, apperror.ErrUnsupportedCurrency(inputCurrency)
	}

	isBaseInput := inputCurrency == p.BaseCurrency
	inReserve, outReserve := p.BaseReserve, p.QuoteReserve
	outputCurrency := p.QuoteCurrency
	if !isBaseInput {
		inReserve, outReserve = p.QuoteReserve, p.BaseReserve
		outputCurrency = p.BaseCurrency
	}

	output := p.outputAmount(inputAmount, inReserve, outReserve)
	if output.LessThan(minOutputAmount) {
		return nil, apperror.ErrSlippageExceeded()
	}

	feeAmount := inputAmount.Mul(p.FeeRate)
	impact := p.priceImpact(inputAmount, output, inReserve, outReserve)

	newBase, newQuote := p.BaseReserve.Add(inputAmount), p.QuoteReserve.Sub(output)
	if !isBaseInput {
		newBase, newQuote = p.BaseReserve.Sub(output), p.QuoteReserve.Add(inputAmount)
	}

	p.recordThat(&SwapExecuted{
		PoolID:          p.ID,
		InputCurrency:   inputCurrency,
		InputAmount:     inputAmount,
		OutputCurrency:  outputCurrency,
		OutputAmount:    output,
		FeeAmount:       feeAmount,
		PriceImpactPct:  impact,
		NewBaseReserve:  newBase,
		NewQuoteReserve: newQuote,
	}, nil)

	return &SwapResult{
		OutputAmount:   output,
		OutputCurrency: outputCurrency,
		FeeAmount:      feeAmount,
		PriceImpactPct: impact,
	}, nil
}

// Rebalance records a rebalancing intent when the base/quote ratio deviates
// from the target by more than maxSlippage. The actual inventory moves are
// executed by the caller through swaps.
func (p *LiquidityPool) Rebalance(targetRatio, maxSlippage decimal.Decimal) error {
	if !p.IsActive {
		return apperror.ErrPoolInactive()
	}
	currentRatio := p.BaseReserve.DivRound(p.QuoteReserve, 18)
	deviation := currentRatio.Sub(targetRatio).Abs().DivRound(targetRatio, 18)
	if deviation.GreaterThan(maxSlippage) {
		p.recordThat(&PoolRebalanced{
			PoolID:      p.ID,
			OldRatio:    currentRatio,
			TargetRatio: targetRatio,
		}, nil)
	}
	return nil
}

// UpdateParameters changes fee rate, active flag and/or spread.
func (p *LiquidityPool) UpdateParameters(feeRate *decimal.Decimal, isActive *bool, spreadBps *float64) {
	if feeRate == nil && isActive == nil && spreadBps == nil {
		return
	}
	p.recordThat(&PoolParametersUpdated{
		PoolID:    p.ID,
		FeeRate:   feeRate,
		IsActive:  isActive,
		SpreadBps: spreadBps,
	}, nil)
}

// InvariantProduct returns baseReserve * quoteReserve.
func (p *LiquidityPool) InvariantProduct() decimal.Decimal {
	return p.BaseReserve.Mul(p.QuoteReserve)
}

func (p *LiquidityPool) sharesForLiquidity(baseAmount, quoteAmount decimal.Decimal) decimal.Decimal {
	if p.TotalShares.IsZero() {
		return sqrtDecimal(baseAmount.Mul(quoteAmount))
	}
	baseRatio := baseAmount.DivRound(p.BaseReserve, 18)
	quoteRatio := quoteAmount.DivRound(p.QuoteReserve, 18)
	ratio := baseRatio
	if quoteRatio.LessThan(baseRatio) {
		ratio = quoteRatio
	}
	return p.TotalShares.Mul(ratio)
}

// outputAmount applies the fee to the input, then the constant-product
// formula: dy = y * dx' / (x + dx').
func (p *LiquidityPool) outputAmount(input, inReserve, outReserve decimal.Decimal) decimal.Decimal {
	inputWithFee := input.Mul(decimal.NewFromInt(1).Sub(p.FeeRate))
	return outReserve.Mul(inputWithFee).DivRound(inReserve.Add(inputWithFee), 18)
}

func (p *LiquidityPool) priceImpact(input, output, inReserve, outReserve decimal.Decimal) decimal.Decimal {
	spot := outReserve.DivRound(inReserve, 18)
	exec := output.DivRound(input, 18)
	return spot.Sub(exec).DivRound(spot, 18).Abs().Mul(decimal.NewFromInt(100))
}

// Apply folds one event payload into state.
func (p *LiquidityPool) Apply(payload EventPayload) {
	switch e := payload.(type) {
	case *PoolCreated:
		p.BaseCurrency = e.BaseCurrency
		p.QuoteCurrency = e.QuoteCurrency
		p.FeeRate = e.FeeRate
		p.SpreadBps = e.SpreadBps
		p.IsActive = true
	case *LiquidityAdded:
		p.BaseReserve = e.NewBaseReserve
		p.QuoteReserve = e.NewQuoteReserve
		p.TotalShares = e.NewTotalShares
		p.Providers[e.ProviderID] = p.Providers[e.ProviderID].Add(e.SharesMinted)
	case *LiquidityRemoved:
		p.BaseReserve = e.NewBaseReserve
		p.QuoteReserve = e.NewQuoteReserve
		p.TotalShares = e.NewTotalShares
		p.Providers[e.ProviderID] = p.Providers[e.ProviderID].Sub(e.SharesBurned)
	case *SwapExecuted:
		p.BaseReserve = e.NewBaseReserve
		p.QuoteReserve = e.NewQuoteReserve
	case *PoolRebalanced:
		// Intent only; reserves move through subsequent swaps.
	case *PoolParametersUpdated:
		if e.FeeRate != nil {
			p.FeeRate = *e.FeeRate
		}
		if e.IsActive != nil {
			p.IsActive = *e.IsActive
		}
		if e.SpreadBps != nil {
			p.SpreadBps = *e.SpreadBps
		}
	}
}

// Replay folds committed history into the aggregate without recording.
func (p *LiquidityPool) Replay(events []Event) {
	for _, e := range events {
		p.Apply(e.Payload)
		p.Version = e.Version
	}
}

func (p *LiquidityPool) CurrentVersion() int64 { return p.Version }

func (p *LiquidityPool) SnapshotState() ([]byte, error) { return json.Marshal(p) }

func (p *LiquidityPool) RestoreSnapshot(state []byte, version int64) error {
	if err := json.Unmarshal(state, p); err != nil {
		return err
	}
	p.Version = version
	return nil
}

func (p *LiquidityPool) recordThat(payload EventPayload, metadata map[string]string) {
	p.changes = append(p.changes, Event{
		AggregateID: p.ID,
		Version:     p.Version + int64(len(p.changes)) + 1,
		Type:        payload.EventType(),
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
		Metadata:    metadata,
	})
	p.Apply(payload)
}

// sqrtDecimal approximates the square root at 8 decimal places. Initial share
// mints don't need more precision than the reserve scale.
func sqrtDecimal(d decimal.Decimal) decimal.Decimal {
	f, _ := d.Float64()
	return decimal.NewFromFloat(math.Sqrt(f)).RoundDown(8)
}
