package service

import (
	"context"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BalanceProjector keeps the balance read model in sync with committed
// account events and can rebuild it from scratch off the event log.
type BalanceProjector struct {
	balances ports.BalanceReadModel
	store    ports.EventStore
	log      zerolog.Logger
}

// NewBalanceProjector creates a new BalanceProjector.
func NewBalanceProjector(balances ports.BalanceReadModel, store ports.EventStore, log zerolog.Logger) *BalanceProjector {
	return &BalanceProjector{balances: balances, store: store, log: log}
}

// Register subscribes the projector to every account event type.
func (p *BalanceProjector) Register(bus ports.EventBus) {
	for _, eventType := range []string{
		domain.TypeAccountOpened,
		domain.TypeMoneyCredited,
		domain.TypeMoneyDebited,
		domain.TypeAccountFrozen,
		domain.TypeAccountUnfrozen,
	} {
		bus.Subscribe(eventType, p.handle)
	}
}

func (p *BalanceProjector) handle(ctx context.Context, event domain.Event) error {
	return p.balances.ApplyEvent(ctx, event)
}

// Rebuild resets the projection and replays the full event log into it.
// The result must be identical to the incrementally maintained state.
func (p *BalanceProjector) Rebuild(ctx context.Context) error {
	if err := p.balances.Reset(ctx); err != nil {
		return err
	}

	count := 0
	err := p.store.ReadAll(ctx, func(event domain.Event) error {
		if err := p.balances.ApplyEvent(ctx, event); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}

	p.log.Info().Int("events", count).Msg("balance projection rebuilt")
	return nil
}

// PoolProjector maintains the pool directory the order router reads.
type PoolProjector struct {
	directory ports.PoolDirectory
	log       zerolog.Logger
}

// NewPoolProjector creates a new PoolProjector.
func NewPoolProjector(directory ports.PoolDirectory, log zerolog.Logger) *PoolProjector {
	return &PoolProjector{directory: directory, log: log}
}

// Register subscribes the projector to every pool event type.
func (p *PoolProjector) Register(bus ports.EventBus) {
	for _, eventType := range []string{
		domain.TypePoolCreated,
		domain.TypeLiquidityAdded,
		domain.TypeLiquidityRemoved,
		domain.TypeSwapExecuted,
		domain.TypePoolParametersUpdated,
	} {
		bus.Subscribe(eventType, p.handle)
	}
}

func (p *PoolProjector) handle(ctx context.Context, event domain.Event) error {
	switch e := event.Payload.(type) {
	case *domain.PoolCreated:
		return p.directory.Upsert(ctx, ports.PoolState{
			ID:            e.PoolID,
			BaseCurrency:  e.BaseCurrency,
			QuoteCurrency: e.QuoteCurrency,
			FeeRate:       e.FeeRate,
			SpreadBps:     e.SpreadBps,
			IsActive:      true,
		})
	case *domain.LiquidityAdded:
		return p.updateReserves(ctx, event, e.NewBaseReserve, e.NewQuoteReserve)
	case *domain.LiquidityRemoved:
		return p.updateReserves(ctx, event, e.NewBaseReserve, e.NewQuoteReserve)
	case *domain.SwapExecuted:
		return p.updateReserves(ctx, event, e.NewBaseReserve, e.NewQuoteReserve)
	case *domain.PoolParametersUpdated:
		state, err := p.directory.Get(ctx, e.PoolID)
		if err != nil || state == nil {
			return err
		}
		if e.FeeRate != nil {
			state.FeeRate = *e.FeeRate
		}
		if e.IsActive != nil {
			state.IsActive = *e.IsActive
		}
		if e.SpreadBps != nil {
			state.SpreadBps = *e.SpreadBps
		}
		return p.directory.Upsert(ctx, *state)
	}
	return nil
}

func (p *PoolProjector) updateReserves(ctx context.Context, event domain.Event, base, quote decimal.Decimal) error {
	state, err := p.directory.Get(ctx, event.AggregateID)
	if err != nil || state == nil {
		return err
	}
	state.BaseReserve = base
	state.QuoteReserve = quote
	return p.directory.Upsert(ctx, *state)
}
