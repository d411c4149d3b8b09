package service

import (
	"context"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PoolServiceImpl implements ports.PoolService.
type PoolServiceImpl struct {
	pools *Repository[*domain.LiquidityPool]
	log   zerolog.Logger
}

// NewPoolService creates a new PoolServiceImpl.
func NewPoolService(pools *Repository[*domain.LiquidityPool], log zerolog.Logger) *PoolServiceImpl {
	return &PoolServiceImpl{pools: pools, log: log}
}

// CreatePool opens a new pool stream.
func (s *PoolServiceImpl) CreatePool(ctx context.Context, baseCurrency, quoteCurrency string, feeRate decimal.Decimal, spreadBps float64) (uuid.UUID, error) {
	pool := domain.NewLiquidityPool(uuid.New())
	if err := pool.Create(baseCurrency, quoteCurrency, feeRate, spreadBps); err != nil {
		return uuid.Nil, err
	}
	if err := s.pools.Save(ctx, pool); err != nil {
		return uuid.Nil, err
	}

	s.log.Info().
		Str("pool_id", pool.ID.String()).
		Str("pair", baseCurrency+"/"+quoteCurrency).
		Msg("liquidity pool created")
	return pool.ID, nil
}

// AddLiquidity mints shares for a provider contribution.
func (s *PoolServiceImpl) AddLiquidity(ctx context.Context, req ports.LiquidityRequest) error {
	return s.withPool(ctx, req.PoolID, func(p *domain.LiquidityPool) error {
		return p.AddLiquidity(req.ProviderID, req.BaseAmount, req.QuoteAmount, req.MinShares)
	})
}

// RemoveLiquidity burns shares and pays out proportional reserves.
func (s *PoolServiceImpl) RemoveLiquidity(ctx context.Context, poolID uuid.UUID, providerID string, shares, minBase, minQuote decimal.Decimal) error {
	return s.withPool(ctx, poolID, func(p *domain.LiquidityPool) error {
		return p.RemoveLiquidity(providerID, shares, minBase, minQuote)
	})
}

// Swap executes one constant-product swap.
func (s *PoolServiceImpl) Swap(ctx context.Context, poolID uuid.UUID, inputCurrency string, amount, minOutput decimal.Decimal) (*domain.SwapResult, error) {
	var result *domain.SwapResult
	err := s.withPool(ctx, poolID, func(p *domain.LiquidityPool) error {
		res, err := p.Swap(inputCurrency, amount, minOutput)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetPool rebuilds the pool from its stream.
func (s *PoolServiceImpl) GetPool(ctx context.Context, poolID uuid.UUID) (*domain.LiquidityPool, error) {
	return s.pools.Load(ctx, poolID)
}

func (s *PoolServiceImpl) withPool(ctx context.Context, id uuid.UUID, command func(*domain.LiquidityPool) error) error {
	pool, err := s.pools.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := command(pool); err != nil {
		return err
	}
	return s.pools.Save(ctx, pool)
}
