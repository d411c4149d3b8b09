package postgres

import (
	"context"
	"errors"
	"fmt"

	"ledger-core/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PoolDirectory implements ports.PoolDirectory on the pool_directory table.
type PoolDirectory struct {
	pool Pool
}

// NewPoolDirectory creates a new PoolDirectory.
func NewPoolDirectory(pool Pool) *PoolDirectory {
	return &PoolDirectory{pool: pool}
}

// Upsert writes the pool's routing view.
func (d *PoolDirectory) Upsert(ctx context.Context, state ports.PoolState) error {
	query := `INSERT INTO pool_directory
			(pool_id, base_currency, quote_currency, base_reserve, quote_reserve, fee_rate, spread_bps, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (pool_id) DO UPDATE SET
			base_reserve = EXCLUDED.base_reserve,
			quote_reserve = EXCLUDED.quote_reserve,
			fee_rate = EXCLUDED.fee_rate,
			spread_bps = EXCLUDED.spread_bps,
			is_active = EXCLUDED.is_active`

	_, err := d.pool.Exec(ctx, query,
		state.ID, state.BaseCurrency, state.QuoteCurrency,
		state.BaseReserve, state.QuoteReserve, state.FeeRate, state.SpreadBps, state.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upsert pool state: %w", err)
	}
	return nil
}

// Get returns one pool's state, nil when unknown.
func (d *PoolDirectory) Get(ctx context.Context, poolID uuid.UUID) (*ports.PoolState, error) {
	query := `SELECT pool_id, base_currency, quote_currency, base_reserve, quote_reserve, fee_rate, spread_bps, is_active
		FROM pool_directory WHERE pool_id = $1`

	state := &ports.PoolState{}
	err := d.pool.QueryRow(ctx, query, poolID).Scan(
		&state.ID, &state.BaseCurrency, &state.QuoteCurrency,
		&state.BaseReserve, &state.QuoteReserve, &state.FeeRate, &state.SpreadBps, &state.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pool state: %w", err)
	}
	return state, nil
}

// ListByPair returns every pool trading the pair.
func (d *PoolDirectory) ListByPair(ctx context.Context, baseCurrency, quoteCurrency string) ([]ports.PoolState, error) {
	query := `SELECT pool_id, base_currency, quote_currency, base_reserve, quote_reserve, fee_rate, spread_bps, is_active
		FROM pool_directory WHERE base_currency = $1 AND quote_currency = $2`

	return d.list(ctx, query, baseCurrency, quoteCurrency)
}

// ListByAsset returns every pool with the asset on either side.
func (d *PoolDirectory) ListByAsset(ctx context.Context, assetCode string) ([]ports.PoolState, error) {
	query := `SELECT pool_id, base_currency, quote_currency, base_reserve, quote_reserve, fee_rate, spread_bps, is_active
		FROM pool_directory WHERE base_currency = $1 OR quote_currency = $1`

	return d.list(ctx, query, assetCode)
}

func (d *PoolDirectory) list(ctx context.Context, query string, args ...any) ([]ports.PoolState, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pool states: %w", err)
	}
	defer rows.Close()

	var states []ports.PoolState
	for rows.Next() {
		var state ports.PoolState
		if err := rows.Scan(
			&state.ID, &state.BaseCurrency, &state.QuoteCurrency,
			&state.BaseReserve, &state.QuoteReserve, &state.FeeRate, &state.SpreadBps, &state.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan pool state: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}
