package service

import (
	"context"
	"testing"

	"ledger-core/internal/adapter/storage/memory"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolFixture struct {
	svc       *PoolServiceImpl
	directory *memory.PoolDirectory
}

func newPoolFixture(t *testing.T) *poolFixture {
	t.Helper()
	store := memory.NewEventStore()
	directory := memory.NewPoolDirectory()
	bus := NewInMemoryEventBus(zerolog.Nop())
	NewPoolProjector(directory, zerolog.Nop()).Register(bus)

	pools := NewRepository(store, memory.NewSnapshotStore(), bus, domain.NewLiquidityPool, 0, zerolog.Nop())
	return &poolFixture{svc: NewPoolService(pools, zerolog.Nop()), directory: directory}
}

func TestPoolService_CreateAndSeed(t *testing.T) {
	f := newPoolFixture(t)
	ctx := context.Background()

	poolID, err := f.svc.CreatePool(ctx, "BTC", "USD", decimal.RequireFromString("0.003"), 30)
	require.NoError(t, err)

	require.NoError(t, f.svc.AddLiquidity(ctx, ports.LiquidityRequest{
		PoolID:      poolID,
		ProviderID:  "lp-1",
		BaseAmount:  decimal.NewFromInt(100),
		QuoteAmount: decimal.NewFromInt(10_000),
		MinShares:   decimal.Zero,
	}))

	pool, err := f.svc.GetPool(ctx, poolID)
	require.NoError(t, err)
	assert.True(t, pool.TotalShares.Equal(decimal.NewFromInt(1_000)), "geometric mean of 100 and 10000")
	assert.True(t, pool.BaseReserve.Equal(decimal.NewFromInt(100)))

	// The directory projection follows the stream.
	state, err := f.directory.Get(ctx, poolID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.BaseReserve.Equal(decimal.NewFromInt(100)))
	assert.True(t, state.QuoteReserve.Equal(decimal.NewFromInt(10_000)))
	assert.True(t, state.IsActive)
}

func TestPoolService_SwapPreservesInvariant(t *testing.T) {
	f := newPoolFixture(t)
	ctx := context.Background()

	poolID, err := f.svc.CreatePool(ctx, "BTC", "USD", decimal.RequireFromString("0.003"), 30)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddLiquidity(ctx, ports.LiquidityRequest{
		PoolID:      poolID,
		ProviderID:  "lp-1",
		BaseAmount:  decimal.NewFromInt(100),
		QuoteAmount: decimal.NewFromInt(10_000),
		MinShares:   decimal.Zero,
	}))

	before, err := f.svc.GetPool(ctx, poolID)
	require.NoError(t, err)
	invariantBefore := before.InvariantProduct()

	result, err := f.svc.Swap(ctx, poolID, "BTC", decimal.NewFromInt(10), decimal.NewFromInt(900))
	require.NoError(t, err)
	assert.True(t, result.OutputAmount.GreaterThan(decimal.NewFromInt(900)))
	assert.True(t, result.OutputAmount.LessThan(decimal.NewFromInt(1_000)))

	after, err := f.svc.GetPool(ctx, poolID)
	require.NoError(t, err)
	assert.True(t, after.InvariantProduct().GreaterThanOrEqual(invariantBefore),
		"fee retention must never shrink the invariant")
}

func TestPoolService_SwapSlippageGuard(t *testing.T) {
	f := newPoolFixture(t)
	ctx := context.Background()

	poolID, err := f.svc.CreatePool(ctx, "BTC", "USD", decimal.RequireFromString("0.003"), 30)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddLiquidity(ctx, ports.LiquidityRequest{
		PoolID:      poolID,
		ProviderID:  "lp-1",
		BaseAmount:  decimal.NewFromInt(100),
		QuoteAmount: decimal.NewFromInt(10_000),
		MinShares:   decimal.Zero,
	}))

	_, err = f.svc.Swap(ctx, poolID, "BTC", decimal.NewFromInt(10), decimal.NewFromInt(950))
	assert.Equal(t, "POOL_002", appCode(t, err))

	// The rejected swap must not have touched the reserves.
	pool, err := f.svc.GetPool(ctx, poolID)
	require.NoError(t, err)
	assert.True(t, pool.BaseReserve.Equal(decimal.NewFromInt(100)))
}

func TestPoolService_RemoveLiquidityProportional(t *testing.T) {
	f := newPoolFixture(t)
	ctx := context.Background()

	poolID, err := f.svc.CreatePool(ctx, "BTC", "USD", decimal.RequireFromString("0.003"), 30)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddLiquidity(ctx, ports.LiquidityRequest{
		PoolID:      poolID,
		ProviderID:  "lp-1",
		BaseAmount:  decimal.NewFromInt(100),
		QuoteAmount: decimal.NewFromInt(10_000),
		MinShares:   decimal.Zero,
	}))

	require.NoError(t, f.svc.RemoveLiquidity(ctx, poolID, "lp-1",
		decimal.NewFromInt(500), decimal.NewFromInt(49), decimal.NewFromInt(4_999)))

	pool, err := f.svc.GetPool(ctx, poolID)
	require.NoError(t, err)
	assert.True(t, pool.BaseReserve.Equal(decimal.NewFromInt(50)))
	assert.True(t, pool.QuoteReserve.Equal(decimal.NewFromInt(5_000)))
	assert.True(t, pool.TotalShares.Equal(decimal.NewFromInt(500)))
}
