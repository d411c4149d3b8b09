package service

import (
	"context"
	"testing"

	"ledger-core/internal/adapter/storage/memory"
	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceProjector_RebuildMatchesIncrementalState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEventStore()
	live := memory.NewBalanceReadModel()
	bus := NewInMemoryEventBus(zerolog.Nop())
	NewBalanceProjector(live, store, zerolog.Nop()).Register(bus)

	repo := NewRepository(store, memory.NewSnapshotStore(), bus, domain.NewAccount, 0, zerolog.Nop())

	accountIDs := make([]uuid.UUID, 3)
	for i := range accountIDs {
		account := domain.NewAccount(uuid.New())
		require.NoError(t, account.Open(uuid.New()))
		require.NoError(t, account.Credit("USD", int64(1000*(i+1)), nil))
		require.NoError(t, account.Debit("USD", int64(100*(i+1)), nil))
		require.NoError(t, account.Credit("EUR", 50, nil))
		require.NoError(t, repo.Save(ctx, account))
		accountIDs[i] = account.ID
	}

	// Rebuild into a fresh read model and compare account by account.
	rebuilt := memory.NewBalanceReadModel()
	require.NoError(t, NewBalanceProjector(rebuilt, store, zerolog.Nop()).Rebuild(ctx))

	for _, id := range accountIDs {
		want, err := live.GetBalances(ctx, id)
		require.NoError(t, err)
		got, err := rebuilt.GetBalances(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBalanceProjector_RebuildResetsPriorState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEventStore()
	balances := memory.NewBalanceReadModel()

	// Poison the read model with a balance the log does not contain.
	ghost := uuid.New()
	require.NoError(t, balances.ApplyEvent(ctx, domain.Event{
		AggregateID: ghost,
		Type:        domain.TypeMoneyCredited,
		Payload:     &domain.MoneyCredited{AssetCode: "USD", Amount: 999},
	}))

	require.NoError(t, NewBalanceProjector(balances, store, zerolog.Nop()).Rebuild(ctx))

	balance, err := balances.GetBalance(ctx, ghost, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestPoolProjector_TracksPoolLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEventStore()
	directory := memory.NewPoolDirectory()
	bus := NewInMemoryEventBus(zerolog.Nop())
	NewPoolProjector(directory, zerolog.Nop()).Register(bus)

	repo := NewRepository(store, memory.NewSnapshotStore(), bus, domain.NewLiquidityPool, 0, zerolog.Nop())

	pool := domain.NewLiquidityPool(uuid.New())
	require.NoError(t, pool.Create("ETH", "USD", decimal.RequireFromString("0.003"), 40))
	require.NoError(t, pool.AddLiquidity("lp-1", decimal.NewFromInt(1_000), decimal.NewFromInt(3_000_000), decimal.Zero))
	require.NoError(t, repo.Save(ctx, pool))

	state, err := directory.Get(ctx, pool.ID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "ETH", state.BaseCurrency)
	assert.True(t, state.BaseReserve.Equal(decimal.NewFromInt(1_000)))
	assert.Equal(t, 40.0, state.SpreadBps)

	// Deactivation flows through parameter updates.
	loaded, err := repo.Load(ctx, pool.ID)
	require.NoError(t, err)
	inactive := false
	loaded.UpdateParameters(nil, &inactive, nil)
	require.NoError(t, repo.Save(ctx, loaded))

	state, err = directory.Get(ctx, pool.ID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.False(t, state.IsActive)

	// Swaps move the projected reserves.
	loaded, err = repo.Load(ctx, pool.ID)
	require.NoError(t, err)
	active := true
	loaded.UpdateParameters(nil, &active, nil)
	require.NoError(t, repo.Save(ctx, loaded))

	loaded, err = repo.Load(ctx, pool.ID)
	require.NoError(t, err)
	_, err = loaded.Swap("ETH", decimal.NewFromInt(10), decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, loaded))

	state, err = directory.Get(ctx, pool.ID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.BaseReserve.Equal(decimal.NewFromInt(1_010)))
	assert.True(t, state.QuoteReserve.LessThan(decimal.NewFromInt(3_000_000)))
}
