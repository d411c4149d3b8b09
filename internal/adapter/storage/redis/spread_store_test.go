package redis

import (
	"context"
	"testing"

	"ledger-core/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpreadStateStore_Spread(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewSpreadStateStore(client)
	ctx := context.Background()

	poolID := uuid.New()

	_, ok, err := store.GetSpread(ctx, poolID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetSpread(ctx, poolID, 62.5))

	spread, ok, err := store.GetSpread(ctx, poolID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 62.5, spread)
}

func TestSpreadStateStore_Volatility(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewSpreadStateStore(client)
	ctx := context.Background()

	level, err := store.GetVolatility(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, domain.VolatilityNormal, level, "unknown asset defaults to normal")

	require.NoError(t, store.SetVolatility(ctx, "BTC", domain.VolatilityExtreme))

	level, err = store.GetVolatility(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, domain.VolatilityExtreme, level)
}
