package redis

import (
	"context"
	"fmt"
	"strconv"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// SpreadStateStore implements ports.SpreadStateStore using Redis. Spreads
// and volatility levels are working state the controller re-derives anyway,
// so no TTLs are set.
type SpreadStateStore struct {
	client           *goredis.Client
	spreadPrefix     string
	volatilityPrefix string
}

// NewSpreadStateStore creates a new Redis-backed spread state store.
func NewSpreadStateStore(client *goredis.Client) *SpreadStateStore {
	return &SpreadStateStore{
		client:           client,
		spreadPrefix:     "spread:",
		volatilityPrefix: "volatility:",
	}
}

// GetSpread returns the stored spread for a pool; ok is false when none is
// stored yet.
func (s *SpreadStateStore) GetSpread(ctx context.Context, poolID uuid.UUID) (float64, bool, error) {
	val, err := s.client.Get(ctx, s.spreadPrefix+poolID.String()).Result()
	if err != nil {
		if err == goredis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis spread get: %w", err)
	}
	spread, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse stored spread: %w", err)
	}
	return spread, true, nil
}

// SetSpread stores the current spread for a pool.
func (s *SpreadStateStore) SetSpread(ctx context.Context, poolID uuid.UUID, spreadBps float64) error {
	key := s.spreadPrefix + poolID.String()
	if err := s.client.Set(ctx, key, strconv.FormatFloat(spreadBps, 'f', -1, 64), 0).Err(); err != nil {
		return fmt.Errorf("redis spread set: %w", err)
	}
	return nil
}

// GetVolatility returns the stored volatility level for an asset, defaulting
// to normal.
func (s *SpreadStateStore) GetVolatility(ctx context.Context, assetCode string) (domain.VolatilityLevel, error) {
	val, err := s.client.Get(ctx, s.volatilityPrefix+assetCode).Result()
	if err != nil {
		if err == goredis.Nil {
			return domain.VolatilityNormal, nil
		}
		return domain.VolatilityNormal, fmt.Errorf("redis volatility get: %w", err)
	}
	return domain.VolatilityLevel(val), nil
}

// SetVolatility stores the volatility level for an asset.
func (s *SpreadStateStore) SetVolatility(ctx context.Context, assetCode string, level domain.VolatilityLevel) error {
	if err := s.client.Set(ctx, s.volatilityPrefix+assetCode, string(level), 0).Err(); err != nil {
		return fmt.Errorf("redis volatility set: %w", err)
	}
	return nil
}
