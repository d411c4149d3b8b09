package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ledger-core/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// RateCache implements ports.RateCache using Redis. Quotes are stored as
// JSON under rate:<FROM>:<TO>; the TTL is the hard max age, freshness within
// it is judged by the caller off FetchedAt.
type RateCache struct {
	client *goredis.Client
	prefix string
}

// NewRateCache creates a new Redis-backed rate cache.
func NewRateCache(client *goredis.Client) *RateCache {
	return &RateCache{
		client: client,
		prefix: "rate:",
	}
}

func (c *RateCache) key(from, to string) string {
	return c.prefix + from + ":" + to
}

// Get retrieves a cached quote. Returns nil, nil on a miss.
func (c *RateCache) Get(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	val, err := c.client.Get(ctx, c.key(from, to)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis rate get: %w", err)
	}

	quote := &domain.RateQuote{}
	if err := json.Unmarshal(val, quote); err != nil {
		return nil, fmt.Errorf("unmarshal cached rate: %w", err)
	}
	return quote, nil
}

// Set stores a quote with TTL.
func (c *RateCache) Set(ctx context.Context, quote domain.RateQuote, ttl time.Duration) error {
	val, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal rate: %w", err)
	}
	if err := c.client.Set(ctx, c.key(quote.From, quote.To), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis rate set: %w", err)
	}
	return nil
}

// Keys lists every cached pair by scanning the rate keyspace.
func (c *RateCache) Keys(ctx context.Context) ([][2]string, error) {
	var pairs [][2]string
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		parts := strings.Split(strings.TrimPrefix(iter.Val(), c.prefix), ":")
		if len(parts) != 2 {
			continue
		}
		pairs = append(pairs, [2]string{parts[0], parts[1]})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis rate scan: %w", err)
	}
	return pairs, nil
}
