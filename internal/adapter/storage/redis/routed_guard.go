package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RoutedOrderGuard implements ports.RoutedOrderGuard using Redis SET NX.
type RoutedOrderGuard struct {
	client *goredis.Client
	prefix string
}

// NewRoutedOrderGuard creates a new Redis-backed routing guard.
func NewRoutedOrderGuard(client *goredis.Client) *RoutedOrderGuard {
	return &RoutedOrderGuard{
		client: client,
		prefix: "routed:",
	}
}

// Acquire atomically claims the order for routing. Returns false when the
// order was already claimed.
func (g *RoutedOrderGuard) Acquire(ctx context.Context, orderID uuid.UUID, ttl time.Duration) (bool, error) {
	result, err := g.client.SetArgs(ctx, g.prefix+orderID.String(), 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists — order was already routed
			return false, nil
		}
		return false, fmt.Errorf("redis routing guard: %w", err)
	}
	return result == "OK", nil
}
