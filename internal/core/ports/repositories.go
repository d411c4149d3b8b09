package ports

import (
	"context"
	"time"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventStore is the append-only event log. Append is the only write path and
// enforces optimistic concurrency: expectedVersion must equal the stream's
// current version or the append fails with a concurrency conflict.
type EventStore interface {
	Append(ctx context.Context, aggregateID uuid.UUID, expectedVersion int64, events []domain.Event) error
	// Read returns the full stream in version order.
	Read(ctx context.Context, aggregateID uuid.UUID) ([]domain.Event, error)
	// ReadFrom returns events with version > afterVersion, in version order.
	ReadFrom(ctx context.Context, aggregateID uuid.UUID, afterVersion int64) ([]domain.Event, error)
	// ReadAll streams every event in global append order, for projection rebuilds.
	ReadAll(ctx context.Context, fn func(domain.Event) error) error
}

// Snapshot is an opaque serialized aggregate state at a known version.
type Snapshot struct {
	AggregateID uuid.UUID
	Version     int64
	State       []byte
	TakenAt     time.Time
}

// SnapshotStore persists the latest snapshot per aggregate. Save replaces
// any older snapshot; Load returns nil when none exists.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, aggregateID uuid.UUID) (*Snapshot, error)
}

// BalanceReadModel is the queryable per-account balance projection. It is
// derived state: Reset plus a replay of the event log must reproduce it.
type BalanceReadModel interface {
	ApplyEvent(ctx context.Context, event domain.Event) error
	GetBalances(ctx context.Context, accountID uuid.UUID) (map[string]int64, error)
	GetBalance(ctx context.Context, accountID uuid.UUID, assetCode string) (int64, error)
	Reset(ctx context.Context) error
}

// PoolState is the routing view of one pool, maintained by the pool projector.
type PoolState struct {
	ID            uuid.UUID
	BaseCurrency  string
	QuoteCurrency string
	BaseReserve   decimal.Decimal
	QuoteReserve  decimal.Decimal
	FeeRate       decimal.Decimal
	SpreadBps     float64
	IsActive      bool
}

// PoolDirectory is the read model the order router consults to find candidate
// pools for a trading pair.
type PoolDirectory interface {
	Upsert(ctx context.Context, state PoolState) error
	Get(ctx context.Context, poolID uuid.UUID) (*PoolState, error)
	ListByPair(ctx context.Context, baseCurrency, quoteCurrency string) ([]PoolState, error)
	// ListByAsset returns every pool with the asset on either side.
	ListByAsset(ctx context.Context, assetCode string) ([]PoolState, error)
}
