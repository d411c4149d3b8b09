package postgres

import (
	"context"
	"errors"
	"fmt"

	"ledger-core/internal/core/ports"
	"ledger-core/internal/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SnapshotStore implements ports.SnapshotStore, keeping one row per
// aggregate.
type SnapshotStore struct {
	pool Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Save upserts the snapshot, replacing any older one.
func (s *SnapshotStore) Save(ctx context.Context, snap ports.Snapshot) error {
	query := `INSERT INTO snapshots (aggregate_id, version, state, taken_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (aggregate_id) DO UPDATE
		SET version = EXCLUDED.version, state = EXCLUDED.state, taken_at = EXCLUDED.taken_at`

	_, err := s.pool.Exec(ctx, query, snap.AggregateID, snap.Version, snap.State, snap.TakenAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	metrics.SnapshotsTaken.Inc()
	return nil
}

// Load returns the latest snapshot, or nil when none exists.
func (s *SnapshotStore) Load(ctx context.Context, aggregateID uuid.UUID) (*ports.Snapshot, error) {
	query := `SELECT aggregate_id, version, state, taken_at FROM snapshots WHERE aggregate_id = $1`

	snap := &ports.Snapshot{}
	err := s.pool.QueryRow(ctx, query, aggregateID).Scan(
		&snap.AggregateID, &snap.Version, &snap.State, &snap.TakenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}
