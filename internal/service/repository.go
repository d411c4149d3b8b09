package service

import (
	"context"
	"fmt"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Aggregate is the contract every event-sourced aggregate satisfies.
type Aggregate interface {
	Changes() []domain.Event
	MarkCommitted()
	Replay(events []domain.Event)
	CurrentVersion() int64
	SnapshotState() ([]byte, error)
	RestoreSnapshot(state []byte, version int64) error
}

// Repository loads aggregates from snapshot plus event tail and saves new
// events with optimistic concurrency. Committed events are published on the
// bus after the append succeeds.
type Repository[T Aggregate] struct {
	store         ports.EventStore
	snapshots     ports.SnapshotStore
	bus           ports.EventBus
	newAggregate  func(uuid.UUID) T
	snapshotEvery int64
	log           zerolog.Logger
}

// NewRepository creates a Repository for one aggregate type. snapshotEvery
// of zero disables snapshotting.
func NewRepository[T Aggregate](
	store ports.EventStore,
	snapshots ports.SnapshotStore,
	bus ports.EventBus,
	newAggregate func(uuid.UUID) T,
	snapshotEvery int64,
	log zerolog.Logger,
) *Repository[T] {
	return &Repository[T]{
		store:         store,
		snapshots:     snapshots,
		bus:           bus,
		newAggregate:  newAggregate,
		snapshotEvery: snapshotEvery,
		log:           log,
	}
}

// Load rebuilds the aggregate: latest snapshot first, then the event tail.
func (r *Repository[T]) Load(ctx context.Context, id uuid.UUID) (T, error) {
	agg := r.newAggregate(id)

	var snap *ports.Snapshot
	if r.snapshots != nil {
		var err error
		snap, err = r.snapshots.Load(ctx, id)
		if err != nil {
			// A broken snapshot store must not make the aggregate unreadable.
			r.log.Warn().Err(err).Str("aggregate_id", id.String()).Msg("snapshot load failed, replaying full stream")
			snap = nil
		}
	}
	if snap != nil {
		if err := agg.RestoreSnapshot(snap.State, snap.Version); err != nil {
			r.log.Warn().Err(err).Str("aggregate_id", id.String()).Msg("snapshot restore failed, replaying full stream")
			agg = r.newAggregate(id)
			snap = nil
		}
	}

	events, err := r.store.ReadFrom(ctx, id, agg.CurrentVersion())
	if err != nil {
		var zero T
		return zero, fmt.Errorf("read stream: %w", err)
	}
	if snap == nil && len(events) == 0 {
		var zero T
		return zero, apperror.ErrAggregateNotFound(id.String())
	}

	agg.Replay(events)
	return agg, nil
}

// Save appends the aggregate's uncommitted events, snapshots when the version
// crosses the cadence boundary, and publishes the committed events.
func (r *Repository[T]) Save(ctx context.Context, agg T) error {
	changes := agg.Changes()
	if len(changes) == 0 {
		return nil
	}

	expected := agg.CurrentVersion()
	aggregateID := changes[0].AggregateID

	if err := r.store.Append(ctx, aggregateID, expected, changes); err != nil {
		return err
	}
	agg.MarkCommitted()

	if r.snapshots != nil && r.snapshotEvery > 0 {
		newVersion := agg.CurrentVersion()
		if newVersion/r.snapshotEvery > expected/r.snapshotEvery {
			r.takeSnapshot(ctx, aggregateID, agg)
		}
	}

	if r.bus != nil {
		r.bus.Publish(ctx, changes...)
	}
	return nil
}

// takeSnapshot is best-effort: a failed snapshot only costs replay time.
func (r *Repository[T]) takeSnapshot(ctx context.Context, aggregateID uuid.UUID, agg T) {
	state, err := agg.SnapshotState()
	if err != nil {
		r.log.Warn().Err(err).Str("aggregate_id", aggregateID.String()).Msg("snapshot serialization failed")
		return
	}
	snap := ports.Snapshot{
		AggregateID: aggregateID,
		Version:     agg.CurrentVersion(),
		State:       state,
		TakenAt:     time.Now().UTC(),
	}
	if err := r.snapshots.Save(ctx, snap); err != nil {
		r.log.Warn().Err(err).Str("aggregate_id", aggregateID.String()).Msg("snapshot save failed")
	}
}
