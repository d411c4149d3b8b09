package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/metrics"
	"ledger-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// EventStore implements ports.EventStore on the events table. Optimistic
// concurrency rides on the (aggregate_id, version) unique constraint: a
// concurrent writer that committed first makes our insert collide.
type EventStore struct {
	pool Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append writes the events in one transaction. The first event must carry
// version expectedVersion+1; a version collision maps to a concurrency
// conflict.
func (s *EventStore) Append(ctx context.Context, aggregateID uuid.UUID, expectedVersion int64, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if events[0].Version != expectedVersion+1 {
		return apperror.ErrConcurrencyConflict(expectedVersion, events[0].Version-1)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("begin append: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `INSERT INTO events (aggregate_id, version, event_type, payload, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, event := range events {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("marshal payload: %w", err))
		}
		var metadata []byte
		if event.Metadata != nil {
			if metadata, err = json.Marshal(event.Metadata); err != nil {
				return apperror.InternalError(fmt.Errorf("marshal metadata: %w", err))
			}
		}

		if _, err := tx.Exec(ctx, query,
			aggregateID, event.Version, event.Type, payload, metadata, event.OccurredAt,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
				metrics.AppendConflicts.Inc()
				return apperror.ErrConcurrencyConflict(expectedVersion, event.Version)
			}
			return apperror.ErrDatabaseError(fmt.Errorf("insert event: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("commit append: %w", err))
	}

	for _, event := range events {
		metrics.EventsAppended.WithLabelValues(event.Type).Inc()
	}
	return nil
}

// Read returns the full stream in version order.
func (s *EventStore) Read(ctx context.Context, aggregateID uuid.UUID) ([]domain.Event, error) {
	return s.ReadFrom(ctx, aggregateID, 0)
}

// ReadFrom returns events with version > afterVersion, in version order.
func (s *EventStore) ReadFrom(ctx context.Context, aggregateID uuid.UUID, afterVersion int64) ([]domain.Event, error) {
	query := `SELECT version, event_type, payload, metadata, occurred_at
		FROM events WHERE aggregate_id = $1 AND version > $2 ORDER BY version`

	rows, err := s.pool.Query(ctx, query, aggregateID, afterVersion)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("read stream: %w", err))
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		event := domain.Event{AggregateID: aggregateID}
		var payload, metadata []byte
		if err := rows.Scan(&event.Version, &event.Type, &payload, &metadata, &event.OccurredAt); err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("scan event: %w", err))
		}
		if event.Payload, err = domain.DecodePayload(event.Type, payload); err != nil {
			return nil, err
		}
		if metadata != nil {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("unmarshal metadata: %w", err))
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("iterate stream: %w", err))
	}
	return events, nil
}

// ReadAll streams every event in global append order.
func (s *EventStore) ReadAll(ctx context.Context, fn func(domain.Event) error) error {
	query := `SELECT aggregate_id, version, event_type, payload, metadata, occurred_at
		FROM events ORDER BY global_seq`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("read all events: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var event domain.Event
		var payload, metadata []byte
		if err := rows.Scan(&event.AggregateID, &event.Version, &event.Type, &payload, &metadata, &event.OccurredAt); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("scan event: %w", err))
		}
		if event.Payload, err = domain.DecodePayload(event.Type, payload); err != nil {
			return err
		}
		if metadata != nil {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return apperror.InternalError(fmt.Errorf("unmarshal metadata: %w", err))
			}
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return rows.Err()
}
