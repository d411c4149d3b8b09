package service

import (
	"context"
	"errors"
	"testing"

	"ledger-core/internal/adapter/storage/memory"
	"ledger-core/internal/core/domain"
	"ledger-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountRepo(store *memory.EventStore, snaps *memory.SnapshotStore, snapshotEvery int64) *Repository[*domain.Account] {
	return NewRepository(store, snaps, nil, domain.NewAccount, snapshotEvery, zerolog.Nop())
}

func TestRepository_LoadUnknownAggregate(t *testing.T) {
	repo := accountRepo(memory.NewEventStore(), memory.NewSnapshotStore(), 0)

	_, err := repo.Load(context.Background(), uuid.New())
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "EVT_002", appErr.Code)
}

func TestRepository_SaveAndLoadRoundTrip(t *testing.T) {
	repo := accountRepo(memory.NewEventStore(), memory.NewSnapshotStore(), 0)
	ctx := context.Background()

	account := domain.NewAccount(uuid.New())
	require.NoError(t, account.Open(uuid.New()))
	require.NoError(t, account.Credit("USD", 500, nil))
	require.NoError(t, repo.Save(ctx, account))

	assert.Empty(t, account.Changes(), "save must mark changes committed")
	assert.Equal(t, int64(2), account.CurrentVersion())

	loaded, err := repo.Load(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.CurrentVersion())
	assert.Equal(t, int64(500), loaded.BalanceOf("USD"))
}

func TestRepository_SaveNoChangesIsNoop(t *testing.T) {
	store := memory.NewEventStore()
	repo := accountRepo(store, memory.NewSnapshotStore(), 0)
	ctx := context.Background()

	account := domain.NewAccount(uuid.New())
	require.NoError(t, repo.Save(ctx, account))

	events, err := store.Read(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRepository_ConflictOnStaleSave(t *testing.T) {
	repo := accountRepo(memory.NewEventStore(), memory.NewSnapshotStore(), 0)
	ctx := context.Background()

	account := domain.NewAccount(uuid.New())
	require.NoError(t, account.Open(uuid.New()))
	require.NoError(t, repo.Save(ctx, account))

	// Two copies of the same account diverge; the second save must conflict.
	first, err := repo.Load(ctx, account.ID)
	require.NoError(t, err)
	second, err := repo.Load(ctx, account.ID)
	require.NoError(t, err)

	require.NoError(t, first.Credit("USD", 100, nil))
	require.NoError(t, repo.Save(ctx, first))

	require.NoError(t, second.Credit("USD", 200, nil))
	err = repo.Save(ctx, second)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "EVT_001", appErr.Code)

	loaded, err := repo.Load(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), loaded.BalanceOf("USD"), "losing write must not apply")
}

func TestRepository_SnapshotCadence(t *testing.T) {
	store := memory.NewEventStore()
	snaps := memory.NewSnapshotStore()
	repo := accountRepo(store, snaps, 5)
	ctx := context.Background()

	account := domain.NewAccount(uuid.New())
	require.NoError(t, account.Open(uuid.New()))
	require.NoError(t, account.Credit("USD", 1000, nil))
	require.NoError(t, repo.Save(ctx, account)) // version 2
	assert.Equal(t, 0, snaps.Count())

	for i := 0; i < 3; i++ {
		loaded, err := repo.Load(ctx, account.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Debit("USD", 10, nil))
		require.NoError(t, repo.Save(ctx, loaded))
	}
	// version 5 crossed the boundary
	assert.Equal(t, 1, snaps.Count())

	snap, err := snaps.Load(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(5), snap.Version)
}

func TestRepository_LoadFromSnapshotPlusTail(t *testing.T) {
	store := memory.NewEventStore()
	snaps := memory.NewSnapshotStore()
	repo := accountRepo(store, snaps, 3)
	ctx := context.Background()

	account := domain.NewAccount(uuid.New())
	require.NoError(t, account.Open(uuid.New()))
	require.NoError(t, account.Credit("USD", 300, nil))
	require.NoError(t, account.Credit("USD", 200, nil))
	require.NoError(t, repo.Save(ctx, account)) // version 3, snapshot taken
	require.Equal(t, 1, snaps.Count())

	loaded, err := repo.Load(ctx, account.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.Debit("USD", 50, nil))
	require.NoError(t, repo.Save(ctx, loaded)) // version 4, tail past the snapshot

	reloaded, err := repo.Load(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), reloaded.CurrentVersion())
	assert.Equal(t, int64(450), reloaded.BalanceOf("USD"))
}

func TestRepository_PublishesCommittedEvents(t *testing.T) {
	bus := NewInMemoryEventBus(zerolog.Nop())
	var seen []string
	bus.Subscribe(domain.TypeAccountOpened, func(_ context.Context, e domain.Event) error {
		seen = append(seen, e.Type)
		return nil
	})
	bus.Subscribe(domain.TypeMoneyCredited, func(_ context.Context, e domain.Event) error {
		seen = append(seen, e.Type)
		return nil
	})

	repo := NewRepository(memory.NewEventStore(), memory.NewSnapshotStore(), bus, domain.NewAccount, 0, zerolog.Nop())

	account := domain.NewAccount(uuid.New())
	require.NoError(t, account.Open(uuid.New()))
	require.NoError(t, account.Credit("USD", 100, nil))
	require.NoError(t, repo.Save(context.Background(), account))

	assert.Equal(t, []string{domain.TypeAccountOpened, domain.TypeMoneyCredited}, seen)
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zerolog.Nop())

	calls := 0
	bus.Subscribe("x", func(context.Context, domain.Event) error {
		calls++
		return errors.New("boom")
	})
	bus.Subscribe("x", func(context.Context, domain.Event) error {
		calls++
		return nil
	})

	bus.Publish(context.Background(), domain.Event{Type: "x"})
	assert.Equal(t, 2, calls)
}

func TestInMemoryEventBus_NoHandlersForType(t *testing.T) {
	bus := NewInMemoryEventBus(zerolog.Nop())
	// Must not panic.
	bus.Publish(context.Background(), domain.Event{Type: "nobody.listens"})
}
