// Package memory provides in-memory implementations of the storage ports,
// used by tests and by single-process development setups.
package memory

import (
	"context"
	"sync"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"

	"github.com/google/uuid"
)

// EventStore is an in-memory ports.EventStore with the same optimistic
// concurrency semantics as the PostgreSQL one.
type EventStore struct {
	mu      sync.RWMutex
	streams map[uuid.UUID][]domain.Event
	global  []domain.Event
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{streams: make(map[uuid.UUID][]domain.Event)}
}

// Append writes events if expectedVersion matches the stream head.
func (s *EventStore) Append(_ context.Context, aggregateID uuid.UUID, expectedVersion int64, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	current := int64(len(stream))
	if current != expectedVersion {
		return apperror.ErrConcurrencyConflict(expectedVersion, current)
	}

	s.streams[aggregateID] = append(stream, events...)
	s.global = append(s.global, events...)
	return nil
}

// Read returns the full stream.
func (s *EventStore) Read(ctx context.Context, aggregateID uuid.UUID) ([]domain.Event, error) {
	return s.ReadFrom(ctx, aggregateID, 0)
}

// ReadFrom returns events with version > afterVersion.
func (s *EventStore) ReadFrom(_ context.Context, aggregateID uuid.UUID, afterVersion int64) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateID]
	if afterVersion >= int64(len(stream)) {
		return nil, nil
	}
	out := make([]domain.Event, len(stream[afterVersion:]))
	copy(out, stream[afterVersion:])
	return out, nil
}

// ReadAll iterates every event in global append order.
func (s *EventStore) ReadAll(_ context.Context, fn func(domain.Event) error) error {
	s.mu.RLock()
	events := make([]domain.Event, len(s.global))
	copy(events, s.global)
	s.mu.RUnlock()

	for _, event := range events {
		if err := fn(event); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotStore is an in-memory ports.SnapshotStore.
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps map[uuid.UUID]ports.Snapshot
}

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snaps: make(map[uuid.UUID]ports.Snapshot)}
}

func (s *SnapshotStore) Save(_ context.Context, snap ports.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.AggregateID] = snap
	return nil
}

func (s *SnapshotStore) Load(_ context.Context, aggregateID uuid.UUID) (*ports.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[aggregateID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// Count returns how many snapshots exist, for test assertions.
func (s *SnapshotStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}

// BalanceReadModel is an in-memory ports.BalanceReadModel.
type BalanceReadModel struct {
	mu       sync.RWMutex
	balances map[uuid.UUID]map[string]int64
}

// NewBalanceReadModel creates an empty in-memory balance projection.
func NewBalanceReadModel() *BalanceReadModel {
	return &BalanceReadModel{balances: make(map[uuid.UUID]map[string]int64)}
}

func (m *BalanceReadModel) ApplyEvent(_ context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch p := event.Payload.(type) {
	case *domain.MoneyCredited:
		m.add(event.AggregateID, p.AssetCode, p.Amount)
	case *domain.MoneyDebited:
		m.add(event.AggregateID, p.AssetCode, -p.Amount)
	}
	return nil
}

func (m *BalanceReadModel) add(accountID uuid.UUID, assetCode string, delta int64) {
	if m.balances[accountID] == nil {
		m.balances[accountID] = make(map[string]int64)
	}
	m.balances[accountID][assetCode] += delta
}

func (m *BalanceReadModel) GetBalances(_ context.Context, accountID uuid.UUID) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int64, len(m.balances[accountID]))
	for asset, balance := range m.balances[accountID] {
		out[asset] = balance
	}
	return out, nil
}

func (m *BalanceReadModel) GetBalance(_ context.Context, accountID uuid.UUID, assetCode string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[accountID][assetCode], nil
}

func (m *BalanceReadModel) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = make(map[uuid.UUID]map[string]int64)
	return nil
}

// PoolDirectory is an in-memory ports.PoolDirectory.
type PoolDirectory struct {
	mu    sync.RWMutex
	pools map[uuid.UUID]ports.PoolState
}

// NewPoolDirectory creates an empty in-memory pool directory.
func NewPoolDirectory() *PoolDirectory {
	return &PoolDirectory{pools: make(map[uuid.UUID]ports.PoolState)}
}

func (d *PoolDirectory) Upsert(_ context.Context, state ports.PoolState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pools[state.ID] = state
	return nil
}

func (d *PoolDirectory) Get(_ context.Context, poolID uuid.UUID) (*ports.PoolState, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	state, ok := d.pools[poolID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (d *PoolDirectory) ListByPair(_ context.Context, baseCurrency, quoteCurrency string) ([]ports.PoolState, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []ports.PoolState
	for _, state := range d.pools {
		if state.BaseCurrency == baseCurrency && state.QuoteCurrency == quoteCurrency {
			out = append(out, state)
		}
	}
	return out, nil
}

func (d *PoolDirectory) ListByAsset(_ context.Context, assetCode string) ([]ports.PoolState, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []ports.PoolState
	for _, state := range d.pools {
		if state.BaseCurrency == assetCode || state.QuoteCurrency == assetCode {
			out = append(out, state)
		}
	}
	return out, nil
}

// RateCache is an in-memory ports.RateCache; entries expire by wall clock.
type RateCache struct {
	mu      sync.RWMutex
	entries map[string]rateEntry
}

type rateEntry struct {
	quote     domain.RateQuote
	expiresAt time.Time
}

// NewRateCache creates an empty in-memory rate cache.
func NewRateCache() *RateCache {
	return &RateCache{entries: make(map[string]rateEntry)}
}

func (c *RateCache) Get(_ context.Context, from, to string) (*domain.RateQuote, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[from+":"+to]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	quote := entry.quote
	return &quote, nil
}

func (c *RateCache) Set(_ context.Context, quote domain.RateQuote, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[quote.From+":"+quote.To] = rateEntry{quote: quote, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *RateCache) Keys(_ context.Context) ([][2]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var pairs [][2]string
	for _, entry := range c.entries {
		pairs = append(pairs, [2]string{entry.quote.From, entry.quote.To})
	}
	return pairs, nil
}

// SpreadStateStore is an in-memory ports.SpreadStateStore.
type SpreadStateStore struct {
	mu         sync.RWMutex
	spreads    map[uuid.UUID]float64
	volatility map[string]domain.VolatilityLevel
}

// NewSpreadStateStore creates an empty in-memory spread state store.
func NewSpreadStateStore() *SpreadStateStore {
	return &SpreadStateStore{
		spreads:    make(map[uuid.UUID]float64),
		volatility: make(map[string]domain.VolatilityLevel),
	}
}

func (s *SpreadStateStore) GetSpread(_ context.Context, poolID uuid.UUID) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spread, ok := s.spreads[poolID]
	return spread, ok, nil
}

func (s *SpreadStateStore) SetSpread(_ context.Context, poolID uuid.UUID, spreadBps float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spreads[poolID] = spreadBps
	return nil
}

func (s *SpreadStateStore) GetVolatility(_ context.Context, assetCode string) (domain.VolatilityLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	level, ok := s.volatility[assetCode]
	if !ok {
		return domain.VolatilityNormal, nil
	}
	return level, nil
}

func (s *SpreadStateStore) SetVolatility(_ context.Context, assetCode string, level domain.VolatilityLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volatility[assetCode] = level
	return nil
}

// RoutedOrderGuard is an in-memory ports.RoutedOrderGuard.
type RoutedOrderGuard struct {
	mu      sync.Mutex
	claimed map[uuid.UUID]time.Time
}

// NewRoutedOrderGuard creates an empty in-memory routing guard.
func NewRoutedOrderGuard() *RoutedOrderGuard {
	return &RoutedOrderGuard{claimed: make(map[uuid.UUID]time.Time)}
}

func (g *RoutedOrderGuard) Acquire(_ context.Context, orderID uuid.UUID, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if expiry, ok := g.claimed[orderID]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	g.claimed[orderID] = time.Now().Add(ttl)
	return true, nil
}
