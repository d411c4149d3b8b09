package service

import (
	"context"
	"sync"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"

	"github.com/rs/zerolog"
)

// InMemoryEventBus implements ports.EventBus with synchronous, in-process
// dispatch. Handler errors are logged and do not stop delivery to the
// remaining handlers; publishing happens after commit, so handlers must
// tolerate redelivery on projection rebuilds.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	log      zerolog.Logger
}

// NewInMemoryEventBus creates a new InMemoryEventBus.
func NewInMemoryEventBus(log zerolog.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[string][]ports.EventHandler),
		log:      log,
	}
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType string, handler ports.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers events in order to all handlers of their type.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...domain.Event) {
	for _, event := range events {
		b.mu.RLock()
		handlers := b.handlers[event.Type]
		b.mu.RUnlock()

		for _, handle := range handlers {
			if err := handle(ctx, event); err != nil {
				b.log.Error().
					Err(err).
					Str("event_type", event.Type).
					Str("aggregate_id", event.AggregateID.String()).
					Int64("version", event.Version).
					Msg("event handler failed")
			}
		}
	}
}
