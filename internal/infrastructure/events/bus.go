package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dialerops/callgate-backend/internal/domain/events"
)

const defaultBufferSize = 64

// Subscription is a registered listener on the bus. Events arrive on C
// until Close is called.
type Subscription struct {
	ID    uuid.UUID
	C     <-chan events.Event
	bus   *Bus
	ch    chan events.Event
	types map[string]bool
}

// Close removes the subscription from the bus and closes its channel.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.ID)
}

func (s *Subscription) matches(eventType string) bool {
	if len(s.types) == 0 {
		return true
	}
	return s.types[eventType]
}

// Bus is the in-process event bus connecting the gate and ledger to the
// notification surfaces. Delivery is best-effort: a subscriber that falls
// behind its buffer loses events rather than stalling publishers.
type Bus struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscription
	closed      bool

	dropped atomic.Uint64
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		logger:      logger,
		subscribers: make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers a listener for the given event types. With no types
// the subscription receives every event.
func (b *Bus) Subscribe(types ...string) *Subscription {
	filter := make(map[string]bool, len(types))
	for _, t := range types {
		filter[t] = true
	}

	ch := make(chan events.Event, defaultBufferSize)
	sub := &Subscription{
		ID:    uuid.New(),
		C:     ch,
		bus:   b,
		ch:    ch,
		types: filter,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Publish delivers the event to every matching subscriber without blocking.
func (b *Bus) Publish(ctx context.Context, event events.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if !sub.matches(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event dropped for slow subscriber",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("event_type", event.Type),
				zap.String("account_id", event.AccountID.String()),
			)
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// Dropped reports how many events were discarded because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(sub.ch)
}
