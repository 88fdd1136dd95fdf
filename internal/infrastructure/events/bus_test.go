package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dialerops/callgate-backend/internal/domain/events"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Close()

	accountID := uuid.New()
	bus.Publish(context.Background(), events.NewUsageThresholdCrossed(accountID, 80, 100, 80))

	select {
	case ev := <-sub.C:
		assert.Equal(t, events.TypeUsageThresholdCrossed, ev.Type)
		assert.Equal(t, accountID, ev.AccountID)
		assert.Equal(t, 80.0, ev.Payload["percentage"])
	case <-time.After(time.Second):
		t.Fatal("expected event on subscription channel")
	}
}

func TestBus_TypeFilter(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	sub := bus.Subscribe(events.TypeComplianceViolation)
	defer sub.Close()

	ctx := context.Background()
	bus.Publish(ctx, events.NewUsageThresholdCrossed(uuid.New(), 100, 100, 100))
	bus.Publish(ctx, events.NewComplianceViolation(uuid.New(), "dnc_violation", "critical", "+15551234567"))

	ev := <-sub.C
	assert.Equal(t, events.TypeComplianceViolation, ev.Type)
	assert.Empty(t, sub.C)
}

func TestBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Close()

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultBufferSize+10; i++ {
			bus.Publish(ctx, events.NewUsageThresholdCrossed(uuid.New(), 1, 100, 1))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Equal(t, uint64(10), bus.Dropped())
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	sub := bus.Subscribe()
	sub.Close()

	_, open := <-sub.C
	require.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.Publish(context.Background(), events.NewUsageThresholdCrossed(uuid.New(), 1, 100, 1))
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	sub := bus.Subscribe()

	bus.Close()
	bus.Close()

	_, open := <-sub.C
	assert.False(t, open)

	// A subscription made after close is delivered nothing.
	late := bus.Subscribe()
	_, open = <-late.C
	assert.False(t, open)
}
