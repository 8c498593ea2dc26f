package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// receive waits briefly for the next event on ch.
func receive[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		return event
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
	}
	return Event[T]{}
}

// requireClosed fails unless ch is closed and drained.
func requireClosed[T any](t *testing.T, ch <-chan Event[T]) {
	t.Helper()
	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should be closed")
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "channel still open")
	}
}

func TestBroker_DeliversToEverySubscriber(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx := context.Background()
	subs := []<-chan Event[string]{broker.Subscribe(ctx), broker.Subscribe(ctx), broker.Subscribe(ctx)}
	require.Equal(t, 3, broker.SubscriberCount())

	broker.Publish(RegisteredEvent, "core:fire")

	for i, ch := range subs {
		event := receive(t, ch)
		require.Equal(t, "core:fire", event.Payload, "subscriber %d", i)
		require.Equal(t, RegisteredEvent, event.Type, "subscriber %d", i)
		require.False(t, event.Timestamp.IsZero(), "subscriber %d", i)
	}
}

func TestBroker_CancelledSubscriptionIsRemoved(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	kept := broker.Subscribe(context.Background())

	cancel()
	requireClosed(t, ch)
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 1 },
		time.Second, 5*time.Millisecond)

	broker.Publish(FrozenEvent, "catalog")
	require.Equal(t, "catalog", receive(t, kept).Payload)
}

func TestBroker_PublishNeverBlocks(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	filtered := broker.Subscribe(context.Background(), ReloadedEvent)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for size := 1; size <= 3; size++ {
			broker.Publish(RegisteredEvent, size)
		}
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "Publish blocked on a full subscriber")
	}

	require.Equal(t, 1, receive(t, ch).Payload, "only the buffered event survives")
	// Deliveries skipped by the type filter are not drops.
	require.Equal(t, uint64(2), broker.Dropped())
	require.Empty(t, filtered)
}

func TestBroker_TypeFilter(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx := context.Background()
	all := broker.Subscribe(ctx)
	lifecycle := broker.Subscribe(ctx, FrozenEvent, ReloadedEvent)

	broker.Publish(RegisteredEvent, "core:fire")
	broker.Publish(FrozenEvent, "catalog")
	broker.Publish(ReloadedEvent, "generation 2")

	require.Equal(t, "core:fire", receive(t, all).Payload)
	require.Equal(t, "catalog", receive(t, all).Payload)
	require.Equal(t, "generation 2", receive(t, all).Payload)

	require.Equal(t, FrozenEvent, receive(t, lifecycle).Type)
	require.Equal(t, ReloadedEvent, receive(t, lifecycle).Type)
	require.Empty(t, lifecycle)
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()
	ctx := context.Background()

	pending := broker.Subscribe(ctx)
	idle := broker.Subscribe(ctx, ReloadedEvent)
	broker.Publish(FrozenEvent, "catalog")

	broker.Close()
	broker.Close()
	require.Equal(t, 0, broker.SubscriberCount())

	// Buffered events stay readable after close.
	require.Equal(t, "catalog", receive(t, pending).Payload)
	requireClosed(t, pending)
	requireClosed(t, idle)

	requireClosed(t, broker.Subscribe(ctx))
	require.NotPanics(t, func() { broker.Publish(RegisteredEvent, "late") })
}
