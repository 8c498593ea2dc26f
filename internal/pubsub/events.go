// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	RegisteredEvent EventType = "registered" // a value was bound to a key
	RejectedEvent   EventType = "rejected"   // a registration failed
	FrozenEvent     EventType = "frozen"     // a registry left the building phase
	ReloadedEvent   EventType = "reloaded"   // a live catalog swapped generations
	LoggedEvent     EventType = "logged"     // a log line was written
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events. With no types the
// subscription receives every event.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context, types ...EventType) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
