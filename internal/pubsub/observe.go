package pubsub

import "github.com/zjrosen/keystone/internal/registry"

// Observe adapts a publisher into a registry.Observer. Each registry event is
// published with the matching EventType and the event itself as payload.
func Observe(p Publisher[registry.Event]) registry.Observer {
	return registry.ObserverFunc(func(e registry.Event) {
		p.Publish(TypeOf(e.Kind), e)
	})
}

// TypeOf maps a registry event kind to its pubsub EventType.
func TypeOf(kind registry.EventKind) EventType {
	switch kind {
	case registry.EventRegistered:
		return RegisteredEvent
	case registry.EventRejected:
		return RejectedEvent
	case registry.EventFrozen:
		return FrozenEvent
	default:
		return EventType(kind)
	}
}
