package registry

// EventKind identifies what happened to a registry.
type EventKind string

const (
	EventRegistered EventKind = "registered"
	EventRejected   EventKind = "rejected"
	EventFrozen     EventKind = "frozen"
)

// Event describes a registration, a rejected registration, or a freeze.
type Event struct {
	Kind     EventKind
	Registry string // name given with WithName
	Key      Key    // zero for EventFrozen
	Err      error  // set for EventRejected
	Size     int    // entries after the operation
	Orphaned int    // holders left permanently unresolved, EventFrozen only
}

// Observer receives registry events. Observers are called synchronously
// outside the registry lock and must not block for long.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// Option configures a Registry.
type Option func(*options)

type options struct {
	name      string
	capacity  int
	observers []Observer
}

// WithName names the registry in events and error messages.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithCapacity preallocates room for n entries.
func WithCapacity(n int) Option { return func(o *options) { o.capacity = n } }

// WithObserver adds an observer. A nil observer is ignored.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}
