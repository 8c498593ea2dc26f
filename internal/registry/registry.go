package registry

import (
	"iter"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Entry is a registered key/value pair.
type Entry[V any] struct {
	Key   Key
	Value V
}

// Registry is a bidirectional Key <-> V index with a one-way Building ->
// Frozen lifecycle. It is safe for concurrent use.
//
// While building, forward, reverse, order, and pending are guarded together
// by mu. Freeze stores the frozen flag inside the same critical section, so
// a reader that observes frozen == true may read the indexes without locking.
type Registry[V any] struct {
	mu        sync.RWMutex
	frozen    atomic.Bool
	identity  IdentityFunc[V]
	name      string
	observers []Observer

	forward map[Key]*Holder[V] // canonical bound holder per key
	reverse map[any]Key
	order   []Entry[V] // append-only, registration order
	pending map[Key][]*Holder[V]
}

// New creates a registry that compares values with Go equality.
func New[V comparable](opts ...Option) *Registry[V] {
	return newRegistry(valueIdentity[V], opts)
}

// NewByIdentity creates a registry that compares pointer, map, slice, and
// channel values by reference. Registering any other kind of value fails with
// ErrInvalidValue.
func NewByIdentity[V any](opts ...Option) *Registry[V] {
	return newRegistry(pointerIdentity[V], opts)
}

// NewWithIdentity creates a registry whose reverse index is keyed by fn(v).
// fn must return a comparable identity.
func NewWithIdentity[V any](fn IdentityFunc[V], opts ...Option) *Registry[V] {
	if fn == nil {
		panic("registry: identity function must not be nil")
	}
	return newRegistry(fn, opts)
}

func newRegistry[V any](identity IdentityFunc[V], opts []Option) *Registry[V] {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return &Registry[V]{
		identity:  identity,
		name:      o.name,
		observers: o.observers,
		forward:   make(map[Key]*Holder[V], o.capacity),
		reverse:   make(map[any]Key, o.capacity),
		order:     make([]Entry[V], 0, o.capacity),
		pending:   make(map[Key][]*Holder[V]),
	}
}

// Name returns the name given with WithName.
func (r *Registry[V]) Name() string { return r.name }

// Frozen reports whether Freeze has been called.
func (r *Registry[V]) Frozen() bool { return r.frozen.Load() }

// Builder returns the construction-phase facade.
func (r *Registry[V]) Builder() Builder[V] { return Builder[V]{core: r} }

// View returns the read-only facade.
func (r *Registry[V]) View() View[V] { return View[V]{core: r} }

// Register binds value to key and returns the key's holder. If holders were
// requested for key beforehand, they are bound in the same critical section
// and the first of them becomes the canonical holder.
//
// It fails with ErrRegistryFrozen, ErrDuplicateKey, or ErrDuplicateValue, in
// that order of precedence, and leaves the registry unchanged on failure.
// The zero Key is never registrable and fails with ErrInvalidKeyFormat;
// values the identity policy rejects (nil, uncomparable, NaN) fail with
// ErrInvalidValue.
func (r *Registry[V]) Register(key Key, value V) (*Holder[V], error) {
	h, size, err := r.register(key, value)
	if err != nil {
		r.notify(Event{Kind: EventRejected, Registry: r.name, Key: key, Err: err, Size: r.Size()})
		return nil, err
	}
	r.notify(Event{Kind: EventRegistered, Registry: r.name, Key: key, Size: size})
	return h, nil
}

// RegisterValue is Register for call sites that want the value back for
// chaining.
func (r *Registry[V]) RegisterValue(key Key, value V) (V, error) {
	if _, err := r.Register(key, value); err != nil {
		var zero V
		return zero, err
	}
	return value, nil
}

// MustRegister panics on registration error. Useful for package-level tables.
func (r *Registry[V]) MustRegister(key Key, value V) *Holder[V] {
	h, err := r.Register(key, value)
	if err != nil {
		panic(err)
	}
	return h
}

func (r *Registry[V]) register(key Key, value V) (*Holder[V], int, error) {
	if r.frozen.Load() {
		return nil, 0, r.frozenError(key)
	}
	if key.IsZero() {
		return nil, 0, errors.Wrap(ErrInvalidKeyFormat, "cannot register the zero key")
	}
	id, err := r.identityOf(value)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "register %s", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return nil, 0, r.frozenError(key)
	}
	if _, exists := r.forward[key]; exists {
		return nil, 0, errors.Wrapf(ErrDuplicateKey, "%s is already registered", key)
	}
	if owner, exists := r.reverse[id]; exists {
		return nil, 0, errors.Wrapf(ErrDuplicateValue, "cannot register %s: value is already registered as %s", key, owner)
	}

	var h *Holder[V]
	for _, p := range r.pending[key] {
		p.resolve(value)
		if h == nil {
			h = p
		}
	}
	delete(r.pending, key)
	if h == nil {
		h = newBoundHolder(key, value)
	}

	r.forward[key] = h
	r.reverse[id] = key
	r.order = append(r.order, Entry[V]{Key: key, Value: value})
	return h, len(r.order), nil
}

func (r *Registry[V]) frozenError(key Key) error {
	return errors.WithHint(
		errors.Wrapf(ErrRegistryFrozen, "cannot register %s", key),
		"register every entry before calling Freeze")
}

func (r *Registry[V]) identityOf(v V) (any, error) {
	id, err := r.identity(v)
	if err != nil {
		if !errors.Is(err, ErrInvalidValue) {
			err = errors.Mark(err, ErrInvalidValue)
		}
		return nil, err
	}
	if id == nil || !reflect.ValueOf(id).Comparable() {
		return nil, errors.Wrapf(ErrInvalidValue, "identity %T is not comparable", id)
	}
	// NaN, or anything containing one, never equals itself and could not
	// be found again by GetKey.
	if id != id { //nolint:staticcheck // self-comparison detects NaN
		return nil, errors.Wrapf(ErrInvalidValue, "identity %T is not equal to itself", id)
	}
	return id, nil
}

// Freeze moves the registry to the Frozen phase. Pending holders become
// permanently unresolved. It returns true if this call changed the phase;
// freezing a frozen registry is a no-op.
func (r *Registry[V]) Freeze() bool {
	r.mu.Lock()
	if r.frozen.Load() {
		r.mu.Unlock()
		return false
	}
	orphaned := 0
	for _, holders := range r.pending {
		for _, h := range holders {
			h.orphan()
			orphaned++
		}
	}
	r.pending = nil
	size := len(r.order)
	r.frozen.Store(true)
	r.mu.Unlock()

	r.notify(Event{Kind: EventFrozen, Registry: r.name, Size: size, Orphaned: orphaned})
	return true
}

// HolderFor returns the holder for key. A registered key yields its bound
// holder. Otherwise a new unbound holder is recorded and bound when key is
// registered; after Freeze the new holder is permanently unresolved instead.
// The zero Key can never be registered, so its holder is permanently
// unresolved from the start, even while the registry is building, and is
// not counted by Pending.
func (r *Registry[V]) HolderFor(key Key) *Holder[V] {
	if key.IsZero() {
		return newOrphanedHolder[V](key)
	}
	if r.frozen.Load() {
		if h, ok := r.forward[key]; ok {
			return h
		}
		return newOrphanedHolder[V](key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.forward[key]; ok {
		return h
	}
	if r.frozen.Load() {
		return newOrphanedHolder[V](key)
	}
	h := newUnboundHolder[V](key)
	r.pending[key] = append(r.pending[key], h)
	return h
}

// Holder returns the bound holder for key, if key is registered.
func (r *Registry[V]) Holder(key Key) (*Holder[V], bool) {
	if r.frozen.Load() {
		h, ok := r.forward[key]
		return h, ok
	}
	r.mu.RLock()
	h, ok := r.forward[key]
	r.mu.RUnlock()
	return h, ok
}

// Get returns the value registered under key, or ErrUnknownKey.
func (r *Registry[V]) Get(key Key) (V, error) {
	h, ok := r.Holder(key)
	if !ok {
		var zero V
		return zero, errors.Wrapf(ErrUnknownKey, "%s", key)
	}
	return h.Get()
}

// Lookup returns the value registered under key, if present.
func (r *Registry[V]) Lookup(key Key) (V, bool) {
	h, ok := r.Holder(key)
	if !ok {
		var zero V
		return zero, false
	}
	return h.Value()
}

// Contains reports whether key is registered.
func (r *Registry[V]) Contains(key Key) bool {
	_, ok := r.Holder(key)
	return ok
}

// GetKey returns the key value is registered under, or ErrUnknownValue.
// Values the identity policy rejects are unknown as well.
func (r *Registry[V]) GetKey(value V) (Key, error) {
	id, err := r.identityOf(value)
	if err != nil {
		return Key{}, errors.Wrapf(ErrUnknownValue, "%T: %v", value, err)
	}

	var (
		k  Key
		ok bool
	)
	if r.frozen.Load() {
		k, ok = r.reverse[id]
	} else {
		r.mu.RLock()
		k, ok = r.reverse[id]
		r.mu.RUnlock()
	}
	if !ok {
		// The value itself is not formatted: it may reach itself through
		// its holders.
		return Key{}, errors.Wrapf(ErrUnknownValue, "no key for this %T", value)
	}
	return k, nil
}

// Size returns the number of registered entries.
func (r *Registry[V]) Size() int {
	return len(r.snapshot())
}

// Pending returns the number of holders waiting for their key to be
// registered. It is always zero once frozen.
func (r *Registry[V]) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, holders := range r.pending {
		n += len(holders)
	}
	return n
}

// Keys yields registered keys in registration order.
func (r *Registry[V]) Keys() iter.Seq[Key] {
	return func(yield func(Key) bool) {
		for _, e := range r.snapshot() {
			if !yield(e.Key) {
				return
			}
		}
	}
}

// Values yields registered values in registration order.
func (r *Registry[V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, e := range r.snapshot() {
			if !yield(e.Value) {
				return
			}
		}
	}
}

// Entries yields key/value pairs in registration order. Each range over the
// sequence sees the entries registered when it started.
func (r *Registry[V]) Entries() iter.Seq2[Key, V] {
	return func(yield func(Key, V) bool) {
		for _, e := range r.snapshot() {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// snapshot returns the order slice as of now. order is append-only, so the
// captured prefix is never written again.
func (r *Registry[V]) snapshot() []Entry[V] {
	if r.frozen.Load() {
		return r.order
	}
	r.mu.RLock()
	s := r.order
	r.mu.RUnlock()
	return s
}

func (r *Registry[V]) notify(e Event) {
	for _, o := range r.observers {
		o.Observe(e)
	}
}
