package registry

import "iter"

// Reader defines read-only access to a registry. Both *Registry and View
// implement it, so consumers can depend on Reader and be handed either.
type Reader[V any] interface {
	// Get returns the value registered under key, or ErrUnknownKey.
	Get(key Key) (V, error)

	// Lookup returns the value registered under key, if present.
	Lookup(key Key) (V, bool)

	// GetKey returns the key a value is registered under, or ErrUnknownValue.
	GetKey(value V) (Key, error)

	// HolderFor returns a holder for key. See Registry.HolderFor.
	HolderFor(key Key) *Holder[V]

	// Keys, Values, and Entries iterate in registration order.
	Keys() iter.Seq[Key]
	Values() iter.Seq[V]
	Entries() iter.Seq2[Key, V]

	// Size returns the number of registered entries.
	Size() int
}

// Compile-time checks for the read-only surface.
var (
	_ Reader[string] = (*Registry[string])(nil)
	_ Reader[string] = View[string]{}
)

// Builder is the construction-phase facade of a Registry. It can register
// values, request holders, and freeze; it cannot read.
type Builder[V any] struct {
	core *Registry[V]
}

// Register binds value to key. See Registry.Register.
func (b Builder[V]) Register(key Key, value V) (*Holder[V], error) {
	return b.core.Register(key, value)
}

// RegisterValue binds value to key and returns value.
func (b Builder[V]) RegisterValue(key Key, value V) (V, error) {
	return b.core.RegisterValue(key, value)
}

// HolderFor returns a holder for key, possibly a forward reference.
func (b Builder[V]) HolderFor(key Key) *Holder[V] {
	return b.core.HolderFor(key)
}

// Freeze ends the construction phase and returns the read-only view. Calling
// it again returns the same view.
func (b Builder[V]) Freeze() View[V] {
	b.core.Freeze()
	return View[V]{core: b.core}
}

// View is the read-only facade of a Registry.
type View[V any] struct {
	core *Registry[V]
}

// Get returns the value registered under key, or ErrUnknownKey.
func (v View[V]) Get(key Key) (V, error) { return v.core.Get(key) }

// Lookup returns the value registered under key, if present.
func (v View[V]) Lookup(key Key) (V, bool) { return v.core.Lookup(key) }

// GetKey returns the key value is registered under, or ErrUnknownValue.
func (v View[V]) GetKey(value V) (Key, error) { return v.core.GetKey(value) }

// HolderFor returns a holder for key. On a frozen registry an unregistered key
// yields a permanently unresolved holder.
func (v View[V]) HolderFor(key Key) *Holder[V] { return v.core.HolderFor(key) }

// Keys yields keys in registration order.
func (v View[V]) Keys() iter.Seq[Key] { return v.core.Keys() }

// Values yields values in registration order.
func (v View[V]) Values() iter.Seq[V] { return v.core.Values() }

// Entries yields key/value pairs in registration order.
func (v View[V]) Entries() iter.Seq2[Key, V] { return v.core.Entries() }

// Size returns the number of registered entries.
func (v View[V]) Size() int { return v.core.Size() }

// Frozen reports whether the underlying registry is frozen.
func (v View[V]) Frozen() bool { return v.core.Frozen() }
