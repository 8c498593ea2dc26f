package registry

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Kind distinguishes holders that were bound at creation from forward
// references.
type Kind int

const (
	// KindImmediate holders are bound when they are created.
	KindImmediate Kind = iota
	// KindLazy holders were requested before their key was registered and
	// bind later, or never.
	KindLazy
)

func (k Kind) String() string {
	switch k {
	case KindImmediate:
		return "immediate"
	case KindLazy:
		return "lazy"
	default:
		return "unknown"
	}
}

// cell is the single-assignment state of a holder. A nil cell means unbound.
type cell[V any] struct {
	value    V
	orphaned bool // registry froze before the key was registered
}

// Holder is a reference to the value registered under a key. It may exist
// before the value does. Once bound it never changes.
//
// A Holder carries only its key and its own state; binding is driven by the
// registry that handed it out.
type Holder[V any] struct {
	key   Key
	kind  Kind
	state atomic.Pointer[cell[V]]
}

func newBoundHolder[V any](k Key, v V) *Holder[V] {
	h := &Holder[V]{key: k, kind: KindImmediate}
	h.state.Store(&cell[V]{value: v})
	return h
}

func newUnboundHolder[V any](k Key) *Holder[V] {
	return &Holder[V]{key: k, kind: KindLazy}
}

func newOrphanedHolder[V any](k Key) *Holder[V] {
	h := &Holder[V]{key: k, kind: KindLazy}
	h.state.Store(&cell[V]{orphaned: true})
	return h
}

// Key returns the key this holder refers to.
func (h *Holder[V]) Key() Key { return h.key }

// Kind reports whether the holder was bound at creation or is a forward
// reference.
func (h *Holder[V]) Kind() Kind { return h.kind }

// IsBound reports whether a value is bound.
func (h *Holder[V]) IsBound() bool {
	c := h.state.Load()
	return c != nil && !c.orphaned
}

// Get returns the bound value. It fails with ErrUnresolvedHolder while the
// key may still be registered, and with ErrPermanentlyUnresolvedHolder once
// the registry has frozen without it.
func (h *Holder[V]) Get() (V, error) {
	c := h.state.Load()
	switch {
	case c == nil:
		var zero V
		return zero, errors.Wrapf(ErrUnresolvedHolder, "%s", h.key)
	case c.orphaned:
		var zero V
		return zero, errors.WithHint(
			errors.Wrapf(ErrPermanentlyUnresolvedHolder, "%s", h.key),
			"the registry was frozen before this key was registered")
	default:
		return c.value, nil
	}
}

// Value returns the bound value and true, or the zero value and false.
func (h *Holder[V]) Value() (V, bool) {
	v, err := h.Get()
	return v, err == nil
}

// MustGet is like Get but panics when no value is bound.
func (h *Holder[V]) MustGet() V {
	v, err := h.Get()
	if err != nil {
		panic(err)
	}
	return v
}

func (h *Holder[V]) String() string {
	c := h.state.Load()
	switch {
	case c == nil:
		return fmt.Sprintf("Holder[%s unbound]", h.key)
	case c.orphaned:
		return fmt.Sprintf("Holder[%s unresolvable]", h.key)
	default:
		return fmt.Sprintf("Holder[%s bound]", h.key)
	}
}

// resolve binds v. Binding a holder twice means the registry lost track of
// it, which is a bug, not a caller error.
func (h *Holder[V]) resolve(v V) {
	if !h.state.CompareAndSwap(nil, &cell[V]{value: v}) {
		panic(doubleBinding(h.key))
	}
}

// orphan marks a pending holder as never resolvable. It is a no-op on a
// holder that is already bound or orphaned.
func (h *Holder[V]) orphan() {
	h.state.CompareAndSwap(nil, &cell[V]{orphaned: true})
}
