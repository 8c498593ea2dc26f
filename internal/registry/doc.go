// Package registry implements a generic, namespaced, bidirectional registry.
//
// A Registry associates unique Keys with values of a single type V and keeps a
// reverse index so a value can be mapped back to its Key. It has two phases:
//
//   - Building: values are registered, and holders may be requested for keys
//     that do not have a value yet. Writes are serialized by a single lock.
//   - Frozen: entered once via Freeze. No further registrations are accepted
//     and every read is lock-free.
//
// # Core Types
//
// Key is an immutable namespace:path identifier. Namespaces use [a-z0-9._-],
// paths additionally allow '/'.
//
// Holder is an indirect reference to a registry value. A holder requested
// before its key is registered is a forward reference (KindLazy) and binds
// when the key is registered. Holders never point back at the registry; the
// registry owns a table of pending holders and binds them itself.
//
// Builder and View are capability-narrowing facades over one Registry: a
// Builder can only register, request holders, and freeze; a View can only
// read.
//
// # Equality Policy
//
// Reverse lookup needs an identity for each value. New uses Go equality on a
// comparable V. NewByIdentity uses reference identity for pointer, map, slice,
// and channel values. NewWithIdentity accepts a custom projection.
//
// # Observability
//
// The registry never logs. Observers passed with WithObserver receive an
// Event after every registration, rejection, and freeze.
//
// Typical usage:
//
//	reg := registry.New[string]()
//	b := reg.Builder()
//	earth := b.HolderFor(registry.MustKey("core", "earth"))
//	_, _ = b.Register(registry.MustKey("core", "fire"), "FIRE")
//	view := b.Freeze()
//	_, err := earth.Get() // ErrPermanentlyUnresolvedHolder
package registry
