package registry

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// IdentityFunc projects a value onto the comparable identity used by the
// reverse index. Two values with equal identities are the same value as far
// as ErrDuplicateValue and GetKey are concerned.
type IdentityFunc[V any] func(V) (any, error)

// valueIdentity uses Go equality on a comparable value.
func valueIdentity[V comparable](v V) (any, error) {
	if isNil(v) {
		return nil, errors.Wrap(ErrInvalidValue, "value must not be nil")
	}
	// V may be an interface, or hold one, whose dynamic value is not
	// hashable.
	if !reflect.ValueOf(v).Comparable() {
		return nil, errors.Wrapf(ErrInvalidValue, "%T holds a value that is not comparable", v)
	}
	return v, nil
}

// referenceIdentity identifies reference values by type and address. Slices
// also include their length so a re-sliced prefix is a different value.
type referenceIdentity struct {
	typ  reflect.Type
	addr uintptr
	n    int
}

func pointerIdentity[V any](v V) (any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, errors.Wrap(ErrInvalidValue, "value must not be nil")
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			return nil, errors.Wrap(ErrInvalidValue, "value must not be nil")
		}
		return referenceIdentity{typ: rv.Type(), addr: rv.Pointer()}, nil
	case reflect.Slice:
		if rv.IsNil() {
			return nil, errors.Wrap(ErrInvalidValue, "value must not be nil")
		}
		return referenceIdentity{typ: rv.Type(), addr: rv.Pointer(), n: rv.Len()}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidValue, "%s has no reference identity", rv.Type())
	}
}

// isNil reports whether v is a nil interface or a nil value of a nillable
// kind.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}
