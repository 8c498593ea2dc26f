package registry

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// Separator splits the namespace from the path in a canonical key.
const Separator = ':'

var (
	namespacePattern = regexp.MustCompile(`^[a-z0-9._-]+$`)
	pathPattern      = regexp.MustCompile(`^[a-z0-9._\-/]+$`)
)

// Key is an immutable namespaced identifier. Two keys are equal when their
// namespace and path are equal, so Key is usable directly as a map key.
//
// The zero Key is not a valid key; it is rejected by Register.
type Key struct {
	namespace string
	path      string
}

// NewKey validates namespace and path and returns the Key they form.
func NewKey(namespace, path string) (Key, error) {
	if !namespacePattern.MatchString(namespace) {
		return Key{}, errors.Wrapf(ErrInvalidKeyFormat, "namespace %q must match [a-z0-9._-]+", namespace)
	}
	if !pathPattern.MatchString(path) {
		return Key{}, errors.Wrapf(ErrInvalidKeyFormat, "path %q must match [a-z0-9._-/]+", path)
	}
	return Key{namespace: namespace, path: path}, nil
}

// ValidNamespace reports whether s is a well-formed namespace.
func ValidNamespace(s string) bool { return namespacePattern.MatchString(s) }

// ValidPath reports whether s is a well-formed path.
func ValidPath(s string) bool { return pathPattern.MatchString(s) }

// MustKey is like NewKey but panics on an invalid key. Useful for
// package-level key tables.
func MustKey(namespace, path string) Key {
	k, err := NewKey(namespace, path)
	if err != nil {
		panic(err)
	}
	return k
}

// ParseKey parses the canonical namespace:path form produced by String.
func ParseKey(s string) (Key, error) {
	ns, path, ok := strings.Cut(s, string(Separator))
	if !ok {
		return Key{}, errors.Wrapf(ErrInvalidKeyFormat, "%q is missing the %q separator", s, Separator)
	}
	return NewKey(ns, path)
}

// Namespace returns the namespace segment.
func (k Key) Namespace() string { return k.namespace }

// Path returns the path segment.
func (k Key) Path() string { return k.path }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.namespace == "" && k.path == "" }

// String returns the canonical namespace:path form.
func (k Key) String() string {
	if k.IsZero() {
		return "<empty>"
	}
	return k.namespace + string(Separator) + k.path
}

// Compare orders keys by namespace, then path.
func Compare(a, b Key) int {
	if c := strings.Compare(a.namespace, b.namespace); c != 0 {
		return c
	}
	return strings.Compare(a.path, b.path)
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	if k.IsZero() {
		return nil, errors.Wrap(ErrInvalidKeyFormat, "cannot marshal the zero key")
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
