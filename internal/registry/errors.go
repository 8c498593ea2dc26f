package registry

import "github.com/cockroachdb/errors"

// Registry errors
var (
	ErrInvalidKeyFormat            = errors.New("invalid key format")
	ErrInvalidValue                = errors.New("invalid registry value")
	ErrDuplicateKey                = errors.New("duplicate key")
	ErrDuplicateValue              = errors.New("duplicate value")
	ErrRegistryFrozen              = errors.New("registry is frozen")
	ErrUnknownKey                  = errors.New("unknown key")
	ErrUnknownValue                = errors.New("unknown value")
	ErrUnresolvedHolder            = errors.New("holder is not bound yet")
	ErrPermanentlyUnresolvedHolder = errors.New("holder will never be bound")
)

// doubleBinding builds the assertion failure raised when a holder is bound
// twice. It is never returned to callers; resolve panics with it.
func doubleBinding(k Key) error {
	return errors.AssertionFailedf("double binding violation: holder for %s is already bound", k)
}

// IsDoubleBinding reports whether a recovered panic value is a double binding
// violation raised by a holder.
func IsDoubleBinding(recovered any) bool {
	err, ok := recovered.(error)
	return ok && errors.HasAssertionFailure(err)
}
