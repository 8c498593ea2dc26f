package catalog

import "github.com/cockroachdb/errors"

// Catalog errors
var (
	ErrInvalidDefinition = errors.New("invalid definition")
	ErrDanglingReference = errors.New("dangling reference")
	ErrUnsupportedFormat = errors.New("unsupported catalog file format")
	ErrUnknownRelation   = errors.New("unknown relation")
	ErrNotLoaded         = errors.New("catalog is not loaded")
)
