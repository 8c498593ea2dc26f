package catalog

import (
	"maps"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/zjrosen/keystone/internal/registry"
)

// Item is one catalog entry. Items are registered by identity, so two items
// with identical fields are still distinct values.
type Item struct {
	Key         registry.Key
	Name        string
	Description string
	Labels      []string
	Properties  map[string]string
	Relations   map[string]*registry.Holder[*Item]
	Source      string // file the item was defined in
}

// Related returns the item a relation points at. It fails with
// ErrUnknownRelation when the item has no such relation, and with
// registry.ErrPermanentlyUnresolvedHolder for a dangling one, which a
// successfully loaded catalog never contains.
func (it *Item) Related(name string) (*Item, error) {
	h, ok := it.Relations[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRelation, "%s has no relation %q", it.Key, name)
	}
	return h.Get()
}

// RelationNames returns relation names in sorted order.
func (it *Item) RelationNames() []string {
	return slices.Sorted(maps.Keys(it.Relations))
}

// HasLabel reports whether the item carries label.
func (it *Item) HasLabel(label string) bool {
	return slices.Contains(it.Labels, label)
}
