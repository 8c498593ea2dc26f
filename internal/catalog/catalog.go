package catalog

import (
	"iter"
	"maps"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/google/uuid"

	"github.com/zjrosen/keystone/internal/registry"
)

// Catalog is one loaded, frozen generation of items.
type Catalog struct {
	view       registry.View[*Item]
	generation uuid.UUID
	loadedAt   time.Time
	namespaces []string
	labels     map[string]mapset.Set // label -> set of registry.Key
}

func newCatalog(view registry.View[*Item], generation uuid.UUID, loadedAt time.Time) *Catalog {
	c := &Catalog{
		view:       view,
		generation: generation,
		loadedAt:   loadedAt,
		labels:     make(map[string]mapset.Set),
	}

	seen := mapset.NewThreadUnsafeSet()
	for k, it := range view.Entries() {
		if seen.Add(k.Namespace()) {
			c.namespaces = append(c.namespaces, k.Namespace())
		}
		for _, label := range it.Labels {
			set, ok := c.labels[label]
			if !ok {
				set = mapset.NewThreadUnsafeSet()
				c.labels[label] = set
			}
			set.Add(k)
		}
	}
	slices.Sort(c.namespaces)
	return c
}

// View returns the read-only registry the catalog is built on.
func (c *Catalog) View() registry.View[*Item] { return c.view }

// Generation identifies this load. Every successful load gets a new one.
func (c *Catalog) Generation() uuid.UUID { return c.generation }

// LoadedAt returns when the load finished.
func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }

// Size returns the number of items.
func (c *Catalog) Size() int { return c.view.Size() }

// Get returns the item registered under key, or registry.ErrUnknownKey.
func (c *Catalog) Get(key registry.Key) (*Item, error) {
	return c.view.Get(key)
}

// Resolve parses a namespace:path string and returns its item.
func (c *Catalog) Resolve(raw string) (*Item, error) {
	key, err := registry.ParseKey(raw)
	if err != nil {
		return nil, err
	}
	return c.view.Get(key)
}

// KeyOf returns the key an item is registered under. Items from another
// generation are unknown.
func (c *Catalog) KeyOf(it *Item) (registry.Key, error) {
	return c.view.GetKey(it)
}

// Items yields every item in load order.
func (c *Catalog) Items() iter.Seq[*Item] {
	return c.view.Values()
}

// Namespaces returns the namespaces that have at least one item, sorted.
func (c *Catalog) Namespaces() []string {
	return slices.Clone(c.namespaces)
}

// ByNamespace returns the items of one namespace in load order.
func (c *Catalog) ByNamespace(ns string) []*Item {
	var out []*Item
	for k, it := range c.view.Entries() {
		if k.Namespace() == ns {
			out = append(out, it)
		}
	}
	return out
}

// ByLabels returns the items carrying every given label, in load order.
// With no labels it returns every item.
func (c *Catalog) ByLabels(labels ...string) []*Item {
	match, ok := c.matching(labels)
	if !ok {
		return nil
	}
	var out []*Item
	for k, it := range c.view.Entries() {
		if match == nil || match.Contains(k) {
			out = append(out, it)
		}
	}
	return out
}

// matching intersects the key sets of labels. A nil set means no filter; ok
// is false when some label matches nothing.
func (c *Catalog) matching(labels []string) (mapset.Set, bool) {
	var match mapset.Set
	for _, label := range labels {
		set, ok := c.labels[label]
		if !ok {
			return nil, false
		}
		if match == nil {
			match = set
			continue
		}
		match = match.Intersect(set)
	}
	return match, true
}

// Labels returns every label in use, sorted.
func (c *Catalog) Labels() []string {
	return slices.Sorted(maps.Keys(c.labels))
}

// LabelCount returns how many items carry label.
func (c *Catalog) LabelCount(label string) int {
	set, ok := c.labels[label]
	if !ok {
		return 0
	}
	return set.Cardinality()
}
