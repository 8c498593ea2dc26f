// Package flags provides feature flags read from the flags section of the
// config. Flags are read-only after initialization and default to false.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/keystone/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagBypassLookupCache makes the live catalog resolve every lookup
	// against the current generation instead of the lookup cache.
	FlagBypassLookupCache = "bypass-lookup-cache"

	// FlagRegistryEvents logs every registration, rejection, and freeze of
	// catalog registries.
	FlagRegistryEvents = "registry-events"
)

// Known lists every flag the binary understands with a short description.
var Known = map[string]string{
	FlagBypassLookupCache: "resolve lookups without the lookup cache",
	FlagRegistryEvents:    "log every registration, rejection, and freeze",
}

// Registry holds feature flag state loaded from configuration.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a copy of the config map. Names missing from
// Known are kept but logged, since they usually are typos.
func New(flags map[string]bool) *Registry {
	r := &Registry{flags: make(map[string]bool, len(flags))}
	maps.Copy(r.flags, flags)
	for _, name := range r.Unknown() {
		log.Warn(log.CatConfig, "Unknown feature flag in config", "flag", name)
	}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(r.flags), "flags", r.All())
	return r
}

// Enabled returns true if the named flag is enabled.
// Returns false for unknown flags and on a nil registry.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	return r.flags[name]
}

// All returns a copy of all configured flags.
// Returns an empty map if the registry is nil.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return make(map[string]bool)
	}
	return maps.Clone(r.flags)
}

// Unknown returns configured flag names missing from Known, sorted.
func (r *Registry) Unknown() []string {
	if r == nil {
		return nil
	}
	var out []string
	for name := range r.flags {
		if _, ok := Known[name]; !ok {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
