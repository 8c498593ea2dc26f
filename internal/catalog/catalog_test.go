package catalog

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/keystone/internal/registry"
)

func itemKeys(items []*Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Key.String())
	}
	return out
}

func TestCatalog_Namespaces(t *testing.T) {
	cat := mustLoad(t, elementsFS())
	require.Equal(t, []string{"core", "nature"}, cat.Namespaces())

	// Callers get a copy.
	ns := cat.Namespaces()
	ns[0] = "mutated"
	require.Equal(t, []string{"core", "nature"}, cat.Namespaces())
}

func TestCatalog_ByNamespace(t *testing.T) {
	cat := mustLoad(t, elementsFS())

	require.Equal(t, []string{"core:fire", "core:water"}, itemKeys(cat.ByNamespace("core")))
	require.Equal(t, []string{"nature:ice", "nature:trees/oak"}, itemKeys(cat.ByNamespace("nature")))
	require.Empty(t, cat.ByNamespace("missing"))
}

func TestCatalog_ByLabels(t *testing.T) {
	cat := mustLoad(t, elementsFS())

	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{"no labels returns everything", nil, []string{"core:fire", "core:water", "nature:ice", "nature:trees/oak"}},
		{"single label", []string{"element"}, []string{"core:fire", "core:water", "nature:ice"}},
		{"labels are ANDed", []string{"element", "hot"}, []string{"core:fire"}},
		{"disjoint labels", []string{"hot", "cold"}, []string{}},
		{"unknown label", []string{"element", "missing"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, itemKeys(cat.ByLabels(tt.labels...)))
		})
	}
}

func TestCatalog_Labels(t *testing.T) {
	cat := mustLoad(t, elementsFS())

	require.Equal(t, []string{"cold", "element", "hot"}, cat.Labels())
	require.Equal(t, 3, cat.LabelCount("element"))
	require.Equal(t, 1, cat.LabelCount("hot"))
	require.Equal(t, 0, cat.LabelCount("missing"))
}

func TestCatalog_ItemsInLoadOrder(t *testing.T) {
	cat := mustLoad(t, elementsFS())

	items := slices.Collect(cat.Items())
	require.Len(t, items, cat.Size())
	require.Equal(t, []string{"core:fire", "core:water", "nature:ice", "nature:trees/oak"}, itemKeys(items))
}

func TestCatalog_GetAndResolve(t *testing.T) {
	cat := mustLoad(t, elementsFS())

	fire, err := cat.Get(registry.MustKey("core", "fire"))
	require.NoError(t, err)

	resolved, err := cat.Resolve("core:fire")
	require.NoError(t, err)
	require.Same(t, fire, resolved)

	k, err := cat.KeyOf(fire)
	require.NoError(t, err)
	require.Equal(t, fire.Key, k)

	_, err = cat.Resolve("core:earth")
	require.ErrorIs(t, err, registry.ErrUnknownKey)

	_, err = cat.Resolve("no separator")
	require.ErrorIs(t, err, registry.ErrInvalidKeyFormat)
}

func TestCatalog_KeyOfForeignItem(t *testing.T) {
	first := mustLoad(t, elementsFS())
	second := mustLoad(t, elementsFS())

	fire, err := first.Resolve("core:fire")
	require.NoError(t, err)

	// Same fields, different generation: identity differs.
	_, err = second.KeyOf(fire)
	require.ErrorIs(t, err, registry.ErrUnknownValue)
	_, err = second.KeyOf(&Item{Key: fire.Key})
	require.ErrorIs(t, err, registry.ErrUnknownValue)
}

func TestItem_Related(t *testing.T) {
	cat := mustLoad(t, elementsFS())
	fire, err := cat.Resolve("core:fire")
	require.NoError(t, err)

	require.Equal(t, []string{"melts", "opposite"}, fire.RelationNames())
	require.True(t, fire.HasLabel("hot"))
	require.False(t, fire.HasLabel("cold"))

	_, err = fire.Related("missing")
	require.ErrorIs(t, err, ErrUnknownRelation)

	oak, err := cat.Resolve("nature:trees/oak")
	require.NoError(t, err)
	require.Empty(t, oak.RelationNames())
}
