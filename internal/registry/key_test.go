package registry

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"
)

func TestNewKey(t *testing.T) {
	testCases := []struct {
		name      string
		namespace string
		path      string
		expectErr bool
	}{
		{name: "simple", namespace: "core", path: "fire"},
		{name: "nested path", namespace: "core", path: "blocks/stone"},
		{name: "all allowed characters", namespace: "my-mod_2.x", path: "a.b-c_d/e0"},
		{name: "error - empty namespace", namespace: "", path: "fire", expectErr: true},
		{name: "error - empty path", namespace: "core", path: "", expectErr: true},
		{name: "error - uppercase namespace", namespace: "Core", path: "fire", expectErr: true},
		{name: "error - uppercase path", namespace: "core", path: "Fire", expectErr: true},
		{name: "error - slash in namespace", namespace: "co/re", path: "fire", expectErr: true},
		{name: "error - colon in path", namespace: "core", path: "fi:re", expectErr: true},
		{name: "error - space", namespace: "core", path: "fire ball", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			k, err := NewKey(tc.namespace, tc.path)
			if tc.expectErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidKeyFormat))
				require.True(t, k.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.namespace, k.Namespace())
			assert.Equal(t, tc.path, k.Path())
		})
	}
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "core:fire", MustKey("core", "fire").String())
	assert.Equal(t, "core:blocks/stone", MustKey("core", "blocks/stone").String())
	assert.Equal(t, "<empty>", Key{}.String())
}

func TestKey_EqualityAndMapUse(t *testing.T) {
	a := MustKey("core", "fire")
	b := MustKey("core", "fire")
	c := MustKey("core", "water")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)

	m := map[Key]int{a: 1}
	require.Equal(t, 1, m[b])
	_, ok := m[c]
	require.False(t, ok)
}

func TestMustKey_PanicsOnInvalid(t *testing.T) {
	require.Panics(t, func() { MustKey("Core", "fire") })
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("core:blocks/stone")
	require.NoError(t, err)
	require.Equal(t, MustKey("core", "blocks/stone"), k)

	_, err = ParseKey("fire")
	require.ErrorIs(t, err, ErrInvalidKeyFormat)

	_, err = ParseKey(":fire")
	require.ErrorIs(t, err, ErrInvalidKeyFormat)

	_, err = ParseKey("core:")
	require.ErrorIs(t, err, ErrInvalidKeyFormat)

	// A second separator belongs to the path, which does not allow it.
	_, err = ParseKey("core:fire:hot")
	require.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestCompare(t *testing.T) {
	keys := []Key{
		MustKey("b", "a"),
		MustKey("a", "z"),
		MustKey("a", "b"),
	}
	slices.SortFunc(keys, Compare)
	require.Equal(t, []Key{MustKey("a", "b"), MustKey("a", "z"), MustKey("b", "a")}, keys)
}

func TestKey_TextMarshaling(t *testing.T) {
	type doc struct {
		Target Key         `json:"target" yaml:"target"`
		ByKey  map[Key]int `json:"by_key" yaml:"-"`
	}

	in := doc{Target: MustKey("core", "water"), ByKey: map[Key]int{MustKey("core", "fire"): 3}}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"target":"core:water","by_key":{"core:fire":3}}`, string(data))

	var out doc
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)

	var fromYAML doc
	require.NoError(t, yaml.Unmarshal([]byte("target: core:earth\n"), &fromYAML))
	require.Equal(t, MustKey("core", "earth"), fromYAML.Target)

	require.Error(t, yaml.Unmarshal([]byte("target: Earth\n"), &fromYAML))

	_, err = Key{}.MarshalText()
	require.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestKey_ParseStringRoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ns := rapid.StringMatching(`[a-z0-9._-]{1,12}`).Draw(t, "namespace")
		path := rapid.StringMatching(`[a-z0-9._/-]{1,24}`).Draw(t, "path")

		k, err := NewKey(ns, path)
		require.NoError(t, err)

		parsed, err := ParseKey(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	})
}

func TestValidNamespaceAndPath(t *testing.T) {
	require.True(t, ValidNamespace("core"))
	require.False(t, ValidNamespace("core/sub"))
	require.False(t, ValidNamespace(""))
	require.True(t, ValidPath("blocks/stone"))
	require.False(t, ValidPath("Stone"))
}
