package catalog

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/keystone/internal/registry"
	"github.com/zjrosen/keystone/internal/tracing"
)

func load(t *testing.T, fsys fstest.MapFS, opts ...LoaderOption) (*Catalog, error) {
	t.Helper()
	return NewLoader(fsys, opts...).Load(context.Background())
}

func mustLoad(t *testing.T, fsys fstest.MapFS, opts ...LoaderOption) *Catalog {
	t.Helper()
	cat, err := load(t, fsys, opts...)
	require.NoError(t, err)
	return cat
}

// loadErrors returns the individual errors of a failed load.
func loadErrors(t *testing.T, err error) []error {
	t.Helper()
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr), "expected a multierror, got %T", err)
	return merr.Errors
}

// === Unit Tests: Load ===

func TestLoader_LoadsYAMLAndHCL(t *testing.T) {
	cat := mustLoad(t, elementsFS())

	require.Equal(t, 4, cat.Size())
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", cat.Generation().String())

	fire, err := cat.Resolve("core:fire")
	require.NoError(t, err)
	require.Equal(t, "Fire", fire.Name)
	require.Equal(t, "Hot.", fire.Description)
	require.Equal(t, []string{"element", "hot"}, fire.Labels)
	require.Equal(t, map[string]string{"weight": "3"}, fire.Properties)
	require.Equal(t, "core.yaml", fire.Source)

	ice, err := cat.Resolve("nature:ice")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"hardness": "2.5", "brittle": "true"}, ice.Properties)
	require.Equal(t, "nature.hcl", ice.Source)

	oak, err := cat.Resolve("nature:trees/oak")
	require.NoError(t, err)
	require.Nil(t, oak.Relations)
}

func TestLoader_RelationsResolveAcrossFilesAndOrder(t *testing.T) {
	cat := mustLoad(t, elementsFS())

	fire, err := cat.Resolve("core:fire")
	require.NoError(t, err)
	water, err := cat.Resolve("core:water")
	require.NoError(t, err)
	ice, err := cat.Resolve("nature:ice")
	require.NoError(t, err)

	// Same-file reference to a later item, relative path.
	opposite, err := fire.Related("opposite")
	require.NoError(t, err)
	require.Same(t, water, opposite)

	// Cross-file forward reference.
	melts, err := fire.Related("melts")
	require.NoError(t, err)
	require.Same(t, ice, melts)
	require.Equal(t, registry.KindLazy, fire.Relations["melts"].Kind())

	// Backward reference: water's canonical holder is the forward reference
	// fire requested before water existed.
	becomes, err := ice.Related("becomes")
	require.NoError(t, err)
	require.Same(t, water, becomes)
	require.Same(t, fire.Relations["opposite"], ice.Relations["becomes"])
	require.Equal(t, registry.KindLazy, ice.Relations["becomes"].Kind())

	// fire registered before anyone asked for it.
	back, err := water.Related("opposite")
	require.NoError(t, err)
	require.Same(t, fire, back)
	require.Equal(t, registry.KindImmediate, water.Relations["opposite"].Kind())

	_, err = fire.Related("missing")
	require.ErrorIs(t, err, ErrUnknownRelation)
	require.Equal(t, []string{"melts", "opposite"}, fire.RelationNames())
}

func TestLoader_DanglingReferences(t *testing.T) {
	fsys := fstest.MapFS{
		"core.yaml": {Data: []byte(`namespace: core
items:
  - path: fire
    relations:
      opposite: water
      fuel: wood:oak
`)},
	}

	errs := loadErrors(t, mustFail(t, fsys))
	require.Len(t, errs, 2)
	for _, err := range errs {
		require.True(t, errors.Is(err, ErrDanglingReference))
		require.True(t, errors.Is(err, registry.ErrPermanentlyUnresolvedHolder))
		require.Equal(t, "define the target item or fix the reference", errors.FlattenHints(err))
	}
	// Relations are checked in name order.
	require.Contains(t, errs[0].Error(), `core:fire relation "fuel" points at wood:oak`)
	require.Contains(t, errs[1].Error(), `core:fire relation "opposite" points at core:water`)
}

func TestLoader_DuplicateKeysAcrossFiles(t *testing.T) {
	fsys := elementsFS()
	fsys["more/core.yml"] = &fstest.MapFile{Data: []byte(`namespace: core
items:
  - path: fire
    name: Second fire
`)}

	errs := loadErrors(t, mustFail(t, fsys))
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], registry.ErrDuplicateKey)
	require.Contains(t, errs[0].Error(), "more/core.yml")
	require.Contains(t, errs[0].Error(), "core:fire")
}

func TestLoader_ValidationErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.yaml": {Data: []byte(`namespace: Core
items:
  - path: ""
    relations:
      Opposite: "Not A Key"
`)},
	}

	errs := loadErrors(t, mustFail(t, fsys))
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		require.ErrorIs(t, err, ErrInvalidDefinition)
		messages = append(messages, err.Error())
	}
	require.Len(t, errs, 4)
	require.Contains(t, messages[0], "bad.yaml: namespace: must match [a-z0-9._-]+")
	requireAnyContains(t, messages, "items[0].path: is required")
	requireAnyContains(t, messages, "Opposite", "must match [a-z0-9._-]+")
	requireAnyContains(t, messages, "Opposite", "must be a path or namespace:path")
}

func TestLoader_DecodeErrorsAreCollectedPerFile(t *testing.T) {
	fsys := elementsFS()
	fsys["broken.hcl"] = &fstest.MapFile{Data: []byte(`namespace = "x"
item "a" {
  nme = "typo"
}
`)}
	fsys["broken.yaml"] = &fstest.MapFile{Data: []byte("namespace: x\nitems: [\n")}
	fsys["unknown.yaml"] = &fstest.MapFile{Data: []byte("namespace: x\ncolour: red\n")}

	errs := loadErrors(t, mustFail(t, fsys))
	require.Len(t, errs, 3)
	for _, err := range errs {
		require.True(t, errors.Is(err, ErrInvalidDefinition), "%v", err)
	}
	require.Contains(t, errs[0].Error(), "broken.hcl")
	require.Contains(t, errs[1].Error(), "broken.yaml")
	require.Contains(t, errs[2].Error(), "unknown.yaml")
}

func TestLoader_EmptyFileNeedsNamespace(t *testing.T) {
	errs := loadErrors(t, mustFail(t, fstest.MapFS{"empty.yaml": {Data: nil}}))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "namespace: is required")
}

func TestLoader_EmptyDirectory(t *testing.T) {
	cat := mustLoad(t, fstest.MapFS{"README.md": {Data: []byte("docs")}})
	require.Equal(t, 0, cat.Size())
	require.Empty(t, cat.Namespaces())
}

func TestLoader_SkipsHiddenEntries(t *testing.T) {
	fsys := elementsFS()
	fsys[".drafts/wip.yaml"] = &fstest.MapFile{Data: []byte("namespace: BROKEN\n")}
	fsys[".hidden.yaml"] = &fstest.MapFile{Data: []byte("namespace: BROKEN\n")}

	cat := mustLoad(t, fsys)
	require.Equal(t, 4, cat.Size())
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(elementsFS()).Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoader_EachLoadIsANewGeneration(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	loader := NewLoader(elementsFS())
	loader.now = func() time.Time { return now }

	first, err := loader.Load(context.Background())
	require.NoError(t, err)
	second, err := loader.Load(context.Background())
	require.NoError(t, err)

	require.NotEqual(t, first.Generation(), second.Generation())
	require.Equal(t, now, first.LoadedAt())

	// Items are registered by identity, so another generation's item is unknown.
	fire, err := first.Resolve("core:fire")
	require.NoError(t, err)
	_, err = second.KeyOf(fire)
	require.ErrorIs(t, err, registry.ErrUnknownValue)

	k, err := first.KeyOf(fire)
	require.NoError(t, err)
	require.Equal(t, registry.MustKey("core", "fire"), k)
}

// === Unit Tests: Observability ===

func TestLoader_ObserverSeesRegistryLifecycle(t *testing.T) {
	var events []registry.Event
	obs := registry.ObserverFunc(func(e registry.Event) { events = append(events, e) })

	mustLoad(t, elementsFS(), WithObserver(obs), WithObserver(nil))

	require.Len(t, events, 5)
	for _, e := range events[:4] {
		require.Equal(t, registry.EventRegistered, e.Kind)
		require.Equal(t, RegistryName, e.Registry)
	}
	frozen := events[4]
	require.Equal(t, registry.EventFrozen, frozen.Kind)
	require.Equal(t, 4, frozen.Size)
	require.Equal(t, 0, frozen.Orphaned)
}

func TestLoader_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	mustLoad(t, elementsFS(), WithTracer(tp.Tracer("test")))

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	require.Equal(t, []string{
		tracing.SpanCatalogFile,
		tracing.SpanCatalogFile,
		tracing.SpanCatalogLink,
		tracing.SpanCatalogLoad,
	}, names)
}

func TestResolveRef(t *testing.T) {
	k, err := ResolveRef("core", "water")
	require.NoError(t, err)
	require.Equal(t, registry.MustKey("core", "water"), k)

	k, err = ResolveRef("core", "nature:ice")
	require.NoError(t, err)
	require.Equal(t, registry.MustKey("nature", "ice"), k)

	_, err = ResolveRef("core", "Bad")
	require.ErrorIs(t, err, registry.ErrInvalidKeyFormat)
}

func mustFail(t *testing.T, fsys fstest.MapFS) error {
	t.Helper()
	cat, err := load(t, fsys)
	require.Nil(t, cat)
	return err
}

// requireAnyContains asserts that one message contains every part.
func requireAnyContains(t *testing.T, messages []string, parts ...string) {
	t.Helper()
	for _, m := range messages {
		matched := true
		for _, p := range parts {
			if !strings.Contains(m, p) {
				matched = false
				break
			}
		}
		if matched {
			return
		}
	}
	require.Failf(t, "no message contains all parts", "want %q in %q", parts, messages)
}
