package catalog

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/keystone/internal/pubsub"
	"github.com/zjrosen/keystone/internal/registry"
)

const earthYAML = `namespace: core
items:
  - path: earth
    name: Earth
    labels: [element]
`

func newLive(t *testing.T, fsys fstest.MapFS) *Live {
	t.Helper()
	live, err := NewLive(context.Background(), NewLoader(fsys), LiveConfig{})
	require.NoError(t, err)
	t.Cleanup(live.Close)
	return live
}

func nextReload(t *testing.T, ch <-chan pubsub.Event[Reload]) Reload {
	t.Helper()
	select {
	case event := <-ch:
		require.Equal(t, pubsub.ReloadedEvent, event.Type)
		return event.Payload
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for reload")
		return Reload{}
	}
}

func TestNewLive_InitialLoadFails(t *testing.T) {
	fsys := elementsFS()
	fsys["broken.yaml"] = &fstest.MapFile{Data: []byte("namespace: [")}

	_, err := NewLive(context.Background(), NewLoader(fsys), LiveConfig{})
	require.Error(t, err)
}

func TestLive_ReloadSwapsGeneration(t *testing.T) {
	fsys := elementsFS()
	live := newLive(t, fsys)
	events := live.Subscribe(context.Background())

	before := live.Current()
	fsys["earth.yaml"] = &fstest.MapFile{Data: []byte(earthYAML)}

	require.NoError(t, live.Reload(context.Background()))

	after := live.Current()
	require.NotEqual(t, before.Generation(), after.Generation())
	require.Equal(t, 5, after.Size())

	// The previous generation is untouched.
	require.Equal(t, 4, before.Size())
	_, err := before.Resolve("core:earth")
	require.ErrorIs(t, err, registry.ErrUnknownKey)

	outcome := nextReload(t, events)
	require.NoError(t, outcome.Err)
	require.Equal(t, before.Generation(), outcome.Previous)
	require.Equal(t, after.Generation(), outcome.Generation)
	require.Equal(t, 5, outcome.Size)
}

func TestLive_FailedReloadKeepsPrevious(t *testing.T) {
	fsys := elementsFS()
	live := newLive(t, fsys)
	events := live.Subscribe(context.Background())

	before := live.Current()
	fsys["dangling.yaml"] = &fstest.MapFile{Data: []byte("namespace: core\nitems:\n  - path: mud\n    relations:\n      from: earth\n")}

	err := live.Reload(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "reload catalog")
	require.Same(t, before, live.Current())

	outcome := nextReload(t, events)
	require.Error(t, outcome.Err)
	require.Equal(t, before.Generation(), outcome.Generation)
	require.Equal(t, before.Generation(), outcome.Previous)
	require.Equal(t, 4, outcome.Size)

	it, err := live.Resolve(context.Background(), "core:fire")
	require.NoError(t, err)
	require.Equal(t, "Fire", it.Name)
}

func TestLive_ResolveIsGenerationScoped(t *testing.T) {
	fsys := elementsFS()
	live := newLive(t, fsys)
	ctx := context.Background()

	first, err := live.Resolve(ctx, "core:fire")
	require.NoError(t, err)
	again, err := live.Resolve(ctx, "core:fire")
	require.NoError(t, err)
	require.Same(t, first, again, "second lookup is served from cache")
	require.Equal(t, 1, live.cache.Len())
	require.Equal(t, uint64(1), live.CacheStats().Hits)

	require.NoError(t, live.Reload(ctx))
	require.Equal(t, 0, live.cache.Len(), "reload flushes the lookup cache")

	next, err := live.Resolve(ctx, "core:fire")
	require.NoError(t, err)
	require.NotSame(t, first, next)
	_, err = live.Current().KeyOf(next)
	require.NoError(t, err)
}

func TestLive_ResolveErrorsAreNotCached(t *testing.T) {
	fsys := elementsFS()
	live := newLive(t, fsys)
	ctx := context.Background()

	_, err := live.Resolve(ctx, "core:earth")
	require.ErrorIs(t, err, registry.ErrUnknownKey)
	require.Equal(t, 0, live.cache.Len())

	_, err = live.Resolve(ctx, "bad key")
	require.ErrorIs(t, err, registry.ErrInvalidKeyFormat)

	fsys["earth.yaml"] = &fstest.MapFile{Data: []byte(earthYAML)}
	require.NoError(t, live.Reload(ctx))

	earth, err := live.Resolve(ctx, "core:earth")
	require.NoError(t, err)
	require.Equal(t, "Earth", earth.Name)
}

func TestLive_RunReloadsOnChange(t *testing.T) {
	fsys := elementsFS()
	live := newLive(t, fsys)
	events := live.Subscribe(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- live.Run(ctx, changes) }()

	fsys["earth.yaml"] = &fstest.MapFile{Data: []byte(earthYAML)}
	changes <- struct{}{}
	outcome := nextReload(t, events)
	require.NoError(t, outcome.Err)
	require.Equal(t, 5, outcome.Size)

	// A failing reload is published, not returned from Run.
	fsys["broken.hcl"] = &fstest.MapFile{Data: []byte("namespace = ")}
	changes <- struct{}{}
	outcome = nextReload(t, events)
	require.Error(t, outcome.Err)
	require.Equal(t, 5, live.Current().Size())

	close(changes)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "Run did not return after changes closed")
	}
}

func TestLive_RunStopsOnCancel(t *testing.T) {
	live := newLive(t, elementsFS())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- live.Run(ctx, make(chan struct{})) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		require.Fail(t, "Run did not return after cancel")
	}
}
