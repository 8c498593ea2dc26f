package catalog

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/keystone/internal/cachemanager"
	"github.com/zjrosen/keystone/internal/log"
	"github.com/zjrosen/keystone/internal/pubsub"
	"github.com/zjrosen/keystone/internal/tracing"
)

// Reload describes the outcome of one reload attempt.
type Reload struct {
	Generation uuid.UUID // generation serving lookups after the attempt
	Previous   uuid.UUID
	Size       int
	Err        error // set when the attempt failed and Previous stayed current
}

// LiveConfig tunes the lookup cache of a Live catalog.
type LiveConfig struct {
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
	SkipCache            bool // resolve every lookup against the current generation
}

// Live serves the latest successfully loaded Catalog. A frozen registry
// cannot change, so a reload builds a complete new generation and swaps it
// in; readers holding the previous Catalog keep a consistent view.
type Live struct {
	loader  *Loader
	current atomic.Pointer[Catalog]
	reload  sync.Mutex // serializes reloads
	cache   *cachemanager.InMemoryCacheManager[string, *Item]
	lookup  *cachemanager.ReadThroughCache[string, *Item]
	broker  *pubsub.Broker[Reload]
	tracer  trace.Tracer
}

// NewLive performs the initial load and returns a Live catalog serving it.
func NewLive(ctx context.Context, loader *Loader, cfg LiveConfig) (*Live, error) {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = cachemanager.DefaultExpiration
	}
	cleanup := cfg.CacheCleanupInterval
	if cleanup == 0 {
		cleanup = cachemanager.DefaultCleanupInterval
	}

	l := &Live{
		loader: loader,
		cache:  cachemanager.NewInMemoryCacheManager[string, *Item]("catalog-lookup", ttl, cleanup),
		broker: pubsub.NewBroker[Reload](),
		tracer: otel.Tracer("github.com/zjrosen/keystone/internal/catalog"),
	}
	if loader.tracer != nil {
		l.tracer = loader.tracer
	}
	l.lookup = cachemanager.NewReadThroughCache[string, *Item](l.cache, l.resolveCached, ttl, cfg.SkipCache)

	cat, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	l.current.Store(cat)
	return l, nil
}

// Current returns the catalog serving lookups.
func (l *Live) Current() *Catalog {
	return l.current.Load()
}

// Subscribe returns reload outcomes until ctx is cancelled.
func (l *Live) Subscribe(ctx context.Context) <-chan pubsub.Event[Reload] {
	return l.broker.Subscribe(ctx, pubsub.ReloadedEvent)
}

// Resolve looks up a namespace:path string in the current generation through
// the lookup cache.
func (l *Live) Resolve(ctx context.Context, raw string) (*Item, error) {
	for {
		cat := l.current.Load()
		if cat == nil {
			return nil, ErrNotLoaded
		}
		it, err := l.resolveIn(ctx, cat, raw)
		if errors.Is(err, errSuperseded) {
			continue
		}
		return it, err
	}
}

func (l *Live) resolveIn(ctx context.Context, cat *Catalog, raw string) (*Item, error) {
	ctx, span := l.tracer.Start(ctx, tracing.SpanCatalogLookup, trace.WithAttributes(
		attribute.String(tracing.AttrCatalogGeneration, cat.Generation().String()),
	))
	defer span.End()

	it, err := l.lookup.Get(ctx, cacheKey(cat.Generation(), raw))
	tracing.RecordError(span, err)
	return it, err
}

// errSuperseded reports a cache miss for a generation that a reload replaced
// while the lookup was in flight.
var errSuperseded = errors.New("catalog generation superseded")

// cacheKey scopes a lookup to a generation.
func cacheKey(gen uuid.UUID, raw string) string {
	return gen.String() + "/" + raw
}

// resolveCached is the read-through loader for cache misses.
func (l *Live) resolveCached(_ context.Context, key string) (*Item, error) {
	gen, raw, _ := strings.Cut(key, "/")
	cat := l.current.Load()
	if cat == nil {
		return nil, ErrNotLoaded
	}
	if cat.Generation().String() != gen {
		return nil, errSuperseded
	}
	return cat.Resolve(raw)
}

// Reload loads a new generation and swaps it in. On failure the previous
// generation stays current and the error is returned.
func (l *Live) Reload(ctx context.Context) error {
	l.reload.Lock()
	defer l.reload.Unlock()

	ctx, span := l.tracer.Start(ctx, tracing.SpanCatalogReload)
	defer span.End()

	prev := l.current.Load()
	outcome := Reload{Previous: prev.Generation(), Generation: prev.Generation(), Size: prev.Size()}

	next, err := l.loader.Load(ctx)
	if err != nil {
		outcome.Err = err
		tracing.RecordError(span, err)
		log.ErrorErr(log.CatCatalog, "reload failed, keeping previous generation", err, "generation", prev.Generation())
		l.broker.Publish(pubsub.ReloadedEvent, outcome)
		return errors.Wrap(err, "reload catalog")
	}

	l.current.Store(next)
	l.lookup.Invalidate(ctx)

	outcome.Generation = next.Generation()
	outcome.Size = next.Size()
	span.SetAttributes(attribute.String(tracing.AttrCatalogGeneration, next.Generation().String()))
	log.Info(log.CatCatalog, "catalog reloaded", "generation", next.Generation(), "previous", prev.Generation(), "items", next.Size())
	l.broker.Publish(pubsub.ReloadedEvent, outcome)
	return nil
}

// Run reloads on every signal from changes until ctx is cancelled or changes
// is closed. Reload failures are logged and published, not returned.
func (l *Live) Run(ctx context.Context, changes <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			_ = l.Reload(ctx)
		}
	}
}

// CacheStats reports lookup cache hits and misses.
func (l *Live) CacheStats() cachemanager.Stats {
	return l.cache.Stats()
}

// Close releases subscribers.
func (l *Live) Close() {
	l.broker.Close()
}
