package cmd

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/keystone/internal/catalog"
	"github.com/zjrosen/keystone/internal/flags"
	"github.com/zjrosen/keystone/internal/log"
	"github.com/zjrosen/keystone/internal/pubsub"
	"github.com/zjrosen/keystone/internal/registry"
	"github.com/zjrosen/keystone/internal/tracing"
)

// loader builds a catalog loader for the configured directory. With the
// registry-events flag, registry lifecycle events are logged; stop drains
// them and must be called once the loader is no longer used.
func (a *app) loader(ctx context.Context) (_ *catalog.Loader, stop func(), err error) {
	dir := a.cfg.CatalogDir
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, errors.WithHint(errors.Wrapf(err, "catalog directory %s", dir),
			"set catalog_dir in the config or pass --catalog-dir")
	}
	if !info.IsDir() {
		return nil, nil, errors.Newf("catalog directory %s is not a directory", dir)
	}

	stop = func() {}
	opts := []catalog.LoaderOption{catalog.WithTracer(a.tracing.Tracer())}
	if a.flags.Enabled(flags.FlagRegistryEvents) {
		broker := pubsub.NewBroker[registry.Event]()
		events := broker.Subscribe(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			log.Forward(ctx, events)
		}()
		stop = func() {
			broker.Close()
			<-done
			if n := broker.Dropped(); n > 0 {
				log.Warn(log.CatRegistry, "registry events dropped", "count", n)
			}
		}
		opts = append(opts, catalog.WithObserver(pubsub.Observe(broker)))
	}
	return catalog.NewLoader(os.DirFS(dir), opts...), stop, nil
}

// load reads the catalog once inside a span named after the command.
func (a *app) load(cmd *cobra.Command) (_ *catalog.Catalog, err error) {
	ctx, span := a.tracing.Tracer().Start(cmd.Context(), "cli."+cmd.Name(), trace.WithAttributes(
		attribute.String(tracing.AttrCatalogDir, a.cfg.CatalogDir),
	))
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	loader, stop, err := a.loader(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()
	return loader.Load(ctx)
}
