package cmd

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/zjrosen/keystone/internal/catalog"
	"github.com/zjrosen/keystone/internal/flags"
	"github.com/zjrosen/keystone/internal/log"
	"github.com/zjrosen/keystone/internal/presentation"
	"github.com/zjrosen/keystone/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var lookups bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the catalog whenever its files change",
		Long: `Load the catalog, then watch the catalog directory and reload after every
burst of changes until interrupted.

A reload builds a complete new generation. When it fails, the problems are
printed and the previous generation stays in service.

With --lookups, keys read from stdin (one per line) are resolved against
the generation serving at that moment.

Examples:
  keystone watch
  keystone watch -o json
  echo core:fire | keystone watch --lookups`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := &syncWriter{w: cmd.OutOrStdout()}
			cmd.SetOut(out)
			formatter, err := a.formatter(cmd)
			if err != nil {
				return err
			}

			loader, stopEvents, err := a.loader(ctx)
			if err != nil {
				return err
			}
			defer stopEvents()

			live, err := catalog.NewLive(ctx, loader, catalog.LiveConfig{
				CacheTTL:             a.cfg.Cache.TTL,
				CacheCleanupInterval: a.cfg.Cache.CleanupInterval,
				SkipCache:            a.flags.Enabled(flags.FlagBypassLookupCache),
			})
			if err != nil {
				_ = formatter.FormatCheck(presentation.FromCheck(nil, err))
				return errors.Mark(errors.Wrap(err, "initial load"), errReported)
			}
			defer live.Close()

			w, err := watcher.New(watcher.Config{
				Dir:         a.cfg.CatalogDir,
				Extensions:  catalog.Extensions,
				DebounceDur: a.cfg.Watch.Debounce,
			})
			if err != nil {
				return err
			}
			changes, err := w.Start()
			if err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()

			if err := formatter.FormatCheck(presentation.FromCheck(live.Current(), nil)); err != nil {
				return err
			}

			reloads := live.Subscribe(ctx)
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for event := range reloads {
					_ = formatter.FormatReload(presentation.FromReload(event.Payload))
				}
			}()
			if lookups {
				go resolveLines(ctx, live, cmd.InOrStdin(), formatter)
			}

			err = live.Run(ctx, changes)
			live.Close()
			wg.Wait()

			stats := live.CacheStats()
			log.Info(log.CatCLI, "watch stopped", "generation", live.Current().Generation(),
				"cache_hits", stats.Hits, "cache_misses", stats.Misses)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&lookups, "lookups", false, "resolve keys read from stdin, one per line")
	return cmd
}

// resolveLines resolves each non-empty line of r until r ends or ctx is done.
func resolveLines(ctx context.Context, live *catalog.Live, r io.Reader, formatter *presentation.Formatter) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		it, err := live.Resolve(ctx, raw)
		if err != nil {
			_ = formatter.FormatCheck(presentation.FromCheck(nil, err))
			continue
		}
		_ = formatter.FormatItem(presentation.FromItem(it))
	}
}

// syncWriter serializes writes from the reload and lookup goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
