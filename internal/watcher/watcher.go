// Package watcher provides file system watching with debouncing for catalog
// directories.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/keystone/internal/log"
)

// CatalogExtensions are the file extensions a catalog directory is read from.
var CatalogExtensions = []string{".yaml", ".yml", ".hcl"}

// Watcher monitors a catalog directory and signals when definition files change.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	dir        string
	extensions []string
	debounce   time.Duration
	onChange   chan struct{}
	done       chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	Dir         string
	Extensions  []string // defaults to CatalogExtensions
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		Extensions:  CatalogExtensions,
		DebounceDur: 300 * time.Millisecond,
	}
}

// New creates a new catalog directory watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}

	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = CatalogExtensions
	}

	return &Watcher{
		fsWatcher:  fsw,
		dir:        cfg.Dir,
		extensions: exts,
		debounce:   cfg.DebounceDur,
		onChange:   make(chan struct{}, 1),
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching the directory and every non-hidden subdirectory.
// Returns a channel that receives a signal after a burst of changes settles.
func (w *Watcher) Start() (<-chan struct{}, error) {
	if err := w.addTree(w.dir); err != nil {
		return nil, err
	}
	log.Debug(log.CatWatcher, "watching", "dir", w.dir, "debounce", w.debounce)

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// addTree watches root and the directories below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "watching directory %s", p)
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := w.fsWatcher.Add(p); err != nil {
			return errors.Wrapf(err, "watching directory %s", p)
		}
		return nil
	})
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.isNewDir(event) {
				if err := w.addTree(event.Name); err != nil {
					log.ErrorErr(log.CatWatcher, "watch new directory", err, "dir", event.Name)
				}
				// Files may have landed before the directory was watched.
				timer.Reset(w.debounce)
				continue
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			log.Debug(log.CatWatcher, "change", "file", event.Name, "op", event.Op)

			// Each relevant event restarts the quiet period.
			timer.Reset(w.debounce)

		case <-timer.C:
			// Non-blocking send - a pending signal already covers this change
			select {
			case w.onChange <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err, "dir", w.dir)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) isNewDir(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) || strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir()
}

// isRelevantEvent checks if the event should trigger a reload.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	base := filepath.Base(event.Name)
	// Editor swap and backup files
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(base)))
}
