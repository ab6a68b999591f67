package pages

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// Watcher marks cached pages stale whenever their source file changes on disk.
// Changes are collected and flushed to the cache after a debounce delay, so an editor that
// writes a file several times in a row only causes a single regeneration.
type Watcher struct {
	cache     *Cache
	watcher   *fsnotify.Watcher
	debouncer func(f func())
	logger    *slog.Logger
	extension string

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewWatcher creates a watcher for the page directory and the directory of the root document.
func NewWatcher(cache *Cache, delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot create watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	dirs := []string{cache.resolver.Dir()}
	if root := cache.resolver.Root(); len(root) > 0 {
		dirs = append(dirs, filepath.Dir(root))
	}
	var added []string
	for _, dir := range dirs {
		abs := absPath(dir)
		if slices.Contains(added, abs) {
			continue
		}
		if err := fsw.Add(abs); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("cannot add directory %q to watcher: %w", dir, err)
		}
		logger.Debug("Watching directory", "dir", abs)
		added = append(added, abs)
	}

	return &Watcher{
		cache:     cache,
		watcher:   fsw,
		debouncer: debounce.New(delay),
		logger:    logger,
		extension: cache.resolver.extension,
		pending:   make(map[string]struct{}),
	}, nil
}

// Run processes file events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.queue(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	if strings.HasSuffix(event.Name, w.extension) {
		return true
	}
	root := w.cache.resolver.Root()
	return len(root) > 0 && absPath(root) == absPath(event.Name)
}

func (w *Watcher) queue(path string) {
	w.mu.Lock()
	w.pending[path] = struct{}{}
	w.mu.Unlock()
	w.debouncer(w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for path := range pending {
		if count := w.cache.MarkStale(path); count > 0 {
			w.logger.Info("Source changed, page will be regenerated", "path", path, "pages", count)
		}
	}
}

// Close stops watching. Run returns once the watcher is closed.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
