package pages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prior-it/tweb/core"
	"golang.org/x/sync/singleflight"
)

// DefaultIndent is prepended to every line of a rendered fragment.
const DefaultIndent = "    "

// Page is a rendered markdown document.
type Page struct {
	Key        core.PageKey
	Path       string
	Title      string
	Fragment   string
	RenderedAt time.Time
}

type entry struct {
	page  Page
	stale bool
}

// Stats contains counters for a [Cache].
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
	Renders int64
	Failed  int64
}

// Cache owns the mapping from page keys to rendered pages.
//
// Entries are never evicted, they are only replaced by a newer render of the same key.
// Lookups and renders are safe for concurrent use: the decision to render or reuse is made
// inside a singleflight group per key, so concurrent requests for the same key share a
// single render.
type Cache struct {
	resolver *Resolver
	renderer Renderer
	logger   *slog.Logger
	live     bool
	indent   string

	mu      sync.Mutex
	entries map[core.PageKey]*entry
	group   singleflight.Group

	hits    atomic.Int64
	misses  atomic.Int64
	renders atomic.Int64
	failed  atomic.Int64
}

type CacheOption func(cache *Cache)

// WithLiveMode makes the cache regenerate pages on every lookup.
func WithLiveMode(live bool) CacheOption {
	return func(cache *Cache) {
		cache.live = live
	}
}

// WithIndent overrides the indentation unit that is prepended to every fragment line.
func WithIndent(indent string) CacheOption {
	return func(cache *Cache) {
		cache.indent = indent
	}
}

func WithLogger(logger *slog.Logger) CacheOption {
	return func(cache *Cache) {
		cache.logger = logger
	}
}

func NewCache(resolver *Resolver, renderer Renderer, options ...CacheOption) *Cache {
	cache := &Cache{
		resolver: resolver,
		renderer: renderer,
		logger:   slog.Default(),
		indent:   DefaultIndent,
		entries:  make(map[core.PageKey]*entry),
	}
	for _, option := range options {
		option(cache)
	}
	return cache
}

// IsLive returns true if every lookup regenerates its page.
func (cache *Cache) IsLive() bool {
	return cache.live
}

// GetOrRender returns the rendered page for key. Without live mode a previously rendered page is
// reused, otherwise the page is rendered and stored before it is returned.
//
// Failed renders return an error wrapping [core.ErrRenderFailure] and leave the cache untouched.
// If ctx is cancelled while waiting for another goroutine's render, ctx.Err() is returned but the
// render itself continues and is stored for later requests.
func (cache *Cache) GetOrRender(ctx context.Context, key core.PageKey) (Page, error) {
	if page, ok := cache.lookup(key); ok {
		cache.hits.Add(1)
		cache.logger.Debug("Serving from cache.", "page", key.String())
		return page, nil
	}
	cache.misses.Add(1)

	result := cache.group.DoChan(string(key), func() (any, error) {
		// Another flight may have stored the page between our lookup and this one
		if page, ok := cache.lookup(key); ok {
			return page, nil
		}
		page, err := cache.render(key)
		if err != nil {
			cache.failed.Add(1)
			return Page{}, err
		}
		cache.store(page)
		return page, nil
	})

	select {
	case res := <-result:
		if res.Err != nil {
			return Page{}, res.Err
		}
		return res.Val.(Page), nil
	case <-ctx.Done():
		return Page{}, ctx.Err()
	}
}

// Get returns the cached page for key without rendering it.
func (cache *Cache) Get(key core.PageKey) (Page, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	e, ok := cache.entries[key]
	if !ok {
		return Page{}, false
	}
	return e.page, true
}

// MarkStale flags every entry whose source file is path, so that its next lookup regenerates it.
// The entries are kept until then. It returns the number of entries that were flagged.
func (cache *Cache) MarkStale(path string) int {
	target := absPath(path)
	cache.mu.Lock()
	defer cache.mu.Unlock()
	count := 0
	for _, e := range cache.entries {
		if absPath(e.page.Path) == target {
			e.stale = true
			count++
		}
	}
	return count
}

// Stats returns a snapshot of the cache counters.
func (cache *Cache) Stats() Stats {
	cache.mu.Lock()
	entries := len(cache.entries)
	cache.mu.Unlock()
	return Stats{
		Entries: entries,
		Hits:    cache.hits.Load(),
		Misses:  cache.misses.Load(),
		Renders: cache.renders.Load(),
		Failed:  cache.failed.Load(),
	}
}

func (cache *Cache) lookup(key core.PageKey) (Page, bool) {
	if cache.live {
		return Page{}, false
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	e, ok := cache.entries[key]
	if !ok || e.stale {
		return Page{}, false
	}
	return e.page, true
}

func (cache *Cache) store(page Page) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[page.Key] = &entry{page: page}
}

func (cache *Cache) render(key core.PageKey) (Page, error) {
	if cache.live {
		cache.logger.Debug("Live mode is on. Regenerating HTML", "page", key.String())
	} else {
		cache.logger.Debug("Regenerating HTML", "page", key.String())
	}

	path := cache.resolver.Path(key)
	if len(path) == 0 {
		return Page{}, fmt.Errorf("%w: page %q has no source path", core.ErrRenderFailure, key)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return Page{}, fmt.Errorf("%w: cannot read %q: %w", core.ErrRenderFailure, path, err)
	}

	cache.renders.Add(1)
	html, err := cache.convert(source)
	if err != nil {
		return Page{}, fmt.Errorf("%w: cannot convert %q: %w", core.ErrRenderFailure, path, err)
	}

	return Page{
		Key:        key,
		Path:       path,
		Title:      TitleOrDefault(string(source)),
		Fragment:   Indent(string(html), cache.indent),
		RenderedAt: time.Now(),
	}, nil
}

// convert turns renderer panics into errors, singleflight re-panics them on a fresh goroutine.
func (cache *Cache) convert(source []byte) (html []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panicked: %v", r)
		}
	}()
	return cache.renderer.Render(source)
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
