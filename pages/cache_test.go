package pages_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prior-it/tweb/core"
	"github.com/prior-it/tweb/pages"
	"github.com/prior-it/tweb/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRenderer wraps goldmark and counts how many times it was invoked.
type countingRenderer struct {
	calls atomic.Int64
	delay time.Duration
	inner pages.Renderer
}

func newCountingRenderer() *countingRenderer {
	return &countingRenderer{inner: pages.NewGoldmark()}
}

func (r *countingRenderer) Render(source []byte) ([]byte, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.inner.Render(source)
}

func newCache(t *testing.T, files map[string]string, options ...pages.CacheOption) (*pages.Cache, *countingRenderer, string) {
	t.Helper()
	dir := tests.Site(t, files)
	renderer := newCountingRenderer()
	resolver := pages.NewResolver(dir, filepath.Join(dir, "index.md"), core.MarkdownExtension)
	return pages.NewCache(resolver, renderer, options...), renderer, dir
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("ok: page is rendered, indented and titled", func(t *testing.T) {
		cache, _, dir := newCache(t, map[string]string{"index.md": "# Hello World\n\nSome *text*.\n"})

		page, err := cache.GetOrRender(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "Hello World", page.Title)
		assert.Equal(t, core.PageKey(""), page.Key)
		assert.Equal(t, filepath.Join(dir, "index.md"), page.Path)
		assert.Equal(
			t,
			"    <h1 id=\"hello-world\">Hello World</h1>\n    <p>Some <em>text</em>.</p>\n",
			page.Fragment,
		)
	})

	t.Run("ok: cached page is reused without rendering again", func(t *testing.T) {
		cache, renderer, _ := newCache(t, map[string]string{"about.md": "# About\n\nus"})

		first, err := cache.GetOrRender(ctx, "about")
		require.NoError(t, err)
		second, err := cache.GetOrRender(ctx, "about")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int64(1), renderer.calls.Load())
		stats := cache.Stats()
		assert.Equal(t, 1, stats.Entries)
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
	})

	t.Run("ok: cached page survives changes on disk", func(t *testing.T) {
		cache, _, dir := newCache(t, map[string]string{"about.md": "# About\n\nold"})

		first, err := cache.GetOrRender(ctx, "about")
		require.NoError(t, err)
		tests.WriteFile(t, dir, "about.md", "# About\n\nnew")
		second, err := cache.GetOrRender(ctx, "about")
		require.NoError(t, err)

		assert.Equal(t, first.Fragment, second.Fragment)
	})

	t.Run("ok: live mode renders on every call", func(t *testing.T) {
		cache, renderer, dir := newCache(
			t,
			map[string]string{"about.md": "# About\n\nold"},
			pages.WithLiveMode(true),
		)
		assert.True(t, cache.IsLive())

		first, err := cache.GetOrRender(ctx, "about")
		require.NoError(t, err)
		tests.WriteFile(t, dir, "about.md", "# Changed\n\nnew")
		second, err := cache.GetOrRender(ctx, "about")
		require.NoError(t, err)
		_, err = cache.GetOrRender(ctx, "about")
		require.NoError(t, err)

		assert.Equal(t, int64(3), renderer.calls.Load())
		assert.Contains(t, first.Fragment, "old")
		assert.Contains(t, second.Fragment, "new")
		assert.Equal(t, "Changed", second.Title)

		stored, ok := cache.Get("about")
		assert.True(t, ok)
		assert.Equal(t, second.Fragment, stored.Fragment)
	})

	t.Run("ok: keys with the same path have their own slot", func(t *testing.T) {
		cache, renderer, _ := newCache(t, map[string]string{"about.md": "# About"})

		_, err := cache.GetOrRender(ctx, "about")
		require.NoError(t, err)
		_, err = cache.GetOrRender(ctx, "about.md")
		require.NoError(t, err)

		assert.Equal(t, int64(2), renderer.calls.Load())
		assert.Equal(t, 2, cache.Stats().Entries)
	})

	t.Run("ok: fallback title", func(t *testing.T) {
		cache, _, _ := newCache(t, map[string]string{"plain.md": "Plain\n\ntext without heading"})

		page, err := cache.GetOrRender(ctx, "plain")
		require.NoError(t, err)
		assert.Equal(t, pages.DefaultTitle, page.Title)
	})

	t.Run("ok: custom indentation", func(t *testing.T) {
		cache, _, _ := newCache(t, map[string]string{"a.md": "text"}, pages.WithIndent("\t"))

		page, err := cache.GetOrRender(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "\t<p>text</p>\n", page.Fragment)
	})

	t.Run("err: missing source is a render failure", func(t *testing.T) {
		cache, _, _ := newCache(t, map[string]string{})

		_, err := cache.GetOrRender(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrRenderFailure)
		_, ok := cache.Get("missing")
		assert.False(t, ok, "a failed render should not create a cache entry")
		assert.Equal(t, int64(1), cache.Stats().Failed)
	})

	t.Run("err: renderer failure leaves the cache untouched", func(t *testing.T) {
		dir := tests.Site(t, map[string]string{"a.md": "# A"})
		fail := false
		renderer := pages.RenderFunc(func(source []byte) ([]byte, error) {
			if fail {
				return nil, errors.New("boom")
			}
			return []byte("<p>ok</p>"), nil
		})
		cache := pages.NewCache(
			pages.NewResolver(dir, "", core.MarkdownExtension),
			renderer,
			pages.WithLiveMode(true),
		)

		good, err := cache.GetOrRender(ctx, "a")
		require.NoError(t, err)

		fail = true
		_, err = cache.GetOrRender(ctx, "a")
		assert.ErrorIs(t, err, core.ErrRenderFailure)

		stored, ok := cache.Get("a")
		assert.True(t, ok)
		assert.Equal(t, good, stored)
	})

	t.Run("err: renderer panics are recovered", func(t *testing.T) {
		dir := tests.Site(t, map[string]string{"a.md": "# A"})
		cache := pages.NewCache(
			pages.NewResolver(dir, "", core.MarkdownExtension),
			pages.RenderFunc(func([]byte) ([]byte, error) { panic("renderer bug") }),
		)

		_, err := cache.GetOrRender(ctx, "a")
		assert.ErrorIs(t, err, core.ErrRenderFailure)
		assert.ErrorContains(t, err, "renderer bug")
	})

	t.Run("err: cancelled context while waiting", func(t *testing.T) {
		cache, renderer, _ := newCache(t, map[string]string{"slow.md": "# Slow"})
		renderer.delay = 200 * time.Millisecond

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := cache.GetOrRender(cancelled, "slow")
		assert.ErrorIs(t, err, context.Canceled)

		// The render itself still finishes and is stored
		page, err := cache.GetOrRender(ctx, "slow")
		require.NoError(t, err)
		assert.Equal(t, "Slow", page.Title)
		assert.Equal(t, int64(1), renderer.calls.Load())
	})
}

func TestCacheMarkStale(t *testing.T) {
	ctx := context.Background()
	cache, renderer, dir := newCache(t, map[string]string{"about.md": "# About\n\nold"})

	_, err := cache.GetOrRender(ctx, "about")
	require.NoError(t, err)
	_, err = cache.GetOrRender(ctx, "about.md")
	require.NoError(t, err)

	path := tests.WriteFile(t, dir, "about.md", "# About\n\nnew")
	assert.Equal(t, 2, cache.MarkStale(path))
	assert.Equal(t, 0, cache.MarkStale(filepath.Join(dir, "other.md")))

	page, err := cache.GetOrRender(ctx, "about")
	require.NoError(t, err)
	assert.Contains(t, page.Fragment, "new")
	assert.Equal(t, int64(3), renderer.calls.Load())

	// A regenerated entry is fresh again
	_, err = cache.GetOrRender(ctx, "about")
	require.NoError(t, err)
	assert.Equal(t, int64(3), renderer.calls.Load())
}

func TestCacheConcurrentRender(t *testing.T) {
	const requests = 32
	ctx := context.Background()
	cache, renderer, _ := newCache(t, map[string]string{"busy.md": "# Busy\n\npage"})
	renderer.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]pages.Page, requests)
	errs := make([]error, requests)
	start := make(chan struct{})
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = cache.GetOrRender(ctx, "busy")
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), renderer.calls.Load(), "concurrent requests should share one render")
	for i := range requests {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}
