package server_test

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prior-it/tweb/core"
	"github.com/prior-it/tweb/pages"
	"github.com/prior-it/tweb/server"
	"github.com/prior-it/tweb/tests"
)

type countingRenderer struct {
	calls atomic.Int64
	delay time.Duration
	inner pages.Renderer
}

func (r *countingRenderer) Render(source []byte) ([]byte, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.inner.Render(source)
}

type site struct {
	dir      string
	renderer *countingRenderer
	resolver *pages.Resolver
	cache    *pages.Cache
	composer *server.Composer
	router   *server.Router
}

type siteOptions struct {
	cache    []pages.CacheOption
	composer []server.ComposerOption
	router   []server.RouterOption
}

// newSite creates a page directory with index.md as its root document and a router serving it.
func newSite(t *testing.T, files map[string]string, options siteOptions) *site {
	t.Helper()
	dir := tests.Site(t, files)
	renderer := &countingRenderer{inner: pages.NewGoldmark()}
	resolver := pages.NewResolver(dir, filepath.Join(dir, "index.md"), core.MarkdownExtension)
	cache := pages.NewCache(resolver, renderer, options.cache...)
	composer := server.NewComposer(resolver, cache, options.composer...)
	routerOptions := append([]server.RouterOption{server.WithAssetDir(dir)}, options.router...)
	return &site{
		dir:      dir,
		renderer: renderer,
		resolver: resolver,
		cache:    cache,
		composer: composer,
		router:   server.NewRouter(composer, routerOptions...),
	}
}
