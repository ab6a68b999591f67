package pages_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prior-it/tweb/pages"
	"github.com/prior-it/tweb/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache, renderer, dir := newCache(t, map[string]string{
		"index.md": "# Index",
		"about.md": "# About\n\nold",
	})

	watcher, err := pages.NewWatcher(cache, 20*time.Millisecond, nil)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	_, err = cache.GetOrRender(ctx, "about")
	require.NoError(t, err)
	_, err = cache.GetOrRender(ctx, "")
	require.NoError(t, err)

	t.Run("ok: changed source is regenerated", func(t *testing.T) {
		tests.WriteFile(t, dir, "about.md", "# About\n\nnew")

		assert.Eventually(t, func() bool {
			page, err := cache.GetOrRender(ctx, "about")
			return err == nil && strings.Contains(page.Fragment, "<p>new</p>")
		}, 2*time.Second, 25*time.Millisecond)
	})

	t.Run("ok: unrelated files are ignored", func(t *testing.T) {
		before := renderer.calls.Load()
		tests.WriteFile(t, dir, "notes.txt", "nothing to see")
		time.Sleep(100 * time.Millisecond)

		_, err := cache.GetOrRender(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, before, renderer.calls.Load())
	})

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after the context was cancelled")
	}
}
