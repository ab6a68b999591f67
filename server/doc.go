/*
Package server answers requests for markdown pages over a minimal HTTP/1.1 subset.

A [Server] accepts TCP connections and reads one request line per connection. The [Router]
either serves a whitelisted static asset with [EncodeAsset] or asks the [Composer] for the page
document, which comes from a [github.com/prior-it/tweb/pages.Cache]. The response is written
and the connection is closed.

Basic example:

	resolver := pages.NewResolver(".", "README.md", core.MarkdownExtension)
	cache := pages.NewCache(resolver, pages.NewGoldmark())
	router := server.NewRouter(server.NewComposer(resolver, cache))

	srv := server.New(router, cfg)
	if err := srv.Start(ctx, nil); err != nil {
		log.Fatal(err)
	}

The same router can be mounted on net/http with [NewHandler] when app.mode is "http".
*/
package server
