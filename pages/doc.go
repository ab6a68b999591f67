/*
Package pages turns markdown source files into cached HTML fragments.

A [Resolver] maps page keys to source files, a [Renderer] converts markdown to HTML and a
[Cache] decides whether a page has to be (re)rendered or can be served from memory.

Cache entries are keyed by page key and live for the lifetime of the process. In live mode
every lookup regenerates the page; otherwise a page is rendered once and reused until a
[Watcher] reports that its source file changed.

Basic example:

	resolver := pages.NewResolver(".", "README.md", ".md")
	cache := pages.NewCache(resolver, pages.NewGoldmark())

	page, err := cache.GetOrRender(ctx, core.PageKey("about"))
	if err != nil {
		return err
	}
	fmt.Println(page.Title, page.Fragment)
*/
package pages
