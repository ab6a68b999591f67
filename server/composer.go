package server

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/a-h/templ"
	"github.com/prior-it/tweb/components"
	"github.com/prior-it/tweb/core"
	"github.com/prior-it/tweb/pages"
)

// DefaultDescriptionFile is looked up in the page directory unless another file is configured.
const DefaultDescriptionFile = "description.txt"

// Composer wraps rendered pages in the full HTML document.
type Composer struct {
	resolver    *pages.Resolver
	cache       *pages.Cache
	logger      *slog.Logger
	description string
	stylesheet  string
	warned      atomic.Bool
}

type ComposerOption func(composer *Composer)

// WithDescriptionFile sets the file whose trimmed contents are used as the meta description.
// An empty path disables the description.
func WithDescriptionFile(path string) ComposerOption {
	return func(composer *Composer) {
		composer.description = path
	}
}

// WithStylesheet overrides the embedded stylesheet. An empty stylesheet omits the style element.
func WithStylesheet(css string) ComposerOption {
	return func(composer *Composer) {
		composer.stylesheet = css
	}
}

func WithComposerLogger(logger *slog.Logger) ComposerOption {
	return func(composer *Composer) {
		composer.logger = logger
	}
}

func NewComposer(resolver *pages.Resolver, cache *pages.Cache, options ...ComposerOption) *Composer {
	composer := &Composer{
		resolver:    resolver,
		cache:       cache,
		logger:      slog.Default(),
		description: filepath.Join(resolver.Dir(), DefaultDescriptionFile),
		stylesheet:  components.Stylesheet(),
	}
	for _, option := range options {
		option(composer)
	}
	return composer
}

// Compose builds the response for the page with the given key.
// Pages that do not exist get the fixed 404 document, the cache is not consulted for them.
// Render failures are returned as errors wrapping [core.ErrRenderFailure].
func (c *Composer) Compose(ctx context.Context, key core.PageKey) (Response, error) {
	if !c.resolver.Exists(key) {
		return c.NotFound(ctx)
	}
	page, err := c.cache.GetOrRender(ctx, key)
	if err != nil {
		return Response{}, err
	}
	body, err := c.document(ctx, page.Title, page.Fragment)
	if err != nil {
		return Response{}, err
	}
	return newPageResponse(http.StatusOK, "OK", body), nil
}

// NotFound returns the 404 document. It is the same for every key.
func (c *Composer) NotFound(ctx context.Context) (Response, error) {
	body, err := c.document(
		ctx,
		"404",
		pages.Indent(errorFragment(http.StatusNotFound, "Page not found."), pages.DefaultIndent),
	)
	if err != nil {
		return Response{}, err
	}
	return newPageResponse(http.StatusNotFound, ReasonPageNotFound, body), nil
}

// Description returns the trimmed contents of the description file.
// A missing file results in an empty description, which is logged as a warning once.
func (c *Composer) Description() string {
	if len(c.description) == 0 {
		return ""
	}
	data, err := os.ReadFile(c.description)
	if err != nil {
		err = fmt.Errorf("%w: %w", core.ErrDescriptionMissing, err)
		if c.warned.CompareAndSwap(false, true) {
			c.logger.Warn("Using an empty page description", "path", c.description, "error", err)
		} else {
			c.logger.Debug("Using an empty page description", "path", c.description, "error", err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (c *Composer) document(ctx context.Context, title string, fragment string) ([]byte, error) {
	return renderDocument(ctx, components.DocumentProps{
		Title:       title,
		Description: c.Description(),
		Stylesheet:  c.stylesheet,
	}, fragment)
}

func renderDocument(ctx context.Context, props components.DocumentProps, fragment string) ([]byte, error) {
	var buf bytes.Buffer
	ctx = templ.WithChildren(ctx, templ.Raw(fragment))
	if err := components.Document(props).Render(ctx, &buf); err != nil {
		return nil, fmt.Errorf("cannot render document %q: %w", props.Title, err)
	}
	return buf.Bytes(), nil
}

func errorFragment(code int, message string) string {
	return fmt.Sprintf("<h1>Error: %d</h1><p>%s</p>", code, message)
}
