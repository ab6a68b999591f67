package server

import (
	"context"
	"log/slog"
	"path/filepath"
)

// Router decides whether a request is served as a static asset or as a page.
type Router struct {
	composer     *Composer
	logger       *slog.Logger
	errorHandler ErrorHandler
	assetDir     string
	whitelist    map[string]struct{}
	chunkSize    int
}

type RouterOption func(router *Router)

// WithWhitelist sets the names that are served as static assets. Any other key is a page.
func WithWhitelist(names ...string) RouterOption {
	return func(router *Router) {
		router.whitelist = make(map[string]struct{}, len(names))
		for _, name := range names {
			router.whitelist[name] = struct{}{}
		}
	}
}

// WithAssetDir sets the directory that whitelisted assets are read from.
func WithAssetDir(dir string) RouterOption {
	return func(router *Router) {
		router.assetDir = dir
	}
}

func WithChunkSize(size int) RouterOption {
	return func(router *Router) {
		router.chunkSize = size
	}
}

func WithErrorHandler(errorHandler ErrorHandler) RouterOption {
	return func(router *Router) {
		router.errorHandler = errorHandler
	}
}

func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(router *Router) {
		router.logger = logger
	}
}

// NewRouter creates a router that serves pages through composer and whitelists "favicon.ico"
// from the current directory by default.
func NewRouter(composer *Composer, options ...RouterOption) *Router {
	router := &Router{
		composer:     composer,
		logger:       slog.Default(),
		errorHandler: DefaultErrorHandler,
		assetDir:     ".",
		chunkSize:    DefaultChunkSize,
	}
	WithWhitelist("favicon.ico")(router)
	for _, option := range options {
		option(router)
	}
	return router
}

// Route parses a raw request line and returns the response for it. It never fails: every error
// is turned into a response by the router's error handler.
func (r *Router) Route(ctx context.Context, line string) Response {
	return r.Dispatch(NewRequest(ctx, line, r.logger))
}

// Dispatch parses req and serves it.
func (r *Router) Dispatch(req *Request) Response {
	if err := req.Parse(); err != nil {
		req.Outcome = OutcomeRejected
		return r.errorHandler(req, err)
	}

	if r.IsWhitelisted(string(req.Key)) {
		req.Outcome = OutcomeAsset
		path := filepath.Join(r.assetDir, string(req.Key))
		req.Debug("Serving asset", "path", path)
		response, err := EncodeAsset(path, r.chunkSize)
		if err != nil {
			return r.errorHandler(req, err)
		}
		return response
	}

	req.Outcome = OutcomePage
	response, err := r.composer.Compose(req.Context(), req.Key)
	if err != nil {
		return r.errorHandler(req, err)
	}
	req.Debug("Serving page", "status", response.StatusCode)
	return response
}

// IsWhitelisted returns true if key is served as a static asset.
func (r *Router) IsWhitelisted(key string) bool {
	_, ok := r.whitelist[key]
	return ok
}
