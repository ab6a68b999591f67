package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lmittmann/tint"
	"github.com/prior-it/tweb/audit"
	"github.com/prior-it/tweb/config"
	"github.com/prior-it/tweb/pages"
	"github.com/prior-it/tweb/server"
)

// App contains every component of a running server, wired together from a single configuration.
type App struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Resolver *pages.Resolver
	Cache    *pages.Cache
	Composer *server.Composer
	Router   *server.Router
	Server   *server.Server

	watcher *pages.Watcher
	sink    audit.Sink
}

// New initialises logging, Sentry (if enabled in config), the page cache and the server.
// The root document must be an existing regular file.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		panic("You need to supply a config.Config value to bootstrap a new server")
	}

	logger := createLogger(cfg, os.Stdout)

	if cfg.Sentry.Enabled {
		initSentry(logger, cfg)
	}

	if err := ValidateRoot(cfg.Pages.Root); err != nil {
		return nil, err
	}

	resolver := pages.NewResolver(cfg.Pages.Dir, cfg.Pages.Root, cfg.Pages.Extension)
	cache := pages.NewCache(
		resolver,
		pages.NewGoldmark(),
		pages.WithLiveMode(cfg.Pages.Live),
		pages.WithIndent(cfg.Pages.Indent),
		pages.WithLogger(logger),
	)
	composer := server.NewComposer(
		resolver,
		cache,
		server.WithDescriptionFile(inDir(resolver.Dir(), cfg.Pages.Description)),
		server.WithComposerLogger(logger),
	)
	assetDir := cfg.Assets.Dir
	if len(assetDir) == 0 {
		assetDir = resolver.Dir()
	}
	router := server.NewRouter(
		composer,
		server.WithWhitelist(cfg.Assets.Whitelist...),
		server.WithAssetDir(assetDir),
		server.WithChunkSize(cfg.Assets.ChunkSize),
		server.WithRouterLogger(logger),
	)

	app := &App{
		Cfg:      cfg,
		Logger:   logger,
		Resolver: resolver,
		Cache:    cache,
		Composer: composer,
		Router:   router,
		Server:   server.New(router, cfg).WithLogger(logger),
	}

	if cfg.Pages.Watch {
		if cfg.Pages.Live {
			logger.Info("Live mode is on, the file watcher is not needed")
		} else {
			watcher, err := pages.NewWatcher(cache, time.Duration(cfg.Tools.Debounce)*time.Millisecond, logger)
			if err != nil {
				return nil, err
			}
			app.watcher = watcher
		}
	}

	if cfg.Audit.Enabled {
		sink, err := audit.New(ctx, cfg.Audit)
		if err != nil {
			return nil, fmt.Errorf("cannot open the audit log: %w", err)
		}
		app.sink = sink
		app.Server.WithAuditor(sink)
	}

	return app, nil
}

// Run serves requests until ctx is cancelled or the process is interrupted, and releases all
// resources afterwards. If no listener is provided, one is created on the configured address.
func (app *App) Run(ctx context.Context, listener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if app.watcher != nil {
		go func() {
			if err := app.watcher.Run(ctx); err != nil {
				app.Logger.Error("File watcher stopped", "error", err)
			}
		}()
	}

	if app.Cfg.Pages.Live {
		app.Logger.Info("Live mode is on, pages are regenerated on every request")
	}
	app.Logger.Info("Listening on " + app.Cfg.BaseURL())

	err := app.Server.Start(ctx, listener)
	stats := app.Cache.Stats()
	app.Logger.Debug("Server stopped",
		"pages", stats.Entries,
		"hits", stats.Hits,
		"misses", stats.Misses,
		"renders", stats.Renders,
		"failed", stats.Failed,
	)
	return errors.Join(err, app.Close())
}

// Close releases the file watcher and the audit log. It is called by Run, you only need it if Run
// is never called.
func (app *App) Close() error {
	var errs []error
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cannot close the file watcher: %w", err))
		}
	}
	if app.sink != nil {
		sink := app.sink
		app.sink = nil
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cannot close the audit log: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ValidateRoot checks that the root document exists and is a regular file.
func ValidateRoot(path string) error {
	if len(path) == 0 {
		return errors.New("no root document given")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot open root document %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("root document %q is not a regular file", path)
	}
	return nil
}

// inDir resolves relative paths against dir. Empty paths stay empty.
func inDir(dir string, path string) string {
	if len(path) == 0 || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func createLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var logger *slog.Logger
	addSource := cfg.Log.Verbose && cfg.App.Debug
	switch cfg.Log.Format {
	case config.LogFormatJSON:
		logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     cfg.Log.Level.ToSlog(),
			AddSource: addSource,
		}))
	default:
		logger = slog.New(tint.NewHandler(w, &tint.Options{
			Level:      cfg.Log.Level.ToSlog(),
			AddSource:  addSource,
			TimeFormat: time.TimeOnly,
			NoColor:    len(os.Getenv("NO_COLOR")) > 0,
		}))
	}
	slog.SetDefault(logger)
	return logger
}

func initSentry(logger *slog.Logger, cfg *config.Config) {
	logger.Debug("Trying to initialise Sentry")
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Debug:            cfg.App.Debug,
		AttachStacktrace: true,
		SampleRate:       cfg.Sentry.SampleRate,
		EnableTracing:    cfg.Sentry.TracesRate > 0,
		TracesSampleRate: cfg.Sentry.TracesRate,
		ServerName:       cfg.App.Name,
		Release:          cfg.App.Version,
		Environment:      string(cfg.App.Env),
	}); err != nil {
		logger.Error("Sentry initialization failed", "error", err)
	} else {
		logger.Debug("Sentry initialised")
	}
}
