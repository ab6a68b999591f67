package server

import (
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/prior-it/tweb/config"
)

// HTTPLogger is middleware that will log HTTP requests. It includes the chi RequestID and Recoverer
// middleware.
func HTTPLogger(cfg *config.Config) func(http.Handler) http.Handler {
	sourceFieldName := ""
	if cfg.Log.Verbose || cfg.App.Debug {
		sourceFieldName = "source"
	}
	logger := httplog.NewLogger(cfg.App.Name, httplog.Options{
		LogLevel: cfg.Log.Level.ToSlog(),
		JSON:     cfg.Log.Format == config.LogFormatJSON,
		Concise:  !cfg.Log.Verbose,
		Tags: map[string]string{
			"version": cfg.App.Version,
			"env":     string(cfg.App.Env),
		},
		RequestHeaders:  cfg.Log.Verbose,
		ResponseHeaders: cfg.Log.Verbose,
		QuietDownRoutes: []string{
			"/favicon.ico",
		},
		QuietDownPeriod: 10 * time.Second, //nolint:mnd
		SourceFieldName: sourceFieldName,
	})
	return httplog.RequestLogger(logger)
}

// AuditMiddleware records the client address of every request in auditor.
// Place it after middleware.RealIP to record the forwarded address instead of the proxy's.
func AuditMiddleware(auditor Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := peerIP(r.RemoteAddr); ip != nil {
				if err := auditor.Record(r.Context(), ip, time.Now()); err != nil {
					httplog.LogEntry(r.Context()).Warn("Cannot record connection", "error", err)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
