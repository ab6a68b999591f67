package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/prior-it/tweb/config"
)

// NewHandler mounts router on a chi mux so that it can be served by net/http.
// Every path is dispatched exactly like a raw request line would be. The auditor is optional.
func NewHandler(router *Router, cfg *config.Config, auditor Auditor) http.Handler {
	mux := chi.NewMux()
	mux.Use(
		middleware.RealIP,
		HTTPLogger(cfg),
	)
	if cfg.Sentry.Enabled {
		sentryHandler := sentryhttp.New(sentryhttp.Options{
			Repanic:         true,
			WaitForDelivery: true,
			Timeout:         5 * time.Second, //nolint:mnd
		})
		mux.Use(sentryHandler.Handle)
	}
	if cfg.App.Debug || cfg.Pages.Live {
		mux.Use(middleware.NoCache)
	}
	if cfg.App.RequestTimeout > 0 {
		mux.Use(middleware.Timeout(time.Duration(cfg.App.RequestTimeout) * time.Second))
	}
	if auditor != nil {
		mux.Use(AuditMiddleware(auditor))
	}
	mux.Handle("/*", Handler(router))
	return mux
}

// Handler adapts router to a [net/http.HandlerFunc]. The request line is rebuilt from the method
// and the raw request URI, the protocol version was already validated by net/http.
func Handler(router *Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ctx = WithPeer(ctx, r.RemoteAddr)
		line := fmt.Sprintf("%s %s %s", r.Method, r.URL.RequestURI(), protocol)

		req := NewRequest(ctx, line, httplog.LogEntry(r.Context()))
		response := router.Dispatch(req)
		httplog.LogEntrySetField(r.Context(), "outcome", slog.StringValue(req.Outcome.String()))
		writeResponse(w, r, response)
	}
}

func writeResponse(w http.ResponseWriter, r *http.Request, response Response) {
	for _, field := range response.Header {
		w.Header().Set(field.Name, field.Value)
	}
	render.Status(r, response.StatusCode)
	if response.Chunked() {
		// net/http picks the framing itself
		w.WriteHeader(response.StatusCode)
		_, _ = w.Write(response.Body)
		return
	}
	render.HTML(w, r, string(response.Body))
}

func (server *Server) serveHTTP(ctx context.Context, listener net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(server.cfg.App.RequestTimeout) * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	shutdownDone := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(shutdownDone)
		ctxShutdown, cancel := context.WithTimeout(
			context.WithoutCancel(ctx),
			time.Duration(server.cfg.App.ShutdownTimeout)*time.Second,
		)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			server.logger.Warn("Cannot shut down http server", "error", err)
		}
	})

	err := srv.Serve(listener)
	if !stop() {
		// Shutdown was triggered by ctx, wait for in-flight requests
		<-shutdownDone
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
