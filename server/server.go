package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/textproto"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/prior-it/tweb/config"
)

// MaxRequestBytes bounds the request line and header block of a single connection.
const MaxRequestBytes = 64 << 10

// Auditor records the address of every client that connects.
type Auditor interface {
	Record(ctx context.Context, ip net.IP, at time.Time) error
}

// Server accepts connections and answers exactly one request per connection.
type Server struct {
	router  *Router
	cfg     *config.Config
	logger  *slog.Logger
	auditor Auditor
	slots   chan struct{}
	wg      sync.WaitGroup
}

// New creates a new server that dispatches requests with router.
func New(router *Router, cfg *config.Config) *Server {
	return &Server{
		router: router,
		cfg:    cfg,
		logger: slog.Default(),
		slots:  make(chan struct{}, max(1, cfg.App.MaxConnections)),
	}
}

func (server *Server) WithLogger(logger *slog.Logger) *Server {
	server.logger = logger
	return server
}

// WithAuditor records every accepted connection in auditor.
func (server *Server) WithAuditor(auditor Auditor) *Server {
	server.auditor = auditor
	return server
}

// Start runs the server until ctx is cancelled or the process receives SIGINT or SIGTERM.
// If no listener is provided, a new TCP listener will be created on the configured host and port.
// In-flight connections get the configured shutdown timeout to finish.
func (server *Server) Start(ctx context.Context, listener net.Listener) error {
	// Handle OS signals to cancel the context
	ctxServer, stopSignal := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignal()

	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", server.cfg.Addr())
		if err != nil {
			return fmt.Errorf("cannot listen on %v: %w", server.cfg.Addr(), err)
		}
	}

	var handler http.Handler
	if server.cfg.App.Mode == config.ServeModeHTTP {
		handler = NewHandler(server.router, server.cfg, server.auditor)
	}

	errorCh := make(chan error, 1)
	go func() {
		server.logger.Info("Starting server",
			"url", server.cfg.BaseURL(),
			"host", listener.Addr().String(),
			"mode", server.cfg.App.Mode,
		)
		var err error
		if handler != nil {
			err = server.serveHTTP(ctxServer, listener, handler)
		} else {
			err = server.Serve(ctxServer, listener)
		}
		errorCh <- err
		close(errorCh)
	}()

	var errServer error
	select {
	case errServer = <-errorCh:
	case <-ctxServer.Done():
		server.logger.Info("Server interrupt received")
		errServer = <-errorCh
	}

	server.Shutdown(context.WithoutCancel(ctx))
	return errServer
}

// Serve accepts connections on listener until it is closed or ctx is cancelled.
// Every connection is handled on its own goroutine, at most app.maxconnections at a time.
func (server *Server) Serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()
	// In-flight connections are bounded by their deadline, not by ctx
	connCtx := context.WithoutCancel(ctx)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				server.logger.Warn("Temporary accept error", "error", err)
				continue
			}
			return fmt.Errorf("cannot accept connection: %w", err)
		}

		select {
		case server.slots <- struct{}{}:
		case <-ctx.Done():
			_ = conn.Close()
			return nil
		}
		server.wg.Add(1)
		go func() {
			defer server.wg.Done()
			defer func() { <-server.slots }()
			server.ServeConn(connCtx, conn)
		}()
	}
}

// ServeConn reads one request from conn, writes the response and closes the connection.
func (server *Server) ServeConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	peer := conn.RemoteAddr().String()
	id := uuid.NewString()
	ctx = WithPeer(WithRequestID(ctx, id), peer)
	ctx = sentry.SetHubOnContext(ctx, sentry.CurrentHub().Clone())
	logger := server.logger.With("request_id", id, "peer", peer)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic while handling connection", "panic", r)
			if hub := sentry.GetHubFromContext(ctx); hub != nil {
				hub.Recover(r)
			}
		}
	}()

	logger.Info("Connection established")
	server.audit(ctx, conn.RemoteAddr(), logger)

	if timeout := server.cfg.App.RequestTimeout; timeout > 0 {
		deadline := time.Now().Add(time.Duration(timeout) * time.Second)
		if err := conn.SetDeadline(deadline); err != nil {
			logger.Warn("Cannot set connection deadline", "error", err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	line, err := ReadRequest(conn)
	if errors.Is(err, io.EOF) {
		logger.Debug("Connection closed before a request was received")
		return
	} else if err != nil {
		logger.Warn("Cannot read request", "error", err)
		return
	}

	response := server.router.Route(ctx, line)
	if _, err := response.WriteTo(conn); err != nil {
		logger.Warn("Cannot write response", "error", err)
		return
	}
	logger.Debug("Response sent", "status", response.StatusCode)
}

// Shutdown waits for in-flight connections up to the configured shutdown timeout and flushes any
// buffered error reports. You generally don't need to call this manually.
func (server *Server) Shutdown(ctx context.Context) {
	timeout := time.Duration(server.cfg.App.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(ctx, timeout)
	defer cancelShutdown()

	done := make(chan struct{})
	go func() {
		server.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctxShutdown.Done():
		server.logger.Warn("Shutdown timeout reached, dropping in-flight connections")
	}

	sentryTimeout := max(0, time.Duration(server.cfg.App.ShutdownTimeout-1))
	sentry.Flush(sentryTimeout * time.Second)
}

func (server *Server) audit(ctx context.Context, addr net.Addr, logger *slog.Logger) {
	if server.auditor == nil {
		return
	}
	ip := peerIP(addr.String())
	if ip == nil {
		logger.Debug("Peer has no ip address, skipping audit")
		return
	}
	if err := server.auditor.Record(ctx, ip, time.Now()); err != nil {
		logger.Warn("Cannot record connection", "error", err)
	}
}

// ReadRequest reads the request line from r and discards the header block that follows it.
// Empty lines before the request line are skipped. io.EOF is returned if the connection was
// closed before a request line was received.
func ReadRequest(r io.Reader) (string, error) {
	reader := textproto.NewReader(bufio.NewReader(io.LimitReader(r, MaxRequestBytes)))
	var line string
	for len(line) == 0 {
		var err error
		line, err = reader.ReadLine()
		if err != nil {
			return "", err
		}
	}
	for {
		header, err := reader.ReadLine()
		if err != nil || len(header) == 0 {
			break
		}
	}
	return line, nil
}

func peerIP(addr string) net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return net.ParseIP(host)
}
