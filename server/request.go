package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/prior-it/tweb/core"
)

// Outcome records how the router handled a request.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomePage
	OutcomeAsset
)

func (o Outcome) String() string {
	switch o {
	case OutcomePage:
		return "page"
	case OutcomeAsset:
		return "asset"
	default:
		return "rejected"
	}
}

// Request is the parsed request line of a single connection.
// It only lives for as long as the connection that it was read from.
type Request struct {
	ID      string
	Line    string
	Method  string
	Target  string
	Version string
	Key     core.PageKey
	Outcome Outcome
	Peer    string

	ctx    context.Context
	logger *slog.Logger
}

// NewRequest wraps a raw request line. The request ID and peer are taken from ctx when present,
// otherwise a new ID is generated. Call [Request.Parse] before using any of the parsed fields.
func NewRequest(ctx context.Context, line string, logger *slog.Logger) *Request {
	if logger == nil {
		logger = slog.Default()
	}
	id := RequestID(ctx)
	if len(id) == 0 {
		id = uuid.NewString()
		ctx = WithRequestID(ctx, id)
	}
	req := &Request{
		ID:      id,
		Line:    line,
		Peer:    Peer(ctx),
		Outcome: OutcomeRejected,
		ctx:     ctx,
	}
	req.logger = logger.With("request_id", id)
	if len(req.Peer) > 0 {
		req.logger = req.logger.With("peer", req.Peer)
	}
	return req
}

// Parse validates the request line and extracts the page key from its target.
// Errors wrap [core.ErrMalformedRequest].
func (req *Request) Parse() error {
	method, target, version, err := ParseRequestLine(req.Line)
	if err != nil {
		return err
	}
	key, err := ParseTarget(target)
	if err != nil {
		return err
	}
	req.Method = method
	req.Target = target
	req.Version = version
	req.Key = key
	req.logger = req.logger.With("page", key.String())
	return nil
}

// Context returns the context of the connection this request was read from.
// It is never nil.
func (req *Request) Context() context.Context {
	if req.ctx == nil {
		return context.Background()
	}
	return req.ctx
}

// Error logs msg with the request's fields attached. This behaves the same as [log/slog.Error]
func (req *Request) Error(msg string, args ...any) {
	req.logger.Error(msg, args...)
}

func (req *Request) Warn(msg string, args ...any) {
	req.logger.Warn(msg, args...)
}

func (req *Request) Info(msg string, args ...any) {
	req.logger.Info(msg, args...)
}

// Debug logs msg with the request's fields attached. This behaves the same as [log/slog.Debug]
//
// # Example
//
//	req.Debug("Serving asset", "path", path)
func (req *Request) Debug(msg string, args ...any) {
	req.logger.Debug(msg, args...)
}

// ParseRequestLine splits "METHOD SP TARGET SP VERSION" into its parts.
// The method must be a token, the target must start with "/" and only HTTP/1.0 and HTTP/1.1
// are accepted.
func ParseRequestLine(line string) (method string, target string, version string, err error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: expected 3 fields, got %d", core.ErrMalformedRequest, len(parts))
	}
	method, target, version = parts[0], parts[1], parts[2]
	if !isToken(method) {
		return "", "", "", fmt.Errorf("%w: invalid method %q", core.ErrMalformedRequest, method)
	}
	if !strings.HasPrefix(target, "/") {
		return "", "", "", fmt.Errorf("%w: target %q is not an absolute path", core.ErrMalformedRequest, target)
	}
	if version != "HTTP/1.1" && version != "HTTP/1.0" {
		return "", "", "", fmt.Errorf("%w: unsupported version %q", core.ErrMalformedRequest, version)
	}
	return method, target, version, nil
}

// ParseTarget turns a request target into a page key. The query string and fragment are dropped,
// the path is percent-decoded and a single leading slash is removed, as are trailing slashes.
// Targets that could address files outside of the page directory are rejected.
func ParseTarget(target string) (core.PageKey, error) {
	if !strings.HasPrefix(target, "/") {
		return "", fmt.Errorf("%w: target %q is not an absolute path", core.ErrMalformedRequest, target)
	}
	path, _, _ := strings.Cut(target, "#")
	path, _, _ = strings.Cut(path, "?")
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrMalformedRequest, err)
	}

	key := strings.TrimPrefix(decoded, "/")
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: target %q is not relative", core.ErrMalformedRequest, target)
	}
	key = strings.TrimRight(key, "/")
	if strings.ContainsAny(key, "\x00\\") {
		return "", fmt.Errorf("%w: target %q contains forbidden characters", core.ErrMalformedRequest, target)
	}
	for segment := range strings.SplitSeq(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: target %q leaves the page directory", core.ErrMalformedRequest, target)
		}
	}
	return core.PageKey(key), nil
}

// isToken reports whether s is a token as defined by RFC 7230, section 3.2.6.
func isToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := range len(s) {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}
