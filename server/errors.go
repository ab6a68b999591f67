package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/prior-it/tweb/components"
	"github.com/prior-it/tweb/core"
	"github.com/prior-it/tweb/pages"
)

// ErrorHandler turns an error that occurred while handling req into the response for the client.
type ErrorHandler func(req *Request, err error) Response

func DefaultErrorHandler(req *Request, err error) Response {
	ctx := req.Context()
	switch {
	case errors.Is(err, core.ErrMalformedRequest):
		req.Warn("Malformed request", "line", req.Line, "error", err)
		return ErrorPage(ctx, http.StatusBadRequest, "Bad request.")
	case errors.Is(err, core.ErrPageNotFound):
		req.Debug("Page not found", "error", err)
		return ErrorPage(ctx, http.StatusNotFound, "Page not found.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		req.Warn("Request aborted", "error", err)
		return ErrorPage(ctx, http.StatusServiceUnavailable, "Service unavailable.")
	}
	req.Error("Server error", "error", err)
	captureException(ctx, err)
	return ErrorPage(ctx, http.StatusInternalServerError, "Internal server error.")
}

// ErrorPage returns a complete document for the given status code. The 404 status uses the
// PAGE_NOT_FOUND reason phrase, other codes use their standard reason phrase.
func ErrorPage(ctx context.Context, code int, message string) Response {
	reason := http.StatusText(code)
	if code == http.StatusNotFound {
		reason = ReasonPageNotFound
	}
	fragment := pages.Indent(errorFragment(code, message), pages.DefaultIndent)
	body, err := renderDocument(ctx, components.DocumentProps{
		Title:      strconv.Itoa(code),
		Stylesheet: components.Stylesheet(),
	}, fragment)
	if err != nil {
		body = []byte(fragment)
	}
	return newPageResponse(code, reason, body)
}

func captureException(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
