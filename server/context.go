package server

import (
	"context"
)

type contextKey uint

const (
	ctxRequestID contextKey = iota
	ctxPeer
)

// WithRequestID attaches the identifier of the current connection to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// RequestID returns the identifier of the current connection, or the empty string if there is none.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

// WithPeer attaches the remote address of the current connection to ctx.
func WithPeer(ctx context.Context, peer string) context.Context {
	return context.WithValue(ctx, ctxPeer, peer)
}

func Peer(ctx context.Context) string {
	peer, _ := ctx.Value(ctxPeer).(string)
	return peer
}
