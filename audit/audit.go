// Package audit records the address of every client that connects to the server.
package audit

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/prior-it/tweb/config"
)

// Sink stores connection records. Implementations are safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, ip net.IP, at time.Time) error
	Close() error
}

// DefaultPath returns tweb/log.md inside the user's data directory: $XDG_DATA_HOME, or
// ~/.local/share if that is not set.
func DefaultPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if len(dataDir) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine the data directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "tweb", "log.md"), nil
}

// New creates the sink that is selected by cfg.Driver.
func New(ctx context.Context, cfg config.AuditConfig) (Sink, error) {
	switch cfg.Driver {
	case config.AuditDriverFile:
		path := cfg.Path
		if len(path) == 0 {
			var err error
			if path, err = DefaultPath(); err != nil {
				return nil, err
			}
		}
		return NewFileSink(path, cfg.MaxSize)
	case config.AuditDriverPostgres:
		return NewPostgresSink(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}
