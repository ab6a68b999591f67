package audit

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/prior-it/tweb/core"
	"github.com/prior-it/tweb/postgres"
)

// PostgresSink stores connection records in the connections table.
type PostgresSink struct {
	db  *postgres.DB
	log *postgres.ConnectionLog
}

// NewPostgresSink connects to the database and applies all pending migrations.
func NewPostgresSink(ctx context.Context, connString string) (*PostgresSink, error) {
	db, err := postgres.NewDB(ctx, connString)
	if err != nil {
		return nil, err
	}
	sink, err := NewPostgresSinkFromDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return sink, nil
}

// NewPostgresSinkFromDB applies all pending migrations on an existing connection pool.
// Closing the sink closes db.
func NewPostgresSinkFromDB(ctx context.Context, db *postgres.DB) (*PostgresSink, error) {
	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAuditFailure, err)
	}
	return &PostgresSink{db: db, log: postgres.NewConnectionLog(db)}, nil
}

func (s *PostgresSink) Record(ctx context.Context, ip net.IP, at time.Time) error {
	return s.log.Record(ctx, ip, at)
}

// Since returns the connections recorded at or after t.
func (s *PostgresSink) Since(ctx context.Context, t time.Time) ([]core.Connection, error) {
	return s.log.ListSince(ctx, t)
}

func (s *PostgresSink) Close() error {
	s.db.Close()
	return nil
}
