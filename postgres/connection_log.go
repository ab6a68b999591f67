package postgres

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prior-it/tweb/core"
)

func NewConnectionLog(db *DB) *ConnectionLog {
	return &ConnectionLog{db}
}

// Postgres implementation of the client address audit log.
// The connections table is created by [DB.Migrate].
type ConnectionLog struct {
	db *DB
}

// Record stores a single connection.
func (l *ConnectionLog) Record(ctx context.Context, ip net.IP, at time.Time) error {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return fmt.Errorf("%w: invalid ip address %v", core.ErrAuditFailure, ip)
	}
	_, err := l.db.Exec(
		ctx,
		"INSERT INTO connections (ip, connected_at) VALUES ($1, $2)",
		addr.Unmap(),
		at.UTC(),
	)
	return convertPgError(err)
}

// ListSince returns all connections that were recorded at or after since, oldest first.
func (l *ConnectionLog) ListSince(ctx context.Context, since time.Time) ([]core.Connection, error) {
	rows, err := l.db.Query(
		ctx,
		"SELECT id, ip, connected_at FROM connections WHERE connected_at >= $1 ORDER BY connected_at, id",
		since.UTC(),
	)
	if err != nil {
		return nil, convertPgError(err)
	}
	connections, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Connection, error) {
		var id core.ID
		var addr netip.Addr
		var at time.Time
		if err := row.Scan(&id, &addr, &at); err != nil {
			return core.Connection{}, err
		}
		return core.Connection{ID: id, IP: net.IP(addr.AsSlice()), At: at}, nil
	})
	if err != nil {
		return nil, convertPgError(err)
	}
	return connections, nil
}

// DeleteAll removes every recorded connection.
func (l *ConnectionLog) DeleteAll(ctx context.Context) error {
	_, err := l.db.Exec(ctx, "DELETE FROM connections")
	return convertPgError(err)
}
