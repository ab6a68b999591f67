package core

import (
	"net"
	"time"
)

// Connection is a single entry of the client address audit log.
// Entries written to a file have no ID.
type Connection struct {
	ID ID
	IP net.IP
	At time.Time
}
