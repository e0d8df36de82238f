package store

import (
	"context"

	"github.com/xraph/distask/cluster"
	"github.com/xraph/distask/transport"
)

// Store is the aggregate backend interface. A single backend implements
// membership and named locks.
type Store interface {
	cluster.Store
	transport.LockProvider

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
