package store

import (
	"context"

	"github.com/xraph/maestro/execution"
)

// Store is the aggregate persistence interface. The execution store is
// a composable interface; a single backend (bun, redis, memory)
// implements it plus the lifecycle methods below.
type Store interface {
	execution.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
