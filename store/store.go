// Package store defines the aggregate persistence interface. Each subsystem
// (inquiry, room, notify, cluster) defines its own store interface. The
// composite Store composes them all. Backends: Postgres, MongoDB, and Memory.
package store

import (
	"context"

	"github.com/omnikit/livequeue/cluster"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/notify"
	"github.com/omnikit/livequeue/room"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (postgres, mongo, memory) implements all of them.
type Store interface {
	inquiry.Store
	room.Store
	notify.Store
	cluster.Store

	// Migrate runs all schema migrations. The inquiry uniqueness guarantee
	// (one active inquiry per room) depends on the partial unique index
	// created here, so backends must be migrated before use.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
