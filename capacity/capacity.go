// Package capacity implements the concurrent-conversation gate. The gate is
// consulted with a fresh room read immediately before committing to route;
// exceeding the limit parks the inquiry in queued state rather than failing
// the request.
package capacity

import (
	"context"

	"github.com/omnikit/livequeue/room"
)

// Gate reports whether routing a conversation is permitted under the
// configured seat/license limit.
type Gate interface {
	// IsWithinLimit reports whether the given room may be routed. The check
	// must not rely on cached counts: a capacity change between enqueue and
	// delegation has to be observed.
	IsWithinLimit(ctx context.Context, r *room.Room) (bool, error)
}

// Counter is the slice of room.Store the license gate needs.
type Counter interface {
	CountOpenRooms(ctx context.Context) (int, error)
}

// ──────────────────────────────────────────────────
// Unlimited
// ──────────────────────────────────────────────────

// Unlimited is a Gate that always permits routing.
type Unlimited struct{}

// IsWithinLimit implements Gate.
func (Unlimited) IsWithinLimit(_ context.Context, _ *room.Room) (bool, error) {
	return true, nil
}

// ──────────────────────────────────────────────────
// LicenseGate
// ──────────────────────────────────────────────────

// LicenseGate permits routing while the number of open rooms is at or below
// Max. Rooms that are already open (the one being checked included) count
// against the limit, so a room created by the current request does not
// sneak past a full organization.
type LicenseGate struct {
	counter Counter
	max     int
}

// NewLicenseGate creates a gate limited to max concurrent open rooms.
// A non-positive max behaves like Unlimited.
func NewLicenseGate(counter Counter, max int) *LicenseGate {
	return &LicenseGate{counter: counter, max: max}
}

// IsWithinLimit implements Gate with a fresh open-room count per call.
func (g *LicenseGate) IsWithinLimit(ctx context.Context, _ *room.Room) (bool, error) {
	if g.max <= 0 {
		return true, nil
	}
	n, err := g.counter.CountOpenRooms(ctx)
	if err != nil {
		return false, err
	}
	return n <= g.max, nil
}
