// Package ext defines the extension system for livequeue. Extensions are
// notified of lifecycle events (room started, inquiry queued, taken,
// removed) and can react to them — logging, metrics, CRM sync, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only to
// the events they care about. All hooks are fire-and-forget with
// per-handler error isolation, except BeforeRouteChat, whose error vetoes
// the routing pipeline.
package ext

import (
	"context"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/room"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Routing pipeline hooks
// ──────────────────────────────────────────────────

// BeforeRouteChat is called before an inquiry is routed. Returning an error
// vetoes the pipeline: the queueing procedure aborts and the error
// propagates to the caller. Handlers run in registration order.
type BeforeRouteChat interface {
	OnBeforeRouteChat(ctx context.Context, inq *inquiry.Inquiry, selected *agent.Selected) error
}

// ──────────────────────────────────────────────────
// Inquiry lifecycle hooks (fire-and-forget)
// ──────────────────────────────────────────────────

// InquiryQueued is called after an inquiry is (re-)parked in queued state.
type InquiryQueued interface {
	OnInquiryQueued(ctx context.Context, inq *inquiry.Inquiry) error
}

// InquiryTaken is called after an agent takes an inquiry.
type InquiryTaken interface {
	OnInquiryTaken(ctx context.Context, inq *inquiry.Inquiry, served *agent.Ref) error
}

// InquiryRemoved is called after a stale inquiry is removed.
type InquiryRemoved interface {
	OnInquiryRemoved(ctx context.Context, inquiryID id.InquiryID) error
}

// ──────────────────────────────────────────────────
// Room lifecycle hooks (fire-and-forget)
// ──────────────────────────────────────────────────

// RoomStarted is called after a new room and its inquiry are created.
type RoomStarted interface {
	OnRoomStarted(ctx context.Context, r *room.Room) error
}

// RoomUnarchived is called after a closed room is reopened for routing.
type RoomUnarchived interface {
	OnRoomUnarchived(ctx context.Context, r *room.Room) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
