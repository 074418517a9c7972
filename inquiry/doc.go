// Package inquiry defines the inquiry entity and its persistence contract.
//
// # Inquiry Entity
//
// An [Inquiry] represents a pending request to talk to an agent. It embeds
// livequeue.Entity for audit timestamps and carries the routing metadata
// (department, SLA, priority, custom fields, source channel) the routing
// strategy needs.
//
// # Lifecycle
//
//	queued ──▶ ready ──▶ taken
//	   │
//	   └──▶ removed
//
// An inquiry is created when a room is opened and needs an agent. "queued"
// is a durable, resumable state: the background sweeper re-runs the
// queueing procedure until capacity and an agent are available. "removed"
// terminates the lifecycle, either because the room was unarchived and a
// fresh inquiry replaced a stale one, or because routing failed
// permanently.
//
// # Invariant
//
// At most one active (non-removed) inquiry exists per room at any time.
// This is enforced by the [Store] implementation through a unique index,
// not by coordination in the orchestration core.
package inquiry
