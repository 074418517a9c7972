// Package livequeue provides an omnichannel inquiry queueing and routing
// core for livechat workloads. It arbitrates incoming conversation requests
// against agent availability, enforces a concurrent-conversation capacity
// limit, and guarantees idempotent re-queueing semantics when downstream
// state is inconsistent (e.g. unarchiving a room).
//
// Livequeue is designed as a library, not a service. Import it, configure a
// store and a routing strategy, and drive it from your own transport layer.
//
// # Quick Start
//
//	lq, err := livequeue.New(
//	    livequeue.WithStore(memstore),
//	    livequeue.WithSweepInterval(5*time.Second),
//	)
//
// # Architecture
//
// Livequeue follows a composable store pattern where each subsystem
// (inquiry, room, notify, cluster) defines its own store interface.
// A single backend implements all of them.
//
// The orchestration core lives in the manager package: manager.Manager
// creates rooms and inquiries, gates them on capacity, and delegates agent
// assignment to a pluggable routing.Strategy. The sweeper package resumes
// parked inquiries once capacity or agents free up.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package livequeue
