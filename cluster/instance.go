// Package cluster coordinates sweeper instances across processes. Only the
// elected leader runs the queue sweep, preventing the same inquiry from
// being advanced twice.
package cluster

import (
	"time"

	"github.com/omnikit/livequeue/id"
)

// InstanceState represents the lifecycle state of a sweeper instance.
type InstanceState string

const (
	// InstanceActive means the instance is healthy.
	InstanceActive InstanceState = "active"
	// InstanceDraining means the instance is shutting down gracefully.
	InstanceDraining InstanceState = "draining"
	// InstanceDead means the instance stopped responding.
	InstanceDead InstanceState = "dead"
)

// Instance represents a livequeue sweeper process in a distributed
// deployment.
type Instance struct {
	ID          id.InstanceID `json:"id"`
	Hostname    string        `json:"hostname"`
	Departments []string      `json:"departments,omitempty"`
	State       InstanceState `json:"state"`
	IsLeader    bool          `json:"is_leader"`
	LeaderUntil *time.Time    `json:"leader_until,omitempty"`
	LastSeen    time.Time     `json:"last_seen"`
	CreatedAt   time.Time     `json:"created_at"`
}
