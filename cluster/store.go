package cluster

import (
	"context"
	"time"

	"github.com/omnikit/livequeue/id"
)

// Store defines the persistence contract for sweeper instance coordination.
type Store interface {
	// RegisterInstance adds a new instance to the registry.
	RegisterInstance(ctx context.Context, inst *Instance) error

	// DeregisterInstance removes an instance from the registry.
	DeregisterInstance(ctx context.Context, instanceID id.InstanceID) error

	// HeartbeatInstance updates the last-seen timestamp for an instance.
	HeartbeatInstance(ctx context.Context, instanceID id.InstanceID) error

	// ListInstances returns all registered instances.
	ListInstances(ctx context.Context) ([]*Instance, error)

	// AcquireLeadership attempts to become the sweep leader. Returns true
	// if this instance is now leader. The leadership expires after ttl if
	// not renewed.
	AcquireLeadership(ctx context.Context, instanceID id.InstanceID, ttl time.Duration) (bool, error)

	// RenewLeadership extends the leader's hold. Must be called before the
	// TTL expires.
	RenewLeadership(ctx context.Context, instanceID id.InstanceID, ttl time.Duration) (bool, error)

	// GetLeader returns the current leader, or nil if there is none.
	GetLeader(ctx context.Context) (*Instance, error)
}
