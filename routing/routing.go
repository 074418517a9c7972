// Package routing defines the pluggable agent-assignment policy and the two
// built-in strategies: automatic least-busy selection and manual selection,
// where agents claim inquiries from the queue themselves.
package routing

import (
	"context"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/room"
)

// Config describes a strategy's behaviour to the orchestration layer.
type Config struct {
	// Name is the strategy identifier.
	Name string

	// AutoAssign controls the status of freshly created inquiries: true
	// creates them ready (eligible for immediate delegation), false
	// creates them queued until an agent claims them.
	AutoAssign bool
}

// Strategy selects or confirms an agent for a ready inquiry.
type Strategy interface {
	// Config returns the strategy's behaviour flags.
	Config() Config

	// DelegateAgent pre-assigns an agent for the inquiry given the
	// default-agent hint. It may be a no-op that defers to automatic
	// assignment at delegation time. Returning nil with no error means
	// "decide later".
	DelegateAgent(ctx context.Context, selected *agent.Selected, inq *inquiry.Inquiry) (*agent.Selected, error)

	// DelegateInquiry performs the actual agent assignment for a ready
	// inquiry: takes the inquiry, assigns the room, and announces the
	// result. When no agent can be resolved the room is returned
	// unchanged and the inquiry stays queued for a later sweep. Override
	// forces the assignment even over an existing one (client action).
	DelegateInquiry(ctx context.Context, inq *inquiry.Inquiry, selected *agent.Selected, override bool, rm *room.Room) (*room.Room, error)
}
