// Package room defines the omnichannel conversation container and its
// persistence contract. Rooms are created by the queue manager on first
// contact, mutated by routing (agent assignment) and by the close/archive
// flow, and reopened via the unarchive operation.
package room

import (
	"time"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/id"
)

// VisitorRef is the visitor snapshot stored on a room.
type VisitorRef struct {
	ID       id.VisitorID `json:"id"`
	Username string       `json:"username"`
	Name     string       `json:"name,omitempty"`
	Token    string       `json:"token,omitempty"`
}

// Room is an omnichannel conversation container between a visitor and an
// agent. A room is either open (routable) or closed and archived; only
// closed rooms are eligible for unarchiving.
type Room struct {
	livequeue.Entity

	ID         id.RoomID  `json:"id"`
	Name       string     `json:"name"`
	Open       bool       `json:"open"`
	ServedBy   *agent.Ref `json:"served_by,omitempty"`
	Visitor    VisitorRef `json:"visitor"`
	Department string     `json:"department,omitempty"`
	Source     string     `json:"source,omitempty"`

	// LastMessage is the free-text summary of the most recent message,
	// carried onto the fresh inquiry when the room is unarchived.
	LastMessage string `json:"last_message,omitempty"`

	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// Archived reports whether the room is closed and eligible for unarchiving.
func (r *Room) Archived() bool {
	return !r.Open && r.ClosedAt != nil
}
