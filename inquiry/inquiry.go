package inquiry

import (
	"time"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/id"
)

// Status represents the lifecycle state of an inquiry.
type Status string

const (
	// StatusQueued means the inquiry is parked, waiting for capacity or an
	// available agent. Queued is a durable, resumable state — not a failure.
	StatusQueued Status = "queued"
	// StatusReady means the inquiry may be delegated to an agent.
	StatusReady Status = "ready"
	// StatusTaken means an agent is serving the conversation.
	StatusTaken Status = "taken"
	// StatusRemoved means the inquiry was discarded, either because the room
	// was unarchived and a fresh inquiry replaced it, or because routing
	// failed permanently.
	StatusRemoved Status = "removed"
)

// Active reports whether the status still counts against the one-active-
// inquiry-per-room invariant.
func (s Status) Active() bool { return s != StatusRemoved }

// GuestRef is the visitor snapshot carried on an inquiry.
type GuestRef struct {
	ID       id.VisitorID `json:"id"`
	Username string       `json:"username"`
	Token    string       `json:"token,omitempty"`
}

// Inquiry is a pending request for an agent to join a conversation.
type Inquiry struct {
	livequeue.Entity

	ID      id.InquiryID `json:"id"`
	RoomID  id.RoomID    `json:"room_id"`
	Name    string       `json:"name"`
	Guest   GuestRef     `json:"guest"`
	Message string       `json:"message,omitempty"`
	Status  Status       `json:"status"`

	// Routing metadata.
	Department   string         `json:"department,omitempty"`
	Source       string         `json:"source,omitempty"`
	SLA          string         `json:"sla,omitempty"`
	Priority     int            `json:"priority,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`

	QueuedAt time.Time  `json:"queued_at"`
	TakenAt  *time.Time `json:"taken_at,omitempty"`
}
