// Package agent defines agent identity, the SelectedAgent routing hint, and
// the Directory contract used to answer availability questions.
//
// The queueing core never owns agent records; it asks a Directory whether
// service is online before mutating any state.
package agent

import (
	"context"

	"github.com/omnikit/livequeue/id"
)

// Status is the presence status of an agent.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Agent is an operator who can serve omnichannel conversations.
type Agent struct {
	ID          id.AgentID `json:"id"`
	Username    string     `json:"username"`
	Name        string     `json:"name,omitempty"`
	Status      Status     `json:"status"`
	Departments []string   `json:"departments,omitempty"`

	// ActiveRooms is the number of conversations currently served by the
	// agent. Directories that cannot compute it report zero.
	ActiveRooms int `json:"active_rooms,omitempty"`
}

// Selected is a routing hint/override naming a specific agent. It is
// distinct from the final assignment decision, which belongs to the
// routing strategy.
type Selected struct {
	AgentID  id.AgentID `json:"agent_id"`
	Username string     `json:"username"`
}

// Ref is the lightweight agent reference stored on a served room.
type Ref struct {
	ID       id.AgentID `json:"id"`
	Username string     `json:"username"`
}

// Directory answers agent and department availability questions.
type Directory interface {
	// CountOnlineAgents returns the number of active sessions for the
	// given agent.
	CountOnlineAgents(ctx context.Context, agentID id.AgentID) (int, error)

	// FindOnlineAgentByUsername returns the agent with the given username
	// if they have at least one active session, or nil when offline.
	FindOnlineAgentByUsername(ctx context.Context, username string) (*Agent, error)

	// IsServiceOnline reports whether any agent is available for the given
	// department. An empty department checks global availability.
	IsServiceOnline(ctx context.Context, department string) (bool, error)

	// OnlineAgents lists agents currently available for the department,
	// least busy first. Used by automatic routing strategies.
	OnlineAgents(ctx context.Context, department string) ([]*Agent, error)
}
