package agent

import (
	"context"
	"sort"
	"sync"

	"github.com/omnikit/livequeue/id"
)

// Ensure MemoryDirectory implements Directory at compile time.
var _ Directory = (*MemoryDirectory)(nil)

// MemoryDirectory is a mutex-guarded in-memory Directory. Intended for unit
// testing and development; production deployments use the presence package.
type MemoryDirectory struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	// sessions counts active sessions per agent ID string.
	sessions map[string]int
}

// NewMemoryDirectory returns an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		agents:   make(map[string]*Agent),
		sessions: make(map[string]int),
	}
}

// Add registers an agent with one active session.
func (d *MemoryDirectory) Add(a *Agent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *a
	if cp.Status == "" {
		cp.Status = StatusOnline
	}
	d.agents[a.ID.String()] = &cp
	d.sessions[a.ID.String()] = 1
}

// SetSessions overrides the session count for an agent. Zero marks the
// agent offline without removing it.
func (d *MemoryDirectory) SetSessions(agentID id.AgentID, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[agentID.String()] = n
}

// SetActiveRooms sets the served-conversation count used for least-busy
// ordering.
func (d *MemoryDirectory) SetActiveRooms(agentID id.AgentID, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.agents[agentID.String()]; ok {
		a.ActiveRooms = n
	}
}

// CountOnlineAgents implements Directory.
func (d *MemoryDirectory) CountOnlineAgents(_ context.Context, agentID id.AgentID) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sessions[agentID.String()], nil
}

// FindOnlineAgentByUsername implements Directory.
func (d *MemoryDirectory) FindOnlineAgentByUsername(_ context.Context, username string) (*Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for key, a := range d.agents {
		if a.Username == username && d.sessions[key] > 0 && a.Status != StatusOffline {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// IsServiceOnline implements Directory.
func (d *MemoryDirectory) IsServiceOnline(_ context.Context, department string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for key, a := range d.agents {
		if d.sessions[key] == 0 || a.Status == StatusOffline {
			continue
		}
		if department == "" || contains(a.Departments, department) {
			return true, nil
		}
	}
	return false, nil
}

// OnlineAgents implements Directory.
func (d *MemoryDirectory) OnlineAgents(_ context.Context, department string) ([]*Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Agent, 0, len(d.agents))
	for key, a := range d.agents {
		if d.sessions[key] == 0 || a.Status == StatusOffline {
			continue
		}
		if department != "" && !contains(a.Departments, department) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}

	// Least busy first; username breaks ties deterministically.
	sort.Slice(out, func(i, k int) bool {
		if out[i].ActiveRooms != out[k].ActiveRooms {
			return out[i].ActiveRooms < out[k].ActiveRooms
		}
		return out[i].Username < out[k].Username
	})

	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
