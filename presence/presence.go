// Package presence implements agent.Directory backed by Redis. Agent
// records are stored as Redis Hashes; per-agent session counts live in
// separate TTL'd keys so a crashed client's sessions expire on their own.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	dir := presence.New(client)
//	dir.Connect(ctx, agentID)
package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/id"
)

// Compile-time interface check.
var _ agent.Directory = (*Directory)(nil)

const (
	defaultKeyPrefix  = "livequeue:"
	defaultSessionTTL = 5 * time.Minute
)

// Option configures the Directory.
type Option func(*Directory)

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(d *Directory) { d.prefix = prefix }
}

// WithSessionTTL sets how long a session counts as alive without a refresh.
func WithSessionTTL(ttl time.Duration) Option {
	return func(d *Directory) { d.sessionTTL = ttl }
}

// Directory implements agent.Directory backed by Redis.
type Directory struct {
	client     goredis.Cmdable
	prefix     string
	sessionTTL time.Duration
}

// New creates a Redis-backed directory. The caller owns the Redis client
// lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Directory {
	d := &Directory{
		client:     client,
		prefix:     defaultKeyPrefix,
		sessionTTL: defaultSessionTTL,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Directory) agentKey(agentID string) string { return d.prefix + "agent:" + agentID }
func (d *Directory) agentIDsKey() string            { return d.prefix + "agents" }
func (d *Directory) sessionKey(agentID string) string {
	return d.prefix + "sessions:" + agentID
}

// ──────────────────────────────────────────────────
// Registration and sessions
// ──────────────────────────────────────────────────

// Register stores or refreshes an agent record.
func (d *Directory) Register(ctx context.Context, a *agent.Agent) error {
	aID := a.ID.String()
	pipe := d.client.TxPipeline()
	pipe.HSet(ctx, d.agentKey(aID), agentToMap(a))
	pipe.SAdd(ctx, d.agentIDsKey(), aID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: register agent: %w", err)
	}
	return nil
}

// Deregister removes an agent record and its sessions.
func (d *Directory) Deregister(ctx context.Context, agentID id.AgentID) error {
	aID := agentID.String()
	pipe := d.client.TxPipeline()
	pipe.Del(ctx, d.agentKey(aID), d.sessionKey(aID))
	pipe.SRem(ctx, d.agentIDsKey(), aID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: deregister agent: %w", err)
	}
	return nil
}

// Connect records a new session for the agent and refreshes the session
// TTL.
func (d *Directory) Connect(ctx context.Context, agentID id.AgentID) error {
	key := d.sessionKey(agentID.String())
	pipe := d.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, d.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: connect: %w", err)
	}
	return nil
}

// Disconnect drops one session for the agent. The count never goes below
// zero.
func (d *Directory) Disconnect(ctx context.Context, agentID id.AgentID) error {
	key := d.sessionKey(agentID.String())
	n, err := d.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("presence: disconnect: %w", err)
	}
	if n < 0 {
		if err := d.client.Set(ctx, key, 0, d.sessionTTL).Err(); err != nil {
			return fmt.Errorf("presence: disconnect reset: %w", err)
		}
	}
	return nil
}

// Heartbeat refreshes the session TTL without changing the count.
func (d *Directory) Heartbeat(ctx context.Context, agentID id.AgentID) error {
	if err := d.client.Expire(ctx, d.sessionKey(agentID.String()), d.sessionTTL).Err(); err != nil {
		return fmt.Errorf("presence: heartbeat: %w", err)
	}
	return nil
}

// SetStatus updates the agent's presence status.
func (d *Directory) SetStatus(ctx context.Context, agentID id.AgentID, status agent.Status) error {
	if err := d.client.HSet(ctx, d.agentKey(agentID.String()), "status", string(status)).Err(); err != nil {
		return fmt.Errorf("presence: set status: %w", err)
	}
	return nil
}

// SetActiveRooms updates the served-conversation count used for least-busy
// ordering.
func (d *Directory) SetActiveRooms(ctx context.Context, agentID id.AgentID, n int) error {
	if err := d.client.HSet(ctx, d.agentKey(agentID.String()), "active_rooms", n).Err(); err != nil {
		return fmt.Errorf("presence: set active rooms: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// agent.Directory
// ──────────────────────────────────────────────────

// CountOnlineAgents implements agent.Directory.
func (d *Directory) CountOnlineAgents(ctx context.Context, agentID id.AgentID) (int, error) {
	n, err := d.client.Get(ctx, d.sessionKey(agentID.String())).Int()
	if err != nil {
		if err == goredis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("presence: count sessions: %w", err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// FindOnlineAgentByUsername implements agent.Directory.
func (d *Directory) FindOnlineAgentByUsername(ctx context.Context, username string) (*agent.Agent, error) {
	agents, err := d.onlineAgents(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, nil
}

// IsServiceOnline implements agent.Directory.
func (d *Directory) IsServiceOnline(ctx context.Context, department string) (bool, error) {
	agents, err := d.onlineAgents(ctx, department)
	if err != nil {
		return false, err
	}
	return len(agents) > 0, nil
}

// OnlineAgents implements agent.Directory: online agents for the
// department, least busy first.
func (d *Directory) OnlineAgents(ctx context.Context, department string) ([]*agent.Agent, error) {
	agents, err := d.onlineAgents(ctx, department)
	if err != nil {
		return nil, err
	}
	sort.Slice(agents, func(i, k int) bool {
		if agents[i].ActiveRooms != agents[k].ActiveRooms {
			return agents[i].ActiveRooms < agents[k].ActiveRooms
		}
		return agents[i].Username < agents[k].Username
	})
	return agents, nil
}

// onlineAgents scans the registry and filters to agents with a live
// session. Agent cardinality is operator-scale, so a full scan is fine.
func (d *Directory) onlineAgents(ctx context.Context, department string) ([]*agent.Agent, error) {
	ids, err := d.client.SMembers(ctx, d.agentIDsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: list agents: %w", err)
	}

	var out []*agent.Agent
	for _, aID := range ids {
		fields, err := d.client.HGetAll(ctx, d.agentKey(aID)).Result()
		if err != nil {
			return nil, fmt.Errorf("presence: read agent %s: %w", aID, err)
		}
		if len(fields) == 0 {
			continue
		}
		a, err := mapToAgent(fields)
		if err != nil {
			return nil, fmt.Errorf("presence: decode agent %s: %w", aID, err)
		}
		if a.Status == agent.StatusOffline {
			continue
		}
		if department != "" && !hasDepartment(a, department) {
			continue
		}

		sessions, err := d.client.Get(ctx, d.sessionKey(aID)).Int()
		if err != nil && err != goredis.Nil {
			return nil, fmt.Errorf("presence: count sessions %s: %w", aID, err)
		}
		if sessions <= 0 {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func hasDepartment(a *agent.Agent, department string) bool {
	for _, d := range a.Departments {
		if d == department {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────────
// Converters
// ──────────────────────────────────────────────────

func agentToMap(a *agent.Agent) map[string]any {
	return map[string]any{
		"id":           a.ID.String(),
		"username":     a.Username,
		"name":         a.Name,
		"status":       string(a.Status),
		"departments":  strings.Join(a.Departments, ","),
		"active_rooms": a.ActiveRooms,
	}
}

func mapToAgent(fields map[string]string) (*agent.Agent, error) {
	agentID, err := id.ParseAgentID(fields["id"])
	if err != nil {
		return nil, err
	}
	a := &agent.Agent{
		ID:       agentID,
		Username: fields["username"],
		Name:     fields["name"],
		Status:   agent.Status(fields["status"]),
	}
	if deps := fields["departments"]; deps != "" {
		a.Departments = strings.Split(deps, ",")
	}
	if raw := fields["active_rooms"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("bad active_rooms %q: %w", raw, err)
		}
		a.ActiveRooms = n
	}
	return a, nil
}
