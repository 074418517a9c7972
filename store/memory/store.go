// Package memory provides a fully in-memory store backend. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/cluster"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/notify"
	"github.com/omnikit/livequeue/room"
	"github.com/omnikit/livequeue/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	inquiries map[string]*inquiry.Inquiry
	rooms     map[string]*room.Room
	notices   map[string]*notify.Notice
	instances map[string]*cluster.Instance

	// roomCount is the all-time conversation aggregate.
	roomCount int

	// leader tracks the current sweep leader instance ID string.
	leader      string
	leaderUntil time.Time
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		inquiries: make(map[string]*inquiry.Inquiry),
		rooms:     make(map[string]*room.Room),
		notices:   make(map[string]*notify.Notice),
		instances: make(map[string]*cluster.Instance),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store. The one-active-inquiry-per-room
// constraint is enforced inline under the store mutex.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Inquiry Store
// ──────────────────────────────────────────────────

// CreateInquiry persists a new inquiry. At most one active inquiry may
// exist per room.
func (m *Store) CreateInquiry(_ context.Context, inq *inquiry.Inquiry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := inq.ID.String()
	if _, exists := m.inquiries[key]; exists {
		return livequeue.ErrInquiryExists
	}
	for _, other := range m.inquiries {
		if other.RoomID == inq.RoomID && other.Status.Active() {
			return livequeue.ErrInquiryExists
		}
	}

	cp := *inq
	if cp.Status == "" {
		cp.Status = inquiry.StatusQueued
	}
	now := time.Now().UTC()
	if cp.QueuedAt.IsZero() {
		cp.QueuedAt = now
	}
	cp.Touch(now)
	m.inquiries[key] = &cp
	return nil
}

// GetInquiry retrieves an inquiry by ID.
func (m *Store) GetInquiry(_ context.Context, inquiryID id.InquiryID) (*inquiry.Inquiry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inq, ok := m.inquiries[inquiryID.String()]
	if !ok {
		return nil, livequeue.ErrInquiryNotFound
	}
	cp := *inq
	return &cp, nil
}

// GetInquiryByRoom retrieves the active inquiry for a room.
func (m *Store) GetInquiryByRoom(_ context.Context, roomID id.RoomID) (*inquiry.Inquiry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, inq := range m.inquiries {
		if inq.RoomID == roomID && inq.Status.Active() {
			cp := *inq
			return &cp, nil
		}
	}
	return nil, livequeue.ErrInquiryNotFound
}

// QueueInquiry atomically parks an inquiry. Removed is terminal: parking a
// removed or missing inquiry returns (nil, nil).
func (m *Store) QueueInquiry(_ context.Context, inquiryID id.InquiryID) (*inquiry.Inquiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inq, ok := m.inquiries[inquiryID.String()]
	if !ok || inq.Status == inquiry.StatusRemoved {
		return nil, nil
	}
	now := time.Now().UTC()
	inq.Status = inquiry.StatusQueued
	inq.QueuedAt = now
	inq.TakenAt = nil
	inq.Touch(now)
	cp := *inq
	return &cp, nil
}

// ReadyInquiry transitions a queued inquiry to ready.
func (m *Store) ReadyInquiry(_ context.Context, inquiryID id.InquiryID) (*inquiry.Inquiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inq, ok := m.inquiries[inquiryID.String()]
	if !ok {
		return nil, livequeue.ErrInquiryNotFound
	}
	if inq.Status != inquiry.StatusQueued {
		return nil, livequeue.ErrInvalidState
	}
	inq.Status = inquiry.StatusReady
	inq.Touch(time.Now().UTC())
	cp := *inq
	return &cp, nil
}

// TakeInquiry transitions a ready or queued inquiry to taken.
func (m *Store) TakeInquiry(_ context.Context, inquiryID id.InquiryID, _ id.AgentID) (*inquiry.Inquiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inq, ok := m.inquiries[inquiryID.String()]
	if !ok {
		return nil, livequeue.ErrInquiryNotFound
	}
	if inq.Status != inquiry.StatusReady && inq.Status != inquiry.StatusQueued {
		return nil, livequeue.ErrInvalidState
	}
	now := time.Now().UTC()
	inq.Status = inquiry.StatusTaken
	inq.TakenAt = &now
	inq.Touch(now)
	cp := *inq
	return &cp, nil
}

// RemoveInquiryByRoom marks the active inquiry for a room as removed.
func (m *Store) RemoveInquiryByRoom(_ context.Context, roomID id.RoomID) (id.InquiryID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, inq := range m.inquiries {
		if inq.RoomID == roomID && inq.Status.Active() {
			inq.Status = inquiry.StatusRemoved
			inq.Touch(time.Now().UTC())
			return inq.ID, nil
		}
	}
	var zero id.InquiryID
	return zero, livequeue.ErrInquiryNotFound
}

// ListQueued returns queued inquiries, oldest first.
func (m *Store) ListQueued(_ context.Context, opts inquiry.ListOpts) ([]*inquiry.Inquiry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*inquiry.Inquiry
	for _, inq := range m.inquiries {
		if inq.Status != inquiry.StatusQueued {
			continue
		}
		if opts.Department != "" && inq.Department != opts.Department {
			continue
		}
		cp := *inq
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QueuedAt.Before(out[j].QueuedAt)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// CountByStatus returns the number of inquiries with the given status.
func (m *Store) CountByStatus(_ context.Context, status inquiry.Status) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, inq := range m.inquiries {
		if inq.Status == status {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Room Store
// ──────────────────────────────────────────────────

// CreateRoom persists a new open room.
func (m *Store) CreateRoom(_ context.Context, r *room.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := r.ID.String()
	if _, exists := m.rooms[key]; exists {
		return livequeue.ErrRoomExists
	}
	cp := *r
	cp.Open = true
	cp.ClosedAt = nil
	cp.Touch(time.Now().UTC())
	m.rooms[key] = &cp
	return nil
}

// GetRoom retrieves a room by ID.
func (m *Store) GetRoom(_ context.Context, roomID id.RoomID) (*room.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[roomID.String()]
	if !ok {
		return nil, livequeue.ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

// SetAgent assigns the serving agent on a room.
func (m *Store) SetAgent(_ context.Context, roomID id.RoomID, served *agent.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID.String()]
	if !ok {
		return livequeue.ErrRoomNotFound
	}
	if served == nil {
		r.ServedBy = nil
	} else {
		ref := *served
		r.ServedBy = &ref
	}
	r.Touch(time.Now().UTC())
	return nil
}

// SetLastMessage updates the room's last-message summary.
func (m *Store) SetLastMessage(_ context.Context, roomID id.RoomID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID.String()]
	if !ok {
		return livequeue.ErrRoomNotFound
	}
	r.LastMessage = message
	r.Touch(time.Now().UTC())
	return nil
}

// CloseRoom closes and archives an open room.
func (m *Store) CloseRoom(_ context.Context, roomID id.RoomID, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID.String()]
	if !ok {
		return livequeue.ErrRoomNotFound
	}
	r.Open = false
	at := closedAt
	r.ClosedAt = &at
	r.Touch(time.Now().UTC())
	return nil
}

// UnarchiveRoom reopens a closed room.
func (m *Store) UnarchiveRoom(_ context.Context, roomID id.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID.String()]
	if !ok {
		return livequeue.ErrRoomNotFound
	}
	r.Open = true
	r.ClosedAt = nil
	r.Touch(time.Now().UTC())
	return nil
}

// CountOpenRooms returns the current number of open rooms.
func (m *Store) CountOpenRooms(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.rooms {
		if r.Open {
			n++
		}
	}
	return n, nil
}

// UpdateRoomCount increments the all-time conversation aggregate.
func (m *Store) UpdateRoomCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.roomCount++
	return m.roomCount, nil
}

// ──────────────────────────────────────────────────
// Notify Store
// ──────────────────────────────────────────────────

// PublishNotice persists a new notice.
func (m *Store) PublishNotice(_ context.Context, n *notify.Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *n
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.notices[cp.ID.String()] = &cp
	return nil
}

// SubscribeNotice polls for the oldest unacked notice on the topic until one
// appears or the timeout expires.
func (m *Store) SubscribeNotice(ctx context.Context, topic string, timeout time.Duration) (*notify.Notice, error) {
	deadline := time.Now().Add(timeout)
	for {
		if n := m.oldestUnacked(topic); n != nil {
			return n, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (m *Store) oldestUnacked(topic string) *notify.Notice {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest *notify.Notice
	for _, n := range m.notices {
		if n.Topic != topic || n.AckedAt != nil {
			continue
		}
		if oldest == nil || n.CreatedAt.Before(oldest.CreatedAt) {
			oldest = n
		}
	}
	if oldest == nil {
		return nil
	}
	cp := *oldest
	return &cp
}

// AckNotice acknowledges a notice. Acking an unknown or already-acked notice
// is a no-op.
func (m *Store) AckNotice(_ context.Context, noticeID id.NoticeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notices[noticeID.String()]
	if !ok || n.AckedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	n.AckedAt = &now
	return nil
}

// ──────────────────────────────────────────────────
// Cluster Store
// ──────────────────────────────────────────────────

// RegisterInstance adds a new instance to the registry.
func (m *Store) RegisterInstance(_ context.Context, inst *cluster.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *inst
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.LastSeen = now
	m.instances[cp.ID.String()] = &cp
	return nil
}

// DeregisterInstance removes an instance from the registry.
func (m *Store) DeregisterInstance(_ context.Context, instanceID id.InstanceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := instanceID.String()
	delete(m.instances, key)
	if m.leader == key {
		m.leader = ""
		m.leaderUntil = time.Time{}
	}
	return nil
}

// HeartbeatInstance updates the last-seen timestamp for an instance.
func (m *Store) HeartbeatInstance(_ context.Context, instanceID id.InstanceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[instanceID.String()]
	if !ok {
		return livequeue.ErrInstanceNotFound
	}
	inst.LastSeen = time.Now().UTC()
	return nil
}

// ListInstances returns all registered instances.
func (m *Store) ListInstances(_ context.Context) ([]*cluster.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*cluster.Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		cp := *inst
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// AcquireLeadership attempts to become the sweep leader.
func (m *Store) AcquireLeadership(_ context.Context, instanceID id.InstanceID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := instanceID.String()
	now := time.Now().UTC()
	if m.leader != "" && m.leader != key && now.Before(m.leaderUntil) {
		return false, nil
	}
	m.leader = key
	m.leaderUntil = now.Add(ttl)
	if inst, ok := m.instances[key]; ok {
		inst.IsLeader = true
		until := m.leaderUntil
		inst.LeaderUntil = &until
	}
	return true, nil
}

// RenewLeadership extends the leader's hold.
func (m *Store) RenewLeadership(_ context.Context, instanceID id.InstanceID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := instanceID.String()
	if m.leader != key {
		return false, nil
	}
	m.leaderUntil = time.Now().UTC().Add(ttl)
	if inst, ok := m.instances[key]; ok {
		until := m.leaderUntil
		inst.LeaderUntil = &until
	}
	return true, nil
}

// GetLeader returns the current leader, or nil if there is none.
func (m *Store) GetLeader(_ context.Context) (*cluster.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.leader == "" || time.Now().UTC().After(m.leaderUntil) {
		return nil, nil
	}
	inst, ok := m.instances[m.leader]
	if !ok {
		return nil, nil
	}
	cp := *inst
	cp.IsLeader = true
	return &cp, nil
}
