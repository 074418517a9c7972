package mongo

import (
	"fmt"
	"time"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/cluster"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/notify"
	"github.com/omnikit/livequeue/room"
)

// ── Inquiry model ─────────────────────────────────────────────────

type guestRefModel struct {
	ID       string `bson:"id"`
	Username string `bson:"username"`
	Token    string `bson:"token,omitempty"`
}

type inquiryModel struct {
	ID           string         `bson:"_id"`
	RoomID       string         `bson:"room_id"`
	Name         string         `bson:"name"`
	Guest        guestRefModel  `bson:"guest"`
	Message      string         `bson:"message,omitempty"`
	Status       string         `bson:"status"`
	Department   string         `bson:"department,omitempty"`
	Source       string         `bson:"source,omitempty"`
	SLA          string         `bson:"sla,omitempty"`
	Priority     int            `bson:"priority,omitempty"`
	CustomFields map[string]any `bson:"custom_fields,omitempty"`
	QueuedAt     time.Time      `bson:"queued_at"`
	TakenAt      *time.Time     `bson:"taken_at,omitempty"`
	CreatedAt    time.Time      `bson:"created_at"`
	UpdatedAt    time.Time      `bson:"updated_at"`
}

func toInquiryModel(inq *inquiry.Inquiry) *inquiryModel {
	return &inquiryModel{
		ID:     inq.ID.String(),
		RoomID: inq.RoomID.String(),
		Name:   inq.Name,
		Guest: guestRefModel{
			ID:       inq.Guest.ID.String(),
			Username: inq.Guest.Username,
			Token:    inq.Guest.Token,
		},
		Message:      inq.Message,
		Status:       string(inq.Status),
		Department:   inq.Department,
		Source:       inq.Source,
		SLA:          inq.SLA,
		Priority:     inq.Priority,
		CustomFields: inq.CustomFields,
		QueuedAt:     inq.QueuedAt,
		TakenAt:      inq.TakenAt,
		CreatedAt:    inq.CreatedAt,
		UpdatedAt:    inq.UpdatedAt,
	}
}

func fromInquiryModel(m *inquiryModel) (*inquiry.Inquiry, error) {
	inquiryID, err := id.ParseInquiryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("livequeue/mongo: parse inquiry id %q: %w", m.ID, err)
	}
	roomID, err := id.ParseRoomID(m.RoomID)
	if err != nil {
		return nil, fmt.Errorf("livequeue/mongo: parse room id %q: %w", m.RoomID, err)
	}
	visitorID, err := id.ParseVisitorID(m.Guest.ID)
	if err != nil {
		return nil, fmt.Errorf("livequeue/mongo: parse visitor id %q: %w", m.Guest.ID, err)
	}

	return &inquiry.Inquiry{
		Entity: livequeue.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:     inquiryID,
		RoomID: roomID,
		Name:   m.Name,
		Guest: inquiry.GuestRef{
			ID:       visitorID,
			Username: m.Guest.Username,
			Token:    m.Guest.Token,
		},
		Message:      m.Message,
		Status:       inquiry.Status(m.Status),
		Department:   m.Department,
		Source:       m.Source,
		SLA:          m.SLA,
		Priority:     m.Priority,
		CustomFields: m.CustomFields,
		QueuedAt:     m.QueuedAt,
		TakenAt:      m.TakenAt,
	}, nil
}

// ── Room model ────────────────────────────────────────────────────

type visitorRefModel struct {
	ID       string `bson:"id"`
	Username string `bson:"username"`
	Name     string `bson:"name,omitempty"`
	Token    string `bson:"token,omitempty"`
}

type agentRefModel struct {
	ID       string `bson:"id"`
	Username string `bson:"username"`
}

type roomModel struct {
	ID          string          `bson:"_id"`
	Name        string          `bson:"name"`
	Open        bool            `bson:"open"`
	ServedBy    *agentRefModel  `bson:"served_by,omitempty"`
	Visitor     visitorRefModel `bson:"visitor"`
	Department  string          `bson:"department,omitempty"`
	Source      string          `bson:"source,omitempty"`
	LastMessage string          `bson:"last_message,omitempty"`
	ClosedAt    *time.Time      `bson:"closed_at,omitempty"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

func toRoomModel(r *room.Room) *roomModel {
	m := &roomModel{
		ID:   r.ID.String(),
		Name: r.Name,
		Open: r.Open,
		Visitor: visitorRefModel{
			ID:       r.Visitor.ID.String(),
			Username: r.Visitor.Username,
			Name:     r.Visitor.Name,
			Token:    r.Visitor.Token,
		},
		Department:  r.Department,
		Source:      r.Source,
		LastMessage: r.LastMessage,
		ClosedAt:    r.ClosedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ServedBy != nil {
		m.ServedBy = &agentRefModel{ID: r.ServedBy.ID.String(), Username: r.ServedBy.Username}
	}
	return m
}

func fromRoomModel(m *roomModel) (*room.Room, error) {
	roomID, err := id.ParseRoomID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("livequeue/mongo: parse room id %q: %w", m.ID, err)
	}
	visitorID, err := id.ParseVisitorID(m.Visitor.ID)
	if err != nil {
		return nil, fmt.Errorf("livequeue/mongo: parse visitor id %q: %w", m.Visitor.ID, err)
	}

	r := &room.Room{
		Entity: livequeue.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:   roomID,
		Name: m.Name,
		Open: m.Open,
		Visitor: room.VisitorRef{
			ID:       visitorID,
			Username: m.Visitor.Username,
			Name:     m.Visitor.Name,
			Token:    m.Visitor.Token,
		},
		Department:  m.Department,
		Source:      m.Source,
		LastMessage: m.LastMessage,
		ClosedAt:    m.ClosedAt,
	}
	if m.ServedBy != nil {
		agentID, err := id.ParseAgentID(m.ServedBy.ID)
		if err != nil {
			return nil, fmt.Errorf("livequeue/mongo: parse agent id %q: %w", m.ServedBy.ID, err)
		}
		r.ServedBy = &agent.Ref{ID: agentID, Username: m.ServedBy.Username}
	}
	return r, nil
}

// ── Notice model ──────────────────────────────────────────────────

type noticeModel struct {
	ID        string     `bson:"_id"`
	Topic     string     `bson:"topic"`
	Payload   []byte     `bson:"payload"`
	CreatedAt time.Time  `bson:"created_at"`
	AckedAt   *time.Time `bson:"acked_at,omitempty"`
}

func toNoticeModel(n *notify.Notice) *noticeModel {
	return &noticeModel{
		ID:        n.ID.String(),
		Topic:     n.Topic,
		Payload:   n.Payload,
		CreatedAt: n.CreatedAt,
		AckedAt:   n.AckedAt,
	}
}

func fromNoticeModel(m *noticeModel) (*notify.Notice, error) {
	noticeID, err := id.ParseNoticeID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("livequeue/mongo: parse notice id %q: %w", m.ID, err)
	}
	return &notify.Notice{
		ID:        noticeID,
		Topic:     m.Topic,
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
		AckedAt:   m.AckedAt,
	}, nil
}

// ── Instance model ────────────────────────────────────────────────

type instanceModel struct {
	ID          string     `bson:"_id"`
	Hostname    string     `bson:"hostname"`
	Departments []string   `bson:"departments,omitempty"`
	State       string     `bson:"state"`
	IsLeader    bool       `bson:"is_leader"`
	LeaderUntil *time.Time `bson:"leader_until,omitempty"`
	LastSeen    time.Time  `bson:"last_seen"`
	CreatedAt   time.Time  `bson:"created_at"`
}

func toInstanceModel(inst *cluster.Instance) *instanceModel {
	return &instanceModel{
		ID:          inst.ID.String(),
		Hostname:    inst.Hostname,
		Departments: inst.Departments,
		State:       string(inst.State),
		IsLeader:    inst.IsLeader,
		LeaderUntil: inst.LeaderUntil,
		LastSeen:    inst.LastSeen,
		CreatedAt:   inst.CreatedAt,
	}
}

func fromInstanceModel(m *instanceModel) (*cluster.Instance, error) {
	instanceID, err := id.ParseInstanceID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("livequeue/mongo: parse instance id %q: %w", m.ID, err)
	}
	return &cluster.Instance{
		ID:          instanceID,
		Hostname:    m.Hostname,
		Departments: m.Departments,
		State:       cluster.InstanceState(m.State),
		IsLeader:    m.IsLeader,
		LeaderUntil: m.LeaderUntil,
		LastSeen:    m.LastSeen,
		CreatedAt:   m.CreatedAt,
	}, nil
}
