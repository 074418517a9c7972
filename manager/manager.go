// Package manager implements the queue manager: the stateless orchestrator
// that turns incoming chat requests into open, routed-or-queued rooms.
//
// The manager owns no persisted state. It reads and writes through the
// inquiry and room stores, asks the agent directory availability questions,
// gates routing on the capacity limit, and hands agent assignment to the
// configured routing strategy. All collaborators are injected at
// construction so tests can swap in doubles.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/capacity"
	"github.com/omnikit/livequeue/ext"
	"github.com/omnikit/livequeue/guest"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/notify"
	"github.com/omnikit/livequeue/room"
	"github.com/omnikit/livequeue/routing"
)

// tracerName is the instrumentation scope name for manager tracing.
const tracerName = "github.com/omnikit/livequeue/manager"

// SettingTotalConversations is the aggregate broadcast on every new room.
const SettingTotalConversations = "total_conversations"

// Store is the slice of the aggregate store the manager needs.
type Store interface {
	inquiry.Store
	room.Store
}

// Manager orchestrates room creation, inquiry creation, capacity checks,
// and delegation to the routing strategy.
type Manager struct {
	store      Store
	directory  agent.Directory
	strategy   routing.Strategy
	gate       capacity.Gate
	extensions *ext.Registry
	notifier   notify.Notifier
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Manager.
type Option func(*Manager)

// WithCapacityGate sets the concurrent-conversation gate. Defaults to
// capacity.Unlimited.
func WithCapacityGate(g capacity.Gate) Option {
	return func(m *Manager) { m.gate = g }
}

// WithExtensions sets the extension registry the manager emits through.
func WithExtensions(r *ext.Registry) Option {
	return func(m *Manager) { m.extensions = r }
}

// WithNotifier sets the change-notification sink. Defaults to
// notify.Discard.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTracerProvider sets the tracer provider used for manager spans.
// If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) { m.tracer = tp.Tracer(tracerName) }
}

// New creates a queue manager with the given collaborators.
func New(st Store, directory agent.Directory, strategy routing.Strategy, opts ...Option) *Manager {
	m := &Manager{
		store:     st,
		directory: directory,
		strategy:  strategy,
		gate:      capacity.Unlimited{},
		notifier:  notify.Discard{},
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.extensions == nil {
		m.extensions = ext.NewRegistry(m.logger)
	}
	return m
}

// RoutesAutomatically reports whether the configured strategy assigns
// agents without manual claims. The sweeper only advances queued inquiries
// under automatic routing; under manual routing they wait for TakeInquiry.
func (m *Manager) RoutesAutomatically() bool {
	return m.strategy.Config().AutoAssign
}

// RoomRequest carries the input for RequestRoom.
type RoomRequest struct {
	// Guest is the visitor requesting the conversation. Required.
	Guest guest.Guest

	// Agent optionally pre-selects a specific agent. When set, availability
	// is checked against this agent instead of the department.
	Agent *agent.Selected

	// Message is the visitor's initial message, carried onto the inquiry.
	Message string

	// RoomName overrides the resolved display name. Falls back to the
	// guest's name, then username.
	RoomName string

	// Source is the originating channel (widget, sms, email, ...).
	Source string

	// Routing metadata carried onto the inquiry.
	SLA          string
	Priority     int
	CustomFields map[string]any
}

// RequestRoom produces an open, routed-or-queued room for the guest.
//
// The guest is validated and service availability is resolved before any
// state is mutated. A room and its inquiry are then created in that order,
// each re-read after creation; a record missing immediately after its own
// write is a store consistency fault and fails the request. Finally the
// queueing procedure runs and the resulting room is returned.
func (m *Manager) RequestRoom(ctx context.Context, req RoomRequest) (rm *room.Room, err error) {
	ctx, span := m.tracer.Start(ctx, "livequeue.request_room",
		trace.WithAttributes(
			attribute.String("livequeue.guest.username", req.Guest.Username),
			attribute.String("livequeue.department", req.Guest.Department),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() { endSpan(span, err) }()

	if err := req.Guest.Validate(); err != nil {
		return nil, err
	}
	if err := m.checkServiceStatus(ctx, req.Guest.Department, req.Agent); err != nil {
		return nil, err
	}

	name := req.RoomName
	if name == "" {
		name = req.Guest.DisplayName()
	}

	created := &room.Room{
		ID:   id.NewRoomID(),
		Name: name,
		Open: true,
		Visitor: room.VisitorRef{
			ID:       req.Guest.ID,
			Username: req.Guest.Username,
			Name:     req.Guest.Name,
			Token:    req.Guest.Token,
		},
		Department: req.Guest.Department,
		Source:     req.Source,
	}
	if err := m.store.CreateRoom(ctx, created); err != nil {
		return nil, fmt.Errorf("manager: create room: %w", err)
	}
	rm, err = m.store.GetRoom(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("manager: read back created room %s: %w", created.ID, err)
	}
	span.SetAttributes(attribute.String("livequeue.room.id", rm.ID.String()))

	inq, err := m.createInquiry(ctx, rm, req.Guest, req.Message, req.SLA, req.Priority, req.CustomFields)
	if err != nil {
		return nil, err
	}

	m.extensions.EmitRoomStarted(ctx, rm)
	m.broadcastRoomCount(ctx)

	if err := m.QueueInquiry(ctx, inq, req.Agent); err != nil {
		return nil, err
	}

	final, err := m.store.GetRoom(ctx, rm.ID)
	if err != nil {
		return nil, fmt.Errorf("manager: read final room %s: %w", rm.ID, err)
	}
	return final, nil
}

// UnarchiveRoom reopens a closed room and re-enters it into the routing
// queue. A room that lacks an identifier or close timestamp, or is already
// open, is returned unchanged.
func (m *Manager) UnarchiveRoom(ctx context.Context, rm *room.Room) (out *room.Room, err error) {
	if rm == nil {
		return nil, livequeue.ErrNoRoomToUnarchive
	}
	if rm.ID.IsNil() || rm.ClosedAt == nil || rm.Open {
		// Already live (or never archived). A valid terminal state.
		return rm, nil
	}

	ctx, span := m.tracer.Start(ctx, "livequeue.unarchive_room",
		trace.WithAttributes(attribute.String("livequeue.room.id", rm.ID.String())),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() { endSpan(span, err) }()

	// A stale inquiry cannot be reused: its lifecycle state no longer
	// reflects a live conversation.
	removedID, err := m.store.RemoveInquiryByRoom(ctx, rm.ID)
	switch {
	case err == nil:
		m.extensions.EmitInquiryRemoved(ctx, removedID)
		if nerr := m.notifier.InquiryRemoved(ctx, removedID); nerr != nil {
			m.logger.Warn("inquiry-removed notification failed",
				slog.String("inquiry_id", removedID.String()),
				slog.String("error", nerr.Error()),
			)
		}
	case errors.Is(err, livequeue.ErrInquiryNotFound):
		// Nothing to clean up.
	default:
		return nil, fmt.Errorf("manager: remove stale inquiry for room %s: %w", rm.ID, err)
	}

	g := guest.Guest{
		ID:         rm.Visitor.ID,
		Username:   rm.Visitor.Username,
		Name:       rm.Visitor.Name,
		Token:      rm.Visitor.Token,
		Department: rm.Department,
	}
	selected := m.previousAgent(ctx, rm)

	if err := m.store.UnarchiveRoom(ctx, rm.ID); err != nil {
		return nil, fmt.Errorf("manager: unarchive room %s: %w", rm.ID, err)
	}
	fresh, err := m.store.GetRoom(ctx, rm.ID)
	if err != nil {
		return nil, fmt.Errorf("manager: read back unarchived room %s: %w", rm.ID, err)
	}

	inq, err := m.createInquiry(ctx, fresh, g, fresh.LastMessage, "", 0, nil)
	if err != nil {
		return nil, err
	}

	m.extensions.EmitRoomUnarchived(ctx, fresh)

	if err := m.QueueInquiry(ctx, inq, selected); err != nil {
		return nil, err
	}

	final, err := m.store.GetRoom(ctx, fresh.ID)
	if err != nil {
		return nil, fmt.Errorf("manager: read final room %s: %w", fresh.ID, err)
	}
	return final, nil
}

// QueueInquiry advances an inquiry toward routing, respecting the capacity
// limit. A missing room or an exceeded limit parks the inquiry in queued
// status and returns normally: queued is a durable, resumable state, and
// the sweeper resumes parked inquiries once capacity frees up. Safe to call
// repeatedly on the same inquiry.
func (m *Manager) QueueInquiry(ctx context.Context, inq *inquiry.Inquiry, selected *agent.Selected) (err error) {
	ctx, span := m.tracer.Start(ctx, "livequeue.queue_inquiry",
		trace.WithAttributes(
			attribute.String("livequeue.inquiry.id", inq.ID.String()),
			attribute.String("livequeue.room.id", inq.RoomID.String()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() { endSpan(span, err) }()

	selected, err = m.strategy.DelegateAgent(ctx, selected, inq)
	if err != nil {
		return fmt.Errorf("manager: delegate agent: %w", err)
	}
	if err := m.extensions.EmitBeforeRouteChat(ctx, inq, selected); err != nil {
		return err
	}

	// The capacity check always runs against a fresh room read. A cached
	// room could hide a capacity change between enqueue and delegation.
	rm, err := m.store.GetRoom(ctx, inq.RoomID)
	if err != nil && !errors.Is(err, livequeue.ErrRoomNotFound) {
		return fmt.Errorf("manager: read room %s: %w", inq.RoomID, err)
	}
	within := false
	if rm != nil {
		within, err = m.gate.IsWithinLimit(ctx, rm)
		if err != nil {
			return fmt.Errorf("manager: capacity check: %w", err)
		}
	}
	if rm == nil || !within {
		span.SetAttributes(attribute.Bool("livequeue.parked", true))
		return m.parkInquiry(ctx, inq.ID)
	}

	fresh, err := m.store.GetInquiry(ctx, inq.ID)
	if err != nil {
		if errors.Is(err, livequeue.ErrInquiryNotFound) {
			// Raced by a removal; nothing left to route.
			return nil
		}
		return fmt.Errorf("manager: read inquiry %s: %w", inq.ID, err)
	}
	if fresh.Status != inquiry.StatusReady {
		// Still queued; a later sweep picks it up.
		return nil
	}

	if _, err := m.strategy.DelegateInquiry(ctx, fresh, selected, false, rm); err != nil {
		return fmt.Errorf("manager: delegate inquiry: %w", err)
	}
	return nil
}

// TakeInquiry lets a named agent claim an inquiry from the queue. Used by
// the manual routing flow. The agent must be online.
func (m *Manager) TakeInquiry(ctx context.Context, inquiryID id.InquiryID, selected *agent.Selected) (rm *room.Room, err error) {
	ctx, span := m.tracer.Start(ctx, "livequeue.take_inquiry",
		trace.WithAttributes(attribute.String("livequeue.inquiry.id", inquiryID.String())),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() { endSpan(span, err) }()

	if selected == nil {
		return nil, livequeue.ErrAgentNotFound
	}
	n, err := m.directory.CountOnlineAgents(ctx, selected.AgentID)
	if err != nil {
		return nil, fmt.Errorf("manager: agent availability: %w", err)
	}
	if n == 0 {
		return nil, livequeue.ErrNoAgentOnline
	}

	inq, err := m.store.GetInquiry(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	current, err := m.store.GetRoom(ctx, inq.RoomID)
	if err != nil {
		return nil, err
	}

	return m.strategy.DelegateInquiry(ctx, inq, selected, true, current)
}

// CloseRoom closes and archives an open room, removing its active inquiry
// if one remains. Closing an already-closed room is a no-op.
func (m *Manager) CloseRoom(ctx context.Context, roomID id.RoomID) (err error) {
	ctx, span := m.tracer.Start(ctx, "livequeue.close_room",
		trace.WithAttributes(attribute.String("livequeue.room.id", roomID.String())),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() { endSpan(span, err) }()

	rm, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !rm.Open {
		return nil
	}

	removedID, err := m.store.RemoveInquiryByRoom(ctx, roomID)
	switch {
	case err == nil:
		m.extensions.EmitInquiryRemoved(ctx, removedID)
		if nerr := m.notifier.InquiryRemoved(ctx, removedID); nerr != nil {
			m.logger.Warn("inquiry-removed notification failed",
				slog.String("inquiry_id", removedID.String()),
				slog.String("error", nerr.Error()),
			)
		}
	case errors.Is(err, livequeue.ErrInquiryNotFound):
	default:
		return fmt.Errorf("manager: remove inquiry for room %s: %w", roomID, err)
	}

	return m.store.CloseRoom(ctx, roomID, time.Now().UTC())
}

// Stats is a point-in-time snapshot of the queue.
type Stats struct {
	Queued    int `json:"queued"`
	Ready     int `json:"ready"`
	Taken     int `json:"taken"`
	OpenRooms int `json:"open_rooms"`
}

// QueueStats returns the current queue depth by status plus the open-room
// count.
func (m *Manager) QueueStats(ctx context.Context) (*Stats, error) {
	var s Stats
	var err error
	if s.Queued, err = m.store.CountByStatus(ctx, inquiry.StatusQueued); err != nil {
		return nil, err
	}
	if s.Ready, err = m.store.CountByStatus(ctx, inquiry.StatusReady); err != nil {
		return nil, err
	}
	if s.Taken, err = m.store.CountByStatus(ctx, inquiry.StatusTaken); err != nil {
		return nil, err
	}
	if s.OpenRooms, err = m.store.CountOpenRooms(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

// ──────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────

// checkServiceStatus resolves availability before any state mutation. With
// a pre-selected agent, that specific agent must have an active session;
// otherwise the department (or global service) must be online.
func (m *Manager) checkServiceStatus(ctx context.Context, department string, selected *agent.Selected) error {
	if selected != nil {
		n, err := m.directory.CountOnlineAgents(ctx, selected.AgentID)
		if err != nil {
			return fmt.Errorf("manager: agent availability: %w", err)
		}
		if n == 0 {
			return livequeue.ErrNoAgentOnline
		}
		return nil
	}

	online, err := m.directory.IsServiceOnline(ctx, department)
	if err != nil {
		return fmt.Errorf("manager: service availability: %w", err)
	}
	if !online {
		return livequeue.ErrNoAgentOnline
	}
	return nil
}

// createInquiry persists the inquiry for a room and reads it back. The
// initial status follows the routing strategy: auto-assigning strategies
// create inquiries ready for immediate delegation, manual ones create them
// queued until an agent claims them.
func (m *Manager) createInquiry(ctx context.Context, rm *room.Room, g guest.Guest, message, sla string, priority int, custom map[string]any) (*inquiry.Inquiry, error) {
	status := inquiry.StatusQueued
	if m.strategy.Config().AutoAssign {
		status = inquiry.StatusReady
	}

	created := &inquiry.Inquiry{
		ID:     id.NewInquiryID(),
		RoomID: rm.ID,
		Name:   rm.Name,
		Guest: inquiry.GuestRef{
			ID:       g.ID,
			Username: g.Username,
			Token:    g.Token,
		},
		Message:      message,
		Status:       status,
		Department:   g.Department,
		Source:       rm.Source,
		SLA:          sla,
		Priority:     priority,
		CustomFields: custom,
		QueuedAt:     time.Now().UTC(),
	}
	if err := m.store.CreateInquiry(ctx, created); err != nil {
		return nil, fmt.Errorf("manager: create inquiry for room %s: %w", rm.ID, err)
	}

	inq, err := m.store.GetInquiry(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("manager: read back created inquiry %s: %w", created.ID, err)
	}

	if nerr := m.notifier.InquiryChanged(ctx, inq, notify.KindCreated); nerr != nil {
		m.logger.Warn("inquiry-created notification failed",
			slog.String("inquiry_id", inq.ID.String()),
			slog.String("error", nerr.Error()),
		)
	}
	return inq, nil
}

// parkInquiry places the inquiry into queued status and announces the
// change. Returning nil is deliberate: parking is the designed degradation,
// not a failure.
func (m *Manager) parkInquiry(ctx context.Context, inquiryID id.InquiryID) error {
	parked, err := m.store.QueueInquiry(ctx, inquiryID)
	if err != nil {
		return fmt.Errorf("manager: park inquiry %s: %w", inquiryID, err)
	}
	if parked == nil {
		// Removed while we were deciding; nothing to park.
		return nil
	}

	m.extensions.EmitInquiryQueued(ctx, parked)
	if nerr := m.notifier.InquiryChanged(ctx, parked, notify.KindUpdated); nerr != nil {
		m.logger.Warn("inquiry-queued notification failed",
			slog.String("inquiry_id", parked.ID.String()),
			slog.String("error", nerr.Error()),
		)
	}
	return nil
}

// previousAgent pre-selects the room's previous serving agent when they
// still have an online session. Availability errors leave the selection
// open rather than failing the unarchive.
func (m *Manager) previousAgent(ctx context.Context, rm *room.Room) *agent.Selected {
	if rm.ServedBy == nil {
		return nil
	}
	n, err := m.directory.CountOnlineAgents(ctx, rm.ServedBy.ID)
	if err != nil {
		m.logger.Warn("previous-agent availability check failed",
			slog.String("agent_id", rm.ServedBy.ID.String()),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if n == 0 {
		return nil
	}
	return &agent.Selected{AgentID: rm.ServedBy.ID, Username: rm.ServedBy.Username}
}

// broadcastRoomCount bumps the all-time conversation aggregate and
// broadcasts the new total. Best effort: never on the critical chain.
func (m *Manager) broadcastRoomCount(ctx context.Context) {
	total, err := m.store.UpdateRoomCount(ctx)
	if err != nil {
		m.logger.Warn("room-count update failed", slog.String("error", err.Error()))
		return
	}
	if err := m.notifier.SettingChanged(ctx, SettingTotalConversations, total); err != nil {
		m.logger.Warn("setting-changed notification failed",
			slog.String("setting", SettingTotalConversations),
			slog.String("error", err.Error()),
		)
	}
}

// endSpan records the outcome on a span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
