package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/ext"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/notify"
	"github.com/omnikit/livequeue/room"
)

// Ensure AutoSelection implements Strategy at compile time.
var _ Strategy = (*AutoSelection)(nil)

// AutoSelection assigns the least busy online agent to each ready inquiry.
// Inquiries are created ready so delegation happens as soon as the queueing
// procedure runs.
type AutoSelection struct {
	inquiries  inquiry.Store
	rooms      room.Store
	directory  agent.Directory
	extensions *ext.Registry
	notifier   notify.Notifier
	logger     *slog.Logger
}

// NewAutoSelection creates the automatic routing strategy.
func NewAutoSelection(
	inquiries inquiry.Store,
	rooms room.Store,
	directory agent.Directory,
	extensions *ext.Registry,
	notifier notify.Notifier,
	logger *slog.Logger,
) *AutoSelection {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoSelection{
		inquiries:  inquiries,
		rooms:      rooms,
		directory:  directory,
		extensions: extensions,
		notifier:   notifier,
		logger:     logger,
	}
}

// Config implements Strategy.
func (s *AutoSelection) Config() Config {
	return Config{Name: "auto-selection", AutoAssign: true}
}

// DelegateAgent implements Strategy. The hint wins when present; otherwise
// assignment is deferred to DelegateInquiry, which reads fresh presence.
func (s *AutoSelection) DelegateAgent(_ context.Context, selected *agent.Selected, _ *inquiry.Inquiry) (*agent.Selected, error) {
	return selected, nil
}

// DelegateInquiry implements Strategy.
func (s *AutoSelection) DelegateInquiry(ctx context.Context, inq *inquiry.Inquiry, selected *agent.Selected, override bool, rm *room.Room) (*room.Room, error) {
	if rm.ServedBy != nil && !override {
		// Already served; nothing to assign.
		return rm, nil
	}

	served, err := s.resolveAgent(ctx, selected, inq)
	if err != nil {
		return nil, err
	}
	if served == nil {
		// No agent available right now. Not an error: the inquiry stays
		// queued and the sweeper retries later.
		s.logger.Debug("no agent available for inquiry",
			slog.String("inquiry_id", inq.ID.String()),
			slog.String("department", inq.Department),
		)
		return rm, nil
	}

	return takeAndAssign(ctx, s.inquiries, s.rooms, s.extensions, s.notifier, s.logger, inq, served, rm)
}

// resolveAgent turns the hint into an agent reference, falling back to the
// least busy online agent for the inquiry's department. A hinted agent who
// went offline since selection falls back to the pool.
func (s *AutoSelection) resolveAgent(ctx context.Context, selected *agent.Selected, inq *inquiry.Inquiry) (*agent.Ref, error) {
	if selected != nil {
		hinted, err := s.directory.FindOnlineAgentByUsername(ctx, selected.Username)
		if err != nil {
			return nil, fmt.Errorf("routing: resolve hinted agent: %w", err)
		}
		if hinted != nil {
			return &agent.Ref{ID: hinted.ID, Username: hinted.Username}, nil
		}
		s.logger.Debug("hinted agent offline, falling back to pool",
			slog.String("username", selected.Username),
		)
	}

	online, err := s.directory.OnlineAgents(ctx, inq.Department)
	if err != nil {
		return nil, fmt.Errorf("routing: list online agents: %w", err)
	}
	if len(online) == 0 {
		return nil, nil
	}
	best := online[0]
	return &agent.Ref{ID: best.ID, Username: best.Username}, nil
}

// takeAndAssign is the shared assignment commit: take the inquiry, assign
// the room, announce. Used by both built-in strategies.
func takeAndAssign(
	ctx context.Context,
	inquiries inquiry.Store,
	rooms room.Store,
	extensions *ext.Registry,
	notifier notify.Notifier,
	logger *slog.Logger,
	inq *inquiry.Inquiry,
	served *agent.Ref,
	rm *room.Room,
) (*room.Room, error) {
	taken, err := inquiries.TakeInquiry(ctx, inq.ID, served.ID)
	if err != nil {
		if errors.Is(err, livequeue.ErrInvalidState) {
			// Raced by another taker; the inquiry is already being served.
			return rm, nil
		}
		return nil, fmt.Errorf("routing: take inquiry: %w", err)
	}

	if err := rooms.SetAgent(ctx, rm.ID, served); err != nil {
		return nil, fmt.Errorf("routing: assign room: %w", err)
	}

	extensions.EmitInquiryTaken(ctx, taken, served)
	if err := notifier.InquiryChanged(ctx, taken, notify.KindUpdated); err != nil {
		// Fire-and-forget; assignment already committed.
		logger.Warn("inquiry-taken notification failed", "error", err)
	}

	return rooms.GetRoom(ctx, rm.ID)
}
