package routing

import (
	"context"
	"log/slog"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/ext"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/notify"
	"github.com/omnikit/livequeue/room"
)

// Ensure ManualSelection implements Strategy at compile time.
var _ Strategy = (*ManualSelection)(nil)

// ManualSelection leaves inquiries queued until an agent explicitly claims
// one. Delegation assigns only when a concrete agent was named, either as a
// request hint or through a take operation.
type ManualSelection struct {
	inquiries  inquiry.Store
	rooms      room.Store
	extensions *ext.Registry
	notifier   notify.Notifier
	logger     *slog.Logger
}

// NewManualSelection creates the manual routing strategy.
func NewManualSelection(
	inquiries inquiry.Store,
	rooms room.Store,
	extensions *ext.Registry,
	notifier notify.Notifier,
	logger *slog.Logger,
) *ManualSelection {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManualSelection{
		inquiries:  inquiries,
		rooms:      rooms,
		extensions: extensions,
		notifier:   notifier,
		logger:     logger,
	}
}

// Config implements Strategy.
func (s *ManualSelection) Config() Config {
	return Config{Name: "manual-selection", AutoAssign: false}
}

// DelegateAgent implements Strategy: the hint passes through untouched.
func (s *ManualSelection) DelegateAgent(_ context.Context, selected *agent.Selected, _ *inquiry.Inquiry) (*agent.Selected, error) {
	return selected, nil
}

// DelegateInquiry implements Strategy. Without a named agent this is a
// no-op: the inquiry stays in the queue for an agent to claim.
func (s *ManualSelection) DelegateInquiry(ctx context.Context, inq *inquiry.Inquiry, selected *agent.Selected, override bool, rm *room.Room) (*room.Room, error) {
	if selected == nil {
		return rm, nil
	}
	if rm.ServedBy != nil && !override {
		return rm, nil
	}

	served := &agent.Ref{ID: selected.AgentID, Username: selected.Username}
	return takeAndAssign(ctx, s.inquiries, s.rooms, s.extensions, s.notifier, s.logger, inq, served, rm)
}
