package inquiry

import (
	"context"

	"github.com/omnikit/livequeue/id"
)

// ListOpts controls filtering for queued-inquiry queries.
type ListOpts struct {
	// Department filters by department. Empty means the global queue.
	Department string
	// Limit is the maximum number of inquiries to return. Zero means no limit.
	Limit int
}

// Store defines the persistence contract for inquiries.
//
// Implementations MUST enforce, through a unique index or an equivalent
// storage-level constraint, that at most one active (non-removed) inquiry
// exists per room: CreateInquiry returns livequeue.ErrInquiryExists when a
// second active inquiry would be created for the same room. The
// orchestration core depends on this and takes no distributed lock of its
// own.
type Store interface {
	// CreateInquiry persists a new inquiry in queued state.
	CreateInquiry(ctx context.Context, inq *Inquiry) error

	// GetInquiry retrieves an inquiry by ID.
	GetInquiry(ctx context.Context, inquiryID id.InquiryID) (*Inquiry, error)

	// GetInquiryByRoom retrieves the active inquiry for a room, or
	// livequeue.ErrInquiryNotFound when none exists.
	GetInquiryByRoom(ctx context.Context, roomID id.RoomID) (*Inquiry, error)

	// QueueInquiry atomically parks an inquiry: status queued, QueuedAt set
	// to now, TakenAt cleared. Returns the updated inquiry, or nil when the
	// inquiry no longer exists or is removed (a caller racing a removal is
	// not an error, and removed is terminal).
	QueueInquiry(ctx context.Context, inquiryID id.InquiryID) (*Inquiry, error)

	// ReadyInquiry atomically transitions a queued inquiry to ready.
	// Returns livequeue.ErrInvalidState when the current status is not
	// queued.
	ReadyInquiry(ctx context.Context, inquiryID id.InquiryID) (*Inquiry, error)

	// TakeInquiry atomically transitions a ready or queued inquiry to taken
	// by the given agent, setting TakenAt. Returns livequeue.ErrInvalidState
	// when the inquiry is already taken or removed.
	TakeInquiry(ctx context.Context, inquiryID id.InquiryID, agentID id.AgentID) (*Inquiry, error)

	// RemoveInquiryByRoom marks the active inquiry for a room as removed.
	// Returns the removed inquiry's ID, or livequeue.ErrInquiryNotFound
	// when the room has no active inquiry.
	RemoveInquiryByRoom(ctx context.Context, roomID id.RoomID) (id.InquiryID, error)

	// ListQueued returns queued inquiries ordered by QueuedAt ascending
	// (oldest first).
	ListQueued(ctx context.Context, opts ListOpts) ([]*Inquiry, error)

	// CountByStatus returns the number of inquiries with the given status.
	CountByStatus(ctx context.Context, status Status) (int, error)
}
