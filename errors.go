package livequeue

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("livequeue: no store configured")
	ErrStoreClosed = errors.New("livequeue: store closed")

	// Not found errors. A room or inquiry missing immediately after its own
	// creation signals a read-after-write anomaly in the store and is fatal
	// for the current request.
	ErrRoomNotFound     = errors.New("livequeue: room not found")
	ErrInquiryNotFound  = errors.New("livequeue: inquiry not found")
	ErrAgentNotFound    = errors.New("livequeue: agent not found")
	ErrInstanceNotFound = errors.New("livequeue: sweeper instance not found")

	// Availability errors. Rejected before any state mutation.
	ErrNoAgentOnline = errors.New("livequeue: no online agents")

	// Unarchive errors.
	ErrNoRoomToUnarchive = errors.New("livequeue: no room to unarchive")

	// Conflict errors. ErrInquiryExists is returned by stores when a second
	// active inquiry would be created for the same room. Enforcement is a
	// hard dependency on the store's unique index, not on coordination in
	// the orchestration core.
	ErrInquiryExists = errors.New("livequeue: active inquiry already exists for room")
	ErrRoomExists    = errors.New("livequeue: room already exists")

	// State errors.
	ErrInvalidState = errors.New("livequeue: invalid status transition")

	// Cluster errors.
	ErrLeadershipLost = errors.New("livequeue: leadership lost")
	ErrNotLeader      = errors.New("livequeue: not the leader")
)
