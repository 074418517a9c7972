package room

import (
	"context"
	"time"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/id"
)

// Store defines the persistence contract for rooms.
type Store interface {
	// CreateRoom persists a new open room. Returns livequeue.ErrRoomExists
	// when the ID is already taken.
	CreateRoom(ctx context.Context, r *Room) error

	// GetRoom retrieves a room by ID, or livequeue.ErrRoomNotFound.
	GetRoom(ctx context.Context, roomID id.RoomID) (*Room, error)

	// SetAgent assigns the serving agent on a room. A nil ref clears the
	// assignment.
	SetAgent(ctx context.Context, roomID id.RoomID, served *agent.Ref) error

	// SetLastMessage updates the room's last-message summary.
	SetLastMessage(ctx context.Context, roomID id.RoomID, message string) error

	// CloseRoom closes and archives an open room.
	CloseRoom(ctx context.Context, roomID id.RoomID, closedAt time.Time) error

	// UnarchiveRoom reopens a closed room: Open set, ClosedAt cleared.
	UnarchiveRoom(ctx context.Context, roomID id.RoomID) error

	// CountOpenRooms returns the current number of open rooms. The capacity
	// gate calls this with a fresh read on every check.
	CountOpenRooms(ctx context.Context) (int, error)

	// UpdateRoomCount increments the all-time conversation aggregate and
	// returns the new total. The caller broadcasts the change as a
	// setting-changed notification.
	UpdateRoomCount(ctx context.Context) (int, error)
}
