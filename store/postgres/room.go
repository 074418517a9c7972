package postgres

import (
	"context"
	"fmt"
	"time"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/room"
)

const roomColumns = `
	id, name, open, served_by_id, served_by_name,
	visitor_id, visitor_username, visitor_name, visitor_token,
	department, source, last_message, closed_at, created_at, updated_at`

// CreateRoom persists a new open room.
func (s *Store) CreateRoom(ctx context.Context, r *room.Room) error {
	ts := now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = ts
	}
	r.UpdatedAt = ts
	r.Open = true
	r.ClosedAt = nil

	var servedID, servedName *string
	if r.ServedBy != nil {
		sid, sname := r.ServedBy.ID.String(), r.ServedBy.Username
		servedID, servedName = &sid, &sname
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO livequeue_rooms (
			id, name, open, served_by_id, served_by_name,
			visitor_id, visitor_username, visitor_name, visitor_token,
			department, source, last_message, closed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15
		)`,
		r.ID.String(), r.Name, r.Open, servedID, servedName,
		r.Visitor.ID.String(), r.Visitor.Username, r.Visitor.Name, r.Visitor.Token,
		r.Department, r.Source, r.LastMessage, r.ClosedAt, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return livequeue.ErrRoomExists
		}
		return fmt.Errorf("livequeue/postgres: create room: %w", err)
	}
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, roomID id.RoomID) (*room.Room, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM livequeue_rooms WHERE id = $1`,
		roomID.String(),
	)
	r, err := scanRoom(row)
	if err != nil {
		if isNoRows(err) {
			return nil, livequeue.ErrRoomNotFound
		}
		return nil, fmt.Errorf("livequeue/postgres: get room: %w", err)
	}
	return r, nil
}

// SetAgent assigns or clears the serving agent on a room.
func (s *Store) SetAgent(ctx context.Context, roomID id.RoomID, served *agent.Ref) error {
	var servedID, servedName *string
	if served != nil {
		sid, sname := served.ID.String(), served.Username
		servedID, servedName = &sid, &sname
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE livequeue_rooms
		SET served_by_id = $2, served_by_name = $3, updated_at = NOW()
		WHERE id = $1`,
		roomID.String(), servedID, servedName,
	)
	if err != nil {
		return fmt.Errorf("livequeue/postgres: set agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return livequeue.ErrRoomNotFound
	}
	return nil
}

// SetLastMessage updates the room's last-message summary.
func (s *Store) SetLastMessage(ctx context.Context, roomID id.RoomID, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE livequeue_rooms
		SET last_message = $2, updated_at = NOW()
		WHERE id = $1`,
		roomID.String(), message,
	)
	if err != nil {
		return fmt.Errorf("livequeue/postgres: set last message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return livequeue.ErrRoomNotFound
	}
	return nil
}

// CloseRoom closes and archives a room.
func (s *Store) CloseRoom(ctx context.Context, roomID id.RoomID, closedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE livequeue_rooms
		SET open = FALSE, closed_at = $2, updated_at = NOW()
		WHERE id = $1`,
		roomID.String(), closedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("livequeue/postgres: close room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return livequeue.ErrRoomNotFound
	}
	return nil
}

// UnarchiveRoom reopens a closed room.
func (s *Store) UnarchiveRoom(ctx context.Context, roomID id.RoomID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE livequeue_rooms
		SET open = TRUE, closed_at = NULL, updated_at = NOW()
		WHERE id = $1`,
		roomID.String(),
	)
	if err != nil {
		return fmt.Errorf("livequeue/postgres: unarchive room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return livequeue.ErrRoomNotFound
	}
	return nil
}

// CountOpenRooms returns the current number of open rooms. Always a fresh
// read: the capacity gate depends on it.
func (s *Store) CountOpenRooms(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM livequeue_rooms WHERE open = TRUE`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("livequeue/postgres: count open rooms: %w", err)
	}
	return n, nil
}

// UpdateRoomCount increments the all-time conversation counter and returns
// the new total.
func (s *Store) UpdateRoomCount(ctx context.Context) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO livequeue_counters (name, value)
		VALUES ('total_conversations', 1)
		ON CONFLICT (name) DO UPDATE SET value = livequeue_counters.value + 1
		RETURNING value`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("livequeue/postgres: update room count: %w", err)
	}
	return total, nil
}

// ── scanning ─────────────────────────────────────────────────────

func scanRoom(row rowScanner) (*room.Room, error) {
	var (
		rawID, rawVisitorID  string
		servedID, servedName *string
		r                    room.Room
	)

	err := row.Scan(
		&rawID, &r.Name, &r.Open, &servedID, &servedName,
		&rawVisitorID, &r.Visitor.Username, &r.Visitor.Name, &r.Visitor.Token,
		&r.Department, &r.Source, &r.LastMessage, &r.ClosedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.ID, err = id.ParseRoomID(rawID); err != nil {
		return nil, fmt.Errorf("livequeue/postgres: parse room id %q: %w", rawID, err)
	}
	if r.Visitor.ID, err = id.ParseVisitorID(rawVisitorID); err != nil {
		return nil, fmt.Errorf("livequeue/postgres: parse visitor id %q: %w", rawVisitorID, err)
	}
	if servedID != nil {
		agentID, err := id.ParseAgentID(*servedID)
		if err != nil {
			return nil, fmt.Errorf("livequeue/postgres: parse agent id %q: %w", *servedID, err)
		}
		ref := agent.Ref{ID: agentID}
		if servedName != nil {
			ref.Username = *servedName
		}
		r.ServedBy = &ref
	}

	return &r, nil
}
