package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/room"
)

// CreateRoom persists a new open room.
func (s *Store) CreateRoom(ctx context.Context, r *room.Room) error {
	ts := now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = ts
	}
	r.UpdatedAt = ts
	r.Open = true
	r.ClosedAt = nil

	_, err := s.db.Collection(colRooms).InsertOne(ctx, toRoomModel(r))
	if err != nil {
		if isDuplicateKey(err) {
			return livequeue.ErrRoomExists
		}
		return fmt.Errorf("livequeue/mongo: create room: %w", err)
	}
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, roomID id.RoomID) (*room.Room, error) {
	var m roomModel
	err := s.db.Collection(colRooms).
		FindOne(ctx, bson.M{"_id": roomID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, livequeue.ErrRoomNotFound
		}
		return nil, fmt.Errorf("livequeue/mongo: get room: %w", err)
	}
	return fromRoomModel(&m)
}

// SetAgent assigns or clears the serving agent on a room.
func (s *Store) SetAgent(ctx context.Context, roomID id.RoomID, served *agent.Ref) error {
	set := bson.M{"updated_at": now()}
	update := bson.M{"$set": set}
	if served != nil {
		set["served_by"] = &agentRefModel{
			ID:       served.ID.String(),
			Username: served.Username,
		}
	} else {
		update["$unset"] = bson.M{"served_by": ""}
	}

	res, err := s.db.Collection(colRooms).
		UpdateOne(ctx, bson.M{"_id": roomID.String()}, update)
	if err != nil {
		return fmt.Errorf("livequeue/mongo: set agent: %w", err)
	}
	if res.MatchedCount == 0 {
		return livequeue.ErrRoomNotFound
	}
	return nil
}

// SetLastMessage updates the room's last-message summary.
func (s *Store) SetLastMessage(ctx context.Context, roomID id.RoomID, message string) error {
	res, err := s.db.Collection(colRooms).
		UpdateOne(ctx, bson.M{"_id": roomID.String()}, bson.M{"$set": bson.M{
			"last_message": message,
			"updated_at":   now(),
		}})
	if err != nil {
		return fmt.Errorf("livequeue/mongo: set last message: %w", err)
	}
	if res.MatchedCount == 0 {
		return livequeue.ErrRoomNotFound
	}
	return nil
}

// CloseRoom closes and archives an open room.
func (s *Store) CloseRoom(ctx context.Context, roomID id.RoomID, closedAt time.Time) error {
	res, err := s.db.Collection(colRooms).
		UpdateOne(ctx,
			bson.M{"_id": roomID.String()},
			bson.M{"$set": bson.M{
				"open":       false,
				"closed_at":  closedAt.UTC(),
				"updated_at": now(),
			}},
		)
	if err != nil {
		return fmt.Errorf("livequeue/mongo: close room: %w", err)
	}
	if res.MatchedCount == 0 {
		return livequeue.ErrRoomNotFound
	}
	return nil
}

// UnarchiveRoom reopens a closed room.
func (s *Store) UnarchiveRoom(ctx context.Context, roomID id.RoomID) error {
	res, err := s.db.Collection(colRooms).
		UpdateOne(ctx,
			bson.M{"_id": roomID.String()},
			bson.M{
				"$set":   bson.M{"open": true, "updated_at": now()},
				"$unset": bson.M{"closed_at": ""},
			},
		)
	if err != nil {
		return fmt.Errorf("livequeue/mongo: unarchive room: %w", err)
	}
	if res.MatchedCount == 0 {
		return livequeue.ErrRoomNotFound
	}
	return nil
}

// CountOpenRooms returns the current number of open rooms. Always a fresh
// read: the capacity gate depends on it.
func (s *Store) CountOpenRooms(ctx context.Context) (int, error) {
	n, err := s.db.Collection(colRooms).CountDocuments(ctx, bson.M{"open": true})
	if err != nil {
		return 0, fmt.Errorf("livequeue/mongo: count open rooms: %w", err)
	}
	return int(n), nil
}

// counterModel is the document shape for the aggregate counters collection.
type counterModel struct {
	ID    string `bson:"_id"`
	Value int    `bson:"value"`
}

// UpdateRoomCount increments the all-time conversation counter and returns
// the new total.
func (s *Store) UpdateRoomCount(ctx context.Context) (int, error) {
	var m counterModel
	err := s.db.Collection(colCounters).
		FindOneAndUpdate(ctx,
			bson.M{"_id": "total_conversations"},
			bson.M{"$inc": bson.M{"value": 1}},
			options.FindOneAndUpdate().
				SetUpsert(true).
				SetReturnDocument(options.After),
		).
		Decode(&m)
	if err != nil {
		return 0, fmt.Errorf("livequeue/mongo: update room count: %w", err)
	}
	return m.Value, nil
}
