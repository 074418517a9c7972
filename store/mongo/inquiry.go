package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
)

// CreateInquiry persists a new inquiry. The partial unique index on room_id
// turns a second active inquiry for the same room into a duplicate-key
// error, which maps to ErrInquiryExists.
func (s *Store) CreateInquiry(ctx context.Context, inq *inquiry.Inquiry) error {
	ts := now()
	if inq.CreatedAt.IsZero() {
		inq.CreatedAt = ts
	}
	inq.UpdatedAt = ts

	_, err := s.db.Collection(colInquiries).InsertOne(ctx, toInquiryModel(inq))
	if err != nil {
		if isDuplicateKey(err) {
			return livequeue.ErrInquiryExists
		}
		return fmt.Errorf("livequeue/mongo: create inquiry: %w", err)
	}
	return nil
}

// GetInquiry retrieves an inquiry by ID.
func (s *Store) GetInquiry(ctx context.Context, inquiryID id.InquiryID) (*inquiry.Inquiry, error) {
	var m inquiryModel
	err := s.db.Collection(colInquiries).
		FindOne(ctx, bson.M{"_id": inquiryID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, livequeue.ErrInquiryNotFound
		}
		return nil, fmt.Errorf("livequeue/mongo: get inquiry: %w", err)
	}
	return fromInquiryModel(&m)
}

// GetInquiryByRoom retrieves the active inquiry for a room.
func (s *Store) GetInquiryByRoom(ctx context.Context, roomID id.RoomID) (*inquiry.Inquiry, error) {
	var m inquiryModel
	err := s.db.Collection(colInquiries).
		FindOne(ctx, bson.M{
			"room_id": roomID.String(),
			"status":  bson.M{"$in": activeStatuses},
		}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, livequeue.ErrInquiryNotFound
		}
		return nil, fmt.Errorf("livequeue/mongo: get inquiry by room: %w", err)
	}
	return fromInquiryModel(&m)
}

// QueueInquiry atomically parks an inquiry. A missing inquiry is not an
// error: the caller raced a removal and gets nil back.
func (s *Store) QueueInquiry(ctx context.Context, inquiryID id.InquiryID) (*inquiry.Inquiry, error) {
	ts := now()
	var m inquiryModel
	err := s.db.Collection(colInquiries).
		FindOneAndUpdate(ctx,
			bson.M{
				"_id":    inquiryID.String(),
				"status": bson.M{"$ne": string(inquiry.StatusRemoved)},
			},
			bson.M{
				"$set": bson.M{
					"status":     string(inquiry.StatusQueued),
					"queued_at":  ts,
					"updated_at": ts,
				},
				"$unset": bson.M{"taken_at": ""},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("livequeue/mongo: queue inquiry: %w", err)
	}
	return fromInquiryModel(&m)
}

// ReadyInquiry atomically transitions a queued inquiry to ready.
func (s *Store) ReadyInquiry(ctx context.Context, inquiryID id.InquiryID) (*inquiry.Inquiry, error) {
	ts := now()
	var m inquiryModel
	err := s.db.Collection(colInquiries).
		FindOneAndUpdate(ctx,
			bson.M{
				"_id":    inquiryID.String(),
				"status": string(inquiry.StatusQueued),
			},
			bson.M{"$set": bson.M{
				"status":     string(inquiry.StatusReady),
				"updated_at": ts,
			}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			// Distinguish a wrong-state inquiry from a missing one.
			if _, getErr := s.GetInquiry(ctx, inquiryID); getErr == nil {
				return nil, livequeue.ErrInvalidState
			}
			return nil, livequeue.ErrInquiryNotFound
		}
		return nil, fmt.Errorf("livequeue/mongo: ready inquiry: %w", err)
	}
	return fromInquiryModel(&m)
}

// TakeInquiry atomically transitions a queued or ready inquiry to taken.
func (s *Store) TakeInquiry(ctx context.Context, inquiryID id.InquiryID, agentID id.AgentID) (*inquiry.Inquiry, error) {
	ts := now()
	var m inquiryModel
	err := s.db.Collection(colInquiries).
		FindOneAndUpdate(ctx,
			bson.M{
				"_id": inquiryID.String(),
				"status": bson.M{"$in": []string{
					string(inquiry.StatusQueued),
					string(inquiry.StatusReady),
				}},
			},
			bson.M{"$set": bson.M{
				"status":     string(inquiry.StatusTaken),
				"taken_at":   ts,
				"updated_at": ts,
			}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			if _, getErr := s.GetInquiry(ctx, inquiryID); getErr == nil {
				return nil, livequeue.ErrInvalidState
			}
			return nil, livequeue.ErrInquiryNotFound
		}
		return nil, fmt.Errorf("livequeue/mongo: take inquiry: %w", err)
	}
	return fromInquiryModel(&m)
}

// RemoveInquiryByRoom marks the active inquiry for a room as removed and
// returns its ID. The removal frees the partial-unique-index slot so a
// fresh inquiry can be created for the room.
func (s *Store) RemoveInquiryByRoom(ctx context.Context, roomID id.RoomID) (id.InquiryID, error) {
	var m inquiryModel
	err := s.db.Collection(colInquiries).
		FindOneAndUpdate(ctx,
			bson.M{
				"room_id": roomID.String(),
				"status":  bson.M{"$in": activeStatuses},
			},
			bson.M{"$set": bson.M{
				"status":     string(inquiry.StatusRemoved),
				"updated_at": now(),
			}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return id.Nil, livequeue.ErrInquiryNotFound
		}
		return id.Nil, fmt.Errorf("livequeue/mongo: remove inquiry by room: %w", err)
	}
	removed, err := id.ParseInquiryID(m.ID)
	if err != nil {
		return id.Nil, fmt.Errorf("livequeue/mongo: parse inquiry id %q: %w", m.ID, err)
	}
	return removed, nil
}

// ListQueued returns queued inquiries ordered oldest first.
func (s *Store) ListQueued(ctx context.Context, opts inquiry.ListOpts) ([]*inquiry.Inquiry, error) {
	filter := bson.M{"status": string(inquiry.StatusQueued)}
	if opts.Department != "" {
		filter["department"] = opts.Department
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "queued_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := s.db.Collection(colInquiries).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("livequeue/mongo: list queued: %w", err)
	}
	defer cur.Close(ctx)

	var out []*inquiry.Inquiry
	for cur.Next(ctx) {
		var m inquiryModel
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("livequeue/mongo: decode inquiry: %w", err)
		}
		inq, err := fromInquiryModel(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, inq)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("livequeue/mongo: list queued: %w", err)
	}
	return out, nil
}

// CountByStatus returns the number of inquiries with the given status.
func (s *Store) CountByStatus(ctx context.Context, status inquiry.Status) (int, error) {
	n, err := s.db.Collection(colInquiries).
		CountDocuments(ctx, bson.M{"status": string(status)})
	if err != nil {
		return 0, fmt.Errorf("livequeue/mongo: count inquiries: %w", err)
	}
	return int(n), nil
}
