package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/notify"
)

// PublishNotice persists a new notice.
func (s *Store) PublishNotice(ctx context.Context, n *notify.Notice) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	if _, err := s.db.Collection(colNotices).InsertOne(ctx, toNoticeModel(n)); err != nil {
		return fmt.Errorf("livequeue/mongo: publish notice: %w", err)
	}
	return nil
}

// SubscribeNotice polls for the oldest unacked notice on the topic until one
// arrives or the timeout expires. Timeout returns (nil, nil).
func (s *Store) SubscribeNotice(ctx context.Context, topic string, timeout time.Duration) (*notify.Notice, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.subscribePollInterval)
	defer ticker.Stop()

	for {
		n, err := s.oldestUnacked(ctx, topic)
		if err != nil {
			return nil, err
		}
		if n != nil {
			return n, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Store) oldestUnacked(ctx context.Context, topic string) (*notify.Notice, error) {
	var m noticeModel
	err := s.db.Collection(colNotices).
		FindOne(ctx,
			bson.M{
				"topic":    topic,
				"acked_at": bson.M{"$exists": false},
			},
			options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}}),
		).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("livequeue/mongo: find notice: %w", err)
	}
	return fromNoticeModel(&m)
}

// AckNotice marks a notice as consumed. Acking twice, or acking a notice
// that never existed, is a no-op.
func (s *Store) AckNotice(ctx context.Context, noticeID id.NoticeID) error {
	_, err := s.db.Collection(colNotices).
		UpdateOne(ctx,
			bson.M{
				"_id":      noticeID.String(),
				"acked_at": bson.M{"$exists": false},
			},
			bson.M{"$set": bson.M{"acked_at": now()}},
		)
	if err != nil {
		return fmt.Errorf("livequeue/mongo: ack notice: %w", err)
	}
	return nil
}
