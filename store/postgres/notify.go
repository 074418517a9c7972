package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/notify"
)

// subscribePollInterval controls the SubscribeNotice polling cadence.
const subscribePollInterval = 100 * time.Millisecond

// PublishNotice persists a new notice.
func (s *Store) PublishNotice(ctx context.Context, n *notify.Notice) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO livequeue_notices (id, topic, payload, created_at, acked_at)
		VALUES ($1, $2, $3, $4, $5)`,
		n.ID.String(), n.Topic, n.Payload, n.CreatedAt, n.AckedAt,
	)
	if err != nil {
		return fmt.Errorf("livequeue/postgres: publish notice: %w", err)
	}
	return nil
}

// SubscribeNotice polls for the oldest unacked notice on the topic until one
// arrives or the timeout expires. Timeout returns (nil, nil).
func (s *Store) SubscribeNotice(ctx context.Context, topic string, timeout time.Duration) (*notify.Notice, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(subscribePollInterval)
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
	var (
		rawID string
		n     notify.Notice
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, topic, payload, created_at, acked_at
		FROM livequeue_notices
		WHERE topic = $1 AND acked_at IS NULL
		ORDER BY created_at ASC
		LIMIT 1`,
		topic,
	).Scan(&rawID, &n.Topic, &n.Payload, &n.CreatedAt, &n.AckedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("livequeue/postgres: find notice: %w", err)
	}
	if n.ID, err = id.ParseNoticeID(rawID); err != nil {
		return nil, fmt.Errorf("livequeue/postgres: parse notice id %q: %w", rawID, err)
	}
	return &n, nil
}

// AckNotice marks a notice as consumed. Acking twice, or acking a notice
// that never existed, is a no-op.
func (s *Store) AckNotice(ctx context.Context, noticeID id.NoticeID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE livequeue_notices
		SET acked_at = NOW()
		WHERE id = $1 AND acked_at IS NULL`,
		noticeID.String(),
	)
	if err != nil {
		return fmt.Errorf("livequeue/postgres: ack notice: %w", err)
	}
	return nil
}
