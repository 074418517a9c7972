package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
)

// Ensure Bus implements Notifier at compile time.
var _ Notifier = (*Bus)(nil)

// Bus provides durable at-least-once notifications over a notify Store.
// External consumers poll with Subscribe and Ack what they have handled.
type Bus struct {
	store Store
}

// NewBus creates a notification bus backed by the given store.
func NewBus(store Store) *Bus {
	return &Bus{store: store}
}

// Publish persists a raw notice on a topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) (*Notice, error) {
	n := &Notice{
		ID:        id.NewNoticeID(),
		Topic:     topic,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := b.store.PublishNotice(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Subscribe waits for an unacked notice on the topic. Blocks until one is
// available or the timeout expires. Returns nil on timeout.
func (b *Bus) Subscribe(ctx context.Context, topic string, timeout time.Duration) (*Notice, error) {
	return b.store.SubscribeNotice(ctx, topic, timeout)
}

// Ack acknowledges a notice, marking it as consumed.
func (b *Bus) Ack(ctx context.Context, noticeID id.NoticeID) error {
	return b.store.AckNotice(ctx, noticeID)
}

// Store returns the underlying notice store.
func (b *Bus) Store() Store { return b.store }

// ──────────────────────────────────────────────────
// Notifier implementation
// ──────────────────────────────────────────────────

// InquiryChanged implements Notifier.
func (b *Bus) InquiryChanged(ctx context.Context, inq *inquiry.Inquiry, kind Kind) error {
	payload, err := json.Marshal(InquiryChange{
		InquiryID: inq.ID,
		RoomID:    inq.RoomID,
		Status:    inq.Status,
		Kind:      kind,
		QueuedAt:  inq.QueuedAt,
		TakenAt:   inq.TakenAt,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal inquiry change: %w", err)
	}
	_, err = b.Publish(ctx, TopicInquiryChanged, payload)
	return err
}

// InquiryRemoved implements Notifier.
func (b *Bus) InquiryRemoved(ctx context.Context, inquiryID id.InquiryID) error {
	payload, err := json.Marshal(InquiryChange{
		InquiryID: inquiryID,
		Status:    inquiry.StatusRemoved,
		Kind:      KindRemoved,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal inquiry removal: %w", err)
	}
	_, err = b.Publish(ctx, TopicInquiryRemoved, payload)
	return err
}

// SettingChanged implements Notifier.
func (b *Bus) SettingChanged(ctx context.Context, name string, value any) error {
	payload, err := json.Marshal(SettingChange{Name: name, Value: value})
	if err != nil {
		return fmt.Errorf("notify: marshal setting change: %w", err)
	}
	_, err = b.Publish(ctx, TopicSettingChanged, payload)
	return err
}
