// Package notify delivers fire-and-forget change notifications: inquiry
// status transitions and aggregate setting changes. Delivery is
// at-least-once with no acknowledgment required by the core; a failed
// notification never fails the operation that produced it.
//
// Three transports are provided: an in-process Broker for same-process
// listeners (UI fanout, tests), a store-backed Bus for durable
// at-least-once delivery, and an AMQP publisher for cross-service fanout.
// Multi combines any of them.
package notify

import (
	"context"
	"time"

	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
)

// Topic constants for all notification kinds.
const (
	TopicInquiryChanged = "inquiry.changed"
	TopicInquiryRemoved = "inquiry.removed"
	TopicSettingChanged = "setting.changed"
)

// Kind qualifies an inquiry-changed notification.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindRemoved Kind = "removed"
)

// Notifier is the contract the queue manager emits through. All methods are
// fire-and-forget: errors are logged by the caller, never propagated.
type Notifier interface {
	// InquiryChanged announces a status transition on an inquiry.
	InquiryChanged(ctx context.Context, inq *inquiry.Inquiry, kind Kind) error

	// InquiryRemoved announces the removal of an inquiry by ID.
	InquiryRemoved(ctx context.Context, inquiryID id.InquiryID) error

	// SettingChanged broadcasts an aggregate setting change, e.g. the
	// all-time room count.
	SettingChanged(ctx context.Context, name string, value any) error
}

// Notice is a persisted notification, the unit handled by the store-backed
// Bus.
type Notice struct {
	ID        id.NoticeID `json:"id"`
	Topic     string      `json:"topic"`
	Payload   []byte      `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
	AckedAt   *time.Time  `json:"acked_at,omitempty"`
}

// Store defines the persistence contract for notices.
type Store interface {
	// PublishNotice persists a new notice and makes it available for
	// subscribers.
	PublishNotice(ctx context.Context, n *Notice) error

	// SubscribeNotice waits for an unacked notice on the given topic.
	// Blocks until one is available or the timeout expires. Returns nil on
	// timeout.
	SubscribeNotice(ctx context.Context, topic string, timeout time.Duration) (*Notice, error)

	// AckNotice acknowledges a notice, marking it as consumed.
	AckNotice(ctx context.Context, noticeID id.NoticeID) error
}

// InquiryChange is the payload carried on inquiry.changed notices.
type InquiryChange struct {
	InquiryID id.InquiryID   `json:"inquiry_id"`
	RoomID    id.RoomID      `json:"room_id"`
	Status    inquiry.Status `json:"status"`
	Kind      Kind           `json:"kind"`
	QueuedAt  time.Time      `json:"queued_at"`
	TakenAt   *time.Time     `json:"taken_at,omitempty"`
}

// SettingChange is the payload carried on setting.changed notices.
type SettingChange struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Discard is a Notifier that drops everything. Useful as a default.
type Discard struct{}

func (Discard) InquiryChanged(context.Context, *inquiry.Inquiry, Kind) error { return nil }
func (Discard) InquiryRemoved(context.Context, id.InquiryID) error           { return nil }
func (Discard) SettingChanged(context.Context, string, any) error            { return nil }

// Multi fans a notification out to several notifiers. The first error is
// returned after all notifiers have been attempted.
type Multi []Notifier

// InquiryChanged implements Notifier.
func (m Multi) InquiryChanged(ctx context.Context, inq *inquiry.Inquiry, kind Kind) error {
	var first error
	for _, n := range m {
		if err := n.InquiryChanged(ctx, inq, kind); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// InquiryRemoved implements Notifier.
func (m Multi) InquiryRemoved(ctx context.Context, inquiryID id.InquiryID) error {
	var first error
	for _, n := range m {
		if err := n.InquiryRemoved(ctx, inquiryID); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SettingChanged implements Notifier.
func (m Multi) SettingChanged(ctx context.Context, name string, value any) error {
	var first error
	for _, n := range m {
		if err := n.SettingChanged(ctx, name, value); err != nil && first == nil {
			first = err
		}
	}
	return first
}
