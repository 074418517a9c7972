package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
)

// Ensure Broker implements Notifier at compile time.
var _ Notifier = (*Broker)(nil)

// DefaultBufferSize is the default per-subscriber notice buffer.
const DefaultBufferSize = 256

// Broker is the in-process notification broker. It fans notices out to
// subscribers via topic-based pub/sub. Slow subscribers drop notices
// rather than blocking publishers: fire-and-forget, at-least-effort.
type Broker struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string][]*subscriber // topic → subscribers

	// Metrics.
	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	bufferSize int
}

type subscriber struct {
	ch     chan Notice
	closed atomic.Bool
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(n int) BrokerOption {
	return func(b *Broker) { b.bufferSize = n }
}

// WithBrokerLogger sets the broker's logger.
func WithBrokerLogger(l *slog.Logger) BrokerOption {
	return func(b *Broker) { b.logger = l }
}

// NewBroker creates an in-process broker.
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		logger:     slog.Default(),
		subs:       make(map[string][]*subscriber),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe returns a channel of notices for a topic and a cancel function.
// The channel is closed when cancel is called.
func (b *Broker) Subscribe(topic string) (<-chan Notice, func()) {
	sub := &subscriber{ch: make(chan Notice, b.bufferSize)}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	cancel := func() {
		if !sub.closed.CompareAndSwap(false, true) {
			return
		}
		// Close under the write lock, after removal: Publish sends while
		// holding the read lock, so no send can be in flight here and no
		// later Publish can still see this subscriber.
		b.mu.Lock()
		list := b.subs[topic]
		for i, s := range list {
			if s == sub {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				break
			}
		}
		close(sub.ch)
		b.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish fans a notice out to every subscriber of its topic. Notices to
// full subscriber buffers are dropped and counted.
func (b *Broker) Publish(n Notice) {
	b.totalPublished.Add(1)

	// Sends are non-blocking, so the read lock held across the fan-out
	// cannot stall a cancel for longer than one buffered send per sub.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[n.Topic] {
		select {
		case sub.ch <- n:
		default:
			b.totalDropped.Add(1)
			b.logger.Warn("notification dropped: subscriber buffer full",
				slog.String("topic", n.Topic),
			)
		}
	}
}

// Published returns the total number of notices published.
func (b *Broker) Published() int64 { return b.totalPublished.Load() }

// Dropped returns the total number of notices dropped.
func (b *Broker) Dropped() int64 { return b.totalDropped.Load() }

// ──────────────────────────────────────────────────
// Notifier implementation
// ──────────────────────────────────────────────────

func (b *Broker) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.Publish(Notice{
		ID:        id.NewNoticeID(),
		Topic:     topic,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// InquiryChanged implements Notifier.
func (b *Broker) InquiryChanged(_ context.Context, inq *inquiry.Inquiry, kind Kind) error {
	return b.publishJSON(TopicInquiryChanged, InquiryChange{
		InquiryID: inq.ID,
		RoomID:    inq.RoomID,
		Status:    inq.Status,
		Kind:      kind,
		QueuedAt:  inq.QueuedAt,
		TakenAt:   inq.TakenAt,
	})
}

// InquiryRemoved implements Notifier.
func (b *Broker) InquiryRemoved(_ context.Context, inquiryID id.InquiryID) error {
	return b.publishJSON(TopicInquiryRemoved, InquiryChange{
		InquiryID: inquiryID,
		Status:    inquiry.StatusRemoved,
		Kind:      KindRemoved,
	})
}

// SettingChanged implements Notifier.
func (b *Broker) SettingChanged(_ context.Context, name string, value any) error {
	return b.publishJSON(TopicSettingChanged, SettingChange{Name: name, Value: value})
}
