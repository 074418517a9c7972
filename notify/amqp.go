package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
)

// Ensure AMQPNotifier implements Notifier at compile time.
var _ Notifier = (*AMQPNotifier)(nil)

// Meta is the envelope metadata published with every AMQP notification.
type Meta struct {
	// ID is the unique message ID.
	ID string `json:"id"`
	// CorrelationID ties the notification to the originating request.
	CorrelationID string `json:"correlation_id,omitempty"`
	// Producer is the emitting service name.
	Producer string `json:"producer,omitempty"`
	// Time is when the notification was emitted.
	Time time.Time `json:"time"`
	// Type is the topic, e.g. "inquiry.changed".
	Type string `json:"type"`
}

// Envelope wraps a notification payload with its metadata.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// AMQPNotifier publishes notifications to a RabbitMQ topic exchange.
// Routing keys are the notify topic constants.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	exchange string
	producer string
	logger   *slog.Logger
}

// AMQPOption configures an AMQPNotifier.
type AMQPOption func(*AMQPNotifier)

// WithProducer sets the producer name stamped on every envelope.
func WithProducer(name string) AMQPOption {
	return func(n *AMQPNotifier) { n.producer = name }
}

// WithAMQPLogger sets the notifier's logger.
func WithAMQPLogger(l *slog.Logger) AMQPOption {
	return func(n *AMQPNotifier) { n.logger = l }
}

// NewAMQPNotifier dials the broker and declares a durable topic exchange.
func NewAMQPNotifier(url, exchange string, opts ...AMQPOption) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, err
	}

	n := &AMQPNotifier{
		conn:     conn,
		exchange: exchange,
		producer: "livequeue",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Close closes the broker connection.
func (n *AMQPNotifier) Close() error {
	return n.conn.Close()
}

func (n *AMQPNotifier) publish(ctx context.Context, topic string, data any) error {
	ch, err := n.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	msgID := uuid.NewString()
	body, err := json.Marshal(Envelope{
		Meta: Meta{
			ID:       msgID,
			Producer: n.producer,
			Time:     time.Now().UTC(),
			Type:     topic,
		},
		Data: data,
	})
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx, n.exchange, topic, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msgID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err == nil {
		n.logger.Debug("notification published",
			slog.String("topic", topic),
			slog.String("exchange", n.exchange),
		)
	}
	return err
}

// InquiryChanged implements Notifier.
func (n *AMQPNotifier) InquiryChanged(ctx context.Context, inq *inquiry.Inquiry, kind Kind) error {
	return n.publish(ctx, TopicInquiryChanged, InquiryChange{
		InquiryID: inq.ID,
		RoomID:    inq.RoomID,
		Status:    inq.Status,
		Kind:      kind,
		QueuedAt:  inq.QueuedAt,
		TakenAt:   inq.TakenAt,
	})
}

// InquiryRemoved implements Notifier.
func (n *AMQPNotifier) InquiryRemoved(ctx context.Context, inquiryID id.InquiryID) error {
	return n.publish(ctx, TopicInquiryRemoved, InquiryChange{
		InquiryID: inquiryID,
		Status:    inquiry.StatusRemoved,
		Kind:      KindRemoved,
	})
}

// SettingChanged implements Notifier.
func (n *AMQPNotifier) SettingChanged(ctx context.Context, name string, value any) error {
	return n.publish(ctx, TopicSettingChanged, SettingChange{Name: name, Value: value})
}
