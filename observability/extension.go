// Package observability provides ready-made extensions: OpenTelemetry
// lifecycle metrics and structured lifecycle logging. Register them on the
// extension registry to instrument the queueing pipeline without touching
// core code.
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/ext"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/room"
)

// meterName is the instrumentation scope name for livequeue metrics.
const meterName = "github.com/omnikit/livequeue/observability"

// Compile-time interface checks.
var (
	_ ext.Extension      = (*MetricsExtension)(nil)
	_ ext.RoomStarted    = (*MetricsExtension)(nil)
	_ ext.RoomUnarchived = (*MetricsExtension)(nil)
	_ ext.InquiryQueued  = (*MetricsExtension)(nil)
	_ ext.InquiryTaken   = (*MetricsExtension)(nil)
	_ ext.InquiryRemoved = (*MetricsExtension)(nil)

	_ ext.Extension      = (*LoggingExtension)(nil)
	_ ext.RoomStarted    = (*LoggingExtension)(nil)
	_ ext.RoomUnarchived = (*LoggingExtension)(nil)
	_ ext.InquiryQueued  = (*LoggingExtension)(nil)
	_ ext.InquiryTaken   = (*LoggingExtension)(nil)
	_ ext.InquiryRemoved = (*LoggingExtension)(nil)
)

// ──────────────────────────────────────────────────
// MetricsExtension
// ──────────────────────────────────────────────────

// MetricsExtension records queue lifecycle metrics through OpenTelemetry.
// Counters: rooms started/unarchived and inquiries queued/taken/removed.
// Inquiry counters carry the department as an attribute.
type MetricsExtension struct {
	roomsStarted    metric.Int64Counter
	roomsUnarchived metric.Int64Counter
	inquiriesQueued metric.Int64Counter
	inquiriesTaken  metric.Int64Counter
	inquiriesGone   metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global meter
// provider.
func NewMetricsExtension() (*MetricsExtension, error) {
	return NewMetricsExtensionWithProvider(otel.GetMeterProvider())
}

// NewMetricsExtensionWithProvider creates a MetricsExtension with the given
// meter provider. Use a manual reader provider in tests.
func NewMetricsExtensionWithProvider(mp metric.MeterProvider) (*MetricsExtension, error) {
	meter := mp.Meter(meterName)

	var (
		m   MetricsExtension
		err error
	)
	if m.roomsStarted, err = meter.Int64Counter("livequeue.rooms.started"); err != nil {
		return nil, err
	}
	if m.roomsUnarchived, err = meter.Int64Counter("livequeue.rooms.unarchived"); err != nil {
		return nil, err
	}
	if m.inquiriesQueued, err = meter.Int64Counter("livequeue.inquiries.queued"); err != nil {
		return nil, err
	}
	if m.inquiriesTaken, err = meter.Int64Counter("livequeue.inquiries.taken"); err != nil {
		return nil, err
	}
	if m.inquiriesGone, err = meter.Int64Counter("livequeue.inquiries.removed"); err != nil {
		return nil, err
	}
	return &m, nil
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnRoomStarted implements ext.RoomStarted.
func (m *MetricsExtension) OnRoomStarted(ctx context.Context, r *room.Room) error {
	m.roomsStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("department", r.Department),
	))
	return nil
}

// OnRoomUnarchived implements ext.RoomUnarchived.
func (m *MetricsExtension) OnRoomUnarchived(ctx context.Context, r *room.Room) error {
	m.roomsUnarchived.Add(ctx, 1, metric.WithAttributes(
		attribute.String("department", r.Department),
	))
	return nil
}

// OnInquiryQueued implements ext.InquiryQueued.
func (m *MetricsExtension) OnInquiryQueued(ctx context.Context, inq *inquiry.Inquiry) error {
	m.inquiriesQueued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("department", inq.Department),
	))
	return nil
}

// OnInquiryTaken implements ext.InquiryTaken.
func (m *MetricsExtension) OnInquiryTaken(ctx context.Context, inq *inquiry.Inquiry, _ *agent.Ref) error {
	m.inquiriesTaken.Add(ctx, 1, metric.WithAttributes(
		attribute.String("department", inq.Department),
	))
	return nil
}

// OnInquiryRemoved implements ext.InquiryRemoved.
func (m *MetricsExtension) OnInquiryRemoved(ctx context.Context, _ id.InquiryID) error {
	m.inquiriesGone.Add(ctx, 1)
	return nil
}

// ──────────────────────────────────────────────────
// LoggingExtension
// ──────────────────────────────────────────────────

// LoggingExtension logs every queue lifecycle event at Info level.
type LoggingExtension struct {
	logger *slog.Logger
}

// NewLoggingExtension creates a LoggingExtension.
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExtension{logger: logger}
}

// Name implements ext.Extension.
func (l *LoggingExtension) Name() string { return "observability-logging" }

// OnRoomStarted implements ext.RoomStarted.
func (l *LoggingExtension) OnRoomStarted(_ context.Context, r *room.Room) error {
	l.logger.Info("room started",
		slog.String("room_id", r.ID.String()),
		slog.String("visitor", r.Visitor.Username),
		slog.String("department", r.Department),
		slog.String("source", r.Source),
	)
	return nil
}

// OnRoomUnarchived implements ext.RoomUnarchived.
func (l *LoggingExtension) OnRoomUnarchived(_ context.Context, r *room.Room) error {
	l.logger.Info("room unarchived",
		slog.String("room_id", r.ID.String()),
		slog.String("visitor", r.Visitor.Username),
	)
	return nil
}

// OnInquiryQueued implements ext.InquiryQueued.
func (l *LoggingExtension) OnInquiryQueued(_ context.Context, inq *inquiry.Inquiry) error {
	l.logger.Info("inquiry queued",
		slog.String("inquiry_id", inq.ID.String()),
		slog.String("room_id", inq.RoomID.String()),
		slog.String("department", inq.Department),
		slog.Time("queued_at", inq.QueuedAt),
	)
	return nil
}

// OnInquiryTaken implements ext.InquiryTaken.
func (l *LoggingExtension) OnInquiryTaken(_ context.Context, inq *inquiry.Inquiry, served *agent.Ref) error {
	l.logger.Info("inquiry taken",
		slog.String("inquiry_id", inq.ID.String()),
		slog.String("room_id", inq.RoomID.String()),
		slog.String("agent", served.Username),
	)
	return nil
}

// OnInquiryRemoved implements ext.InquiryRemoved.
func (l *LoggingExtension) OnInquiryRemoved(_ context.Context, inquiryID id.InquiryID) error {
	l.logger.Info("inquiry removed", slog.String("inquiry_id", inquiryID.String()))
	return nil
}
