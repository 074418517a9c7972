package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/ext"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/room"
)

// Compile-time interface checks.
var (
	_ ext.Extension      = (*Extension)(nil)
	_ ext.RoomStarted    = (*Extension)(nil)
	_ ext.RoomUnarchived = (*Extension)(nil)
	_ ext.InquiryQueued  = (*Extension)(nil)
	_ ext.InquiryTaken   = (*Extension)(nil)
	_ ext.InquiryRemoved = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so that the audit_hook package does not import any
// concrete audit product — callers inject their backend at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event. Callers provide a
// RecorderFunc adapter that bridges to their audit backend.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
)

// Extension bridges livequeue lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Room lifecycle hooks ────────────────────────────

// OnRoomStarted implements ext.RoomStarted.
func (e *Extension) OnRoomStarted(ctx context.Context, r *room.Room) error {
	return e.record(ctx, ActionRoomStarted, SeverityInfo,
		ResourceRoom, r.ID.String(), CategoryRoom,
		"visitor", r.Visitor.Username,
		"department", r.Department,
		"source", r.Source,
	)
}

// OnRoomUnarchived implements ext.RoomUnarchived.
func (e *Extension) OnRoomUnarchived(ctx context.Context, r *room.Room) error {
	return e.record(ctx, ActionRoomUnarchived, SeverityInfo,
		ResourceRoom, r.ID.String(), CategoryRoom,
		"visitor", r.Visitor.Username,
		"department", r.Department,
	)
}

// ── Inquiry lifecycle hooks ─────────────────────────

// OnInquiryQueued implements ext.InquiryQueued. Parking is routine but worth
// a warning when the same inquiry keeps bouncing back into the queue.
func (e *Extension) OnInquiryQueued(ctx context.Context, inq *inquiry.Inquiry) error {
	return e.record(ctx, ActionInquiryQueued, SeverityWarning,
		ResourceInquiry, inq.ID.String(), CategoryInquiry,
		"room_id", inq.RoomID.String(),
		"department", inq.Department,
		"queued_at", inq.QueuedAt,
	)
}

// OnInquiryTaken implements ext.InquiryTaken.
func (e *Extension) OnInquiryTaken(ctx context.Context, inq *inquiry.Inquiry, served *agent.Ref) error {
	return e.record(ctx, ActionInquiryTaken, SeverityInfo,
		ResourceInquiry, inq.ID.String(), CategoryInquiry,
		"room_id", inq.RoomID.String(),
		"department", inq.Department,
		"agent", served.Username,
	)
}

// OnInquiryRemoved implements ext.InquiryRemoved.
func (e *Extension) OnInquiryRemoved(ctx context.Context, inquiryID id.InquiryID) error {
	return e.record(ctx, ActionInquiryRemoved, SeverityInfo,
		ResourceInquiry, inquiryID.String(), CategoryInquiry,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity string,
	resource, resourceID, category string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    OutcomeSuccess,
		Severity:   severity,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
