package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	ah "github.com/omnikit/livequeue/audit_hook"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/room"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

// ── Test helpers ─────────────────────────────────────

func testRoom() *room.Room {
	return &room.Room{
		ID:   id.NewRoomID(),
		Name: "alice",
		Open: true,
		Visitor: room.VisitorRef{
			ID:       id.NewVisitorID(),
			Username: "alice",
		},
		Department: "sales",
		Source:     "widget",
	}
}

func testInquiry(roomID id.RoomID) *inquiry.Inquiry {
	return &inquiry.Inquiry{
		ID:         id.NewInquiryID(),
		RoomID:     roomID,
		Name:       "alice",
		Status:     inquiry.StatusQueued,
		Department: "sales",
	}
}

// ── Tests ────────────────────────────────────────────

func TestRoomLifecycleEvents(t *testing.T) {
	t.Parallel()
	rec := &mockRecorder{}
	e := ah.New(rec)
	ctx := context.Background()
	rm := testRoom()

	if err := e.OnRoomStarted(ctx, rm); err != nil {
		t.Fatalf("OnRoomStarted: %v", err)
	}
	if err := e.OnRoomUnarchived(ctx, rm); err != nil {
		t.Fatalf("OnRoomUnarchived: %v", err)
	}

	started := rec.findByAction(ah.ActionRoomStarted)
	if started == nil {
		t.Fatal("no room.started event recorded")
	}
	if started.ResourceID != rm.ID.String() || started.Category != ah.CategoryRoom {
		t.Errorf("event = %+v, want room resource", started)
	}
	if started.Metadata["visitor"] != "alice" || started.Metadata["department"] != "sales" {
		t.Errorf("metadata = %v, want visitor and department", started.Metadata)
	}
	if rec.findByAction(ah.ActionRoomUnarchived) == nil {
		t.Error("no room.unarchived event recorded")
	}
}

func TestInquiryLifecycleEvents(t *testing.T) {
	t.Parallel()
	rec := &mockRecorder{}
	e := ah.New(rec)
	ctx := context.Background()
	inq := testInquiry(id.NewRoomID())

	if err := e.OnInquiryQueued(ctx, inq); err != nil {
		t.Fatalf("OnInquiryQueued: %v", err)
	}
	if err := e.OnInquiryTaken(ctx, inq, &agent.Ref{ID: id.NewAgentID(), Username: "bob"}); err != nil {
		t.Fatalf("OnInquiryTaken: %v", err)
	}
	if err := e.OnInquiryRemoved(ctx, inq.ID); err != nil {
		t.Fatalf("OnInquiryRemoved: %v", err)
	}

	queued := rec.findByAction(ah.ActionInquiryQueued)
	if queued == nil {
		t.Fatal("no inquiry.queued event recorded")
	}
	if queued.Severity != ah.SeverityWarning {
		t.Errorf("queued severity = %q, want warning", queued.Severity)
	}

	taken := rec.findByAction(ah.ActionInquiryTaken)
	if taken == nil {
		t.Fatal("no inquiry.taken event recorded")
	}
	if taken.Metadata["agent"] != "bob" {
		t.Errorf("taken metadata = %v, want agent bob", taken.Metadata)
	}
	if rec.findByAction(ah.ActionInquiryRemoved) == nil {
		t.Error("no inquiry.removed event recorded")
	}
}

func TestWithActionsFiltersEvents(t *testing.T) {
	t.Parallel()
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionInquiryTaken))
	ctx := context.Background()
	inq := testInquiry(id.NewRoomID())

	if err := e.OnInquiryQueued(ctx, inq); err != nil {
		t.Fatalf("OnInquiryQueued: %v", err)
	}
	if err := e.OnInquiryTaken(ctx, inq, &agent.Ref{Username: "bob"}); err != nil {
		t.Fatalf("OnInquiryTaken: %v", err)
	}

	if rec.count() != 1 {
		t.Fatalf("recorded %d events, want 1", rec.count())
	}
	if rec.findByAction(ah.ActionInquiryTaken) == nil {
		t.Error("inquiry.taken should pass the filter")
	}
}

func TestRecorderErrorDoesNotFailHook(t *testing.T) {
	t.Parallel()
	failing := ah.RecorderFunc(func(context.Context, *ah.AuditEvent) error {
		return errors.New("backend down")
	})
	e := ah.New(failing, ah.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := e.OnRoomStarted(context.Background(), testRoom()); err != nil {
		t.Errorf("OnRoomStarted = %v, want nil despite recorder failure", err)
	}
}

func TestAllActions(t *testing.T) {
	t.Parallel()
	if got := len(ah.AllActions()); got != 5 {
		t.Errorf("AllActions length = %d, want 5", got)
	}
}
