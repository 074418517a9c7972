package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/room"
)

func TestMetricsExtensionHooks(t *testing.T) {
	t.Parallel()

	// Without a configured provider the global meter is a no-op; the hooks
	// must still run cleanly.
	m, err := NewMetricsExtension()
	if err != nil {
		t.Fatalf("NewMetricsExtension: %v", err)
	}
	if m.Name() == "" {
		t.Fatal("expected a non-empty extension name")
	}

	ctx := context.Background()
	rm := &room.Room{ID: id.NewRoomID(), Department: "sales"}
	inq := &inquiry.Inquiry{ID: id.NewInquiryID(), RoomID: rm.ID, Department: "sales"}
	served := &agent.Ref{ID: id.NewAgentID(), Username: "bob"}

	if err := m.OnRoomStarted(ctx, rm); err != nil {
		t.Errorf("OnRoomStarted: %v", err)
	}
	if err := m.OnRoomUnarchived(ctx, rm); err != nil {
		t.Errorf("OnRoomUnarchived: %v", err)
	}
	if err := m.OnInquiryQueued(ctx, inq); err != nil {
		t.Errorf("OnInquiryQueued: %v", err)
	}
	if err := m.OnInquiryTaken(ctx, inq, served); err != nil {
		t.Errorf("OnInquiryTaken: %v", err)
	}
	if err := m.OnInquiryRemoved(ctx, inq.ID); err != nil {
		t.Errorf("OnInquiryRemoved: %v", err)
	}
}

func TestLoggingExtension(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewLoggingExtension(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	rm := &room.Room{ID: id.NewRoomID(), Visitor: room.VisitorRef{Username: "alice"}, Department: "sales"}
	inq := &inquiry.Inquiry{ID: id.NewInquiryID(), RoomID: rm.ID, Department: "sales"}

	if err := l.OnRoomStarted(ctx, rm); err != nil {
		t.Fatalf("OnRoomStarted: %v", err)
	}
	if err := l.OnInquiryTaken(ctx, inq, &agent.Ref{Username: "bob"}); err != nil {
		t.Fatalf("OnInquiryTaken: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "room started") || !strings.Contains(out, "alice") {
		t.Errorf("log output missing room-started record: %q", out)
	}
	if !strings.Contains(out, "inquiry taken") || !strings.Contains(out, "bob") {
		t.Errorf("log output missing inquiry-taken record: %q", out)
	}
}
