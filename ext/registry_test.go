package ext

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/room"
)

// recorder implements every hook and records the call order.
type recorder struct {
	name     string
	calls    []string
	vetoWith error
	failWith error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnBeforeRouteChat(_ context.Context, _ *inquiry.Inquiry, _ *agent.Selected) error {
	r.calls = append(r.calls, "before-route")
	return r.vetoWith
}

func (r *recorder) OnInquiryQueued(_ context.Context, _ *inquiry.Inquiry) error {
	r.calls = append(r.calls, "queued")
	return r.failWith
}

func (r *recorder) OnInquiryTaken(_ context.Context, _ *inquiry.Inquiry, _ *agent.Ref) error {
	r.calls = append(r.calls, "taken")
	return r.failWith
}

func (r *recorder) OnInquiryRemoved(_ context.Context, _ id.InquiryID) error {
	r.calls = append(r.calls, "removed")
	return r.failWith
}

func (r *recorder) OnRoomStarted(_ context.Context, _ *room.Room) error {
	r.calls = append(r.calls, "room-started")
	return r.failWith
}

func (r *recorder) OnShutdown(_ context.Context) error {
	r.calls = append(r.calls, "shutdown")
	return r.failWith
}

func TestRegistry_EmitsInRegistrationOrder(t *testing.T) {
	reg := NewRegistry(slog.Default())
	first := &recorder{name: "first"}
	second := &recorder{name: "second"}
	reg.Register(first)
	reg.Register(second)

	var order []string
	reg.EmitInquiryQueued(context.Background(), &inquiry.Inquiry{})
	order = append(order, first.calls...)
	order = append(order, second.calls...)
	if len(order) != 2 {
		t.Fatalf("expected both extensions notified, got %v", order)
	}
}

func TestRegistry_BeforeRouteChatVeto(t *testing.T) {
	reg := NewRegistry(slog.Default())
	veto := errors.New("blocked by policy")
	first := &recorder{name: "policy", vetoWith: veto}
	second := &recorder{name: "after"}
	reg.Register(first)
	reg.Register(second)

	err := reg.EmitBeforeRouteChat(context.Background(), &inquiry.Inquiry{}, nil)
	if !errors.Is(err, veto) {
		t.Fatalf("expected veto error, got %v", err)
	}
	if len(second.calls) != 0 {
		t.Fatal("handlers after the veto must not run")
	}
}

func TestRegistry_FireAndForgetIsolatesFailures(t *testing.T) {
	reg := NewRegistry(slog.Default())
	failing := &recorder{name: "failing", failWith: errors.New("boom")}
	healthy := &recorder{name: "healthy"}
	reg.Register(failing)
	reg.Register(healthy)

	// Must not panic and must still reach the healthy extension.
	reg.EmitRoomStarted(context.Background(), &room.Room{})
	if len(healthy.calls) != 1 {
		t.Fatalf("healthy extension should still be notified, calls=%v", healthy.calls)
	}

	reg.EmitInquiryRemoved(context.Background(), id.NewInquiryID())
	if len(healthy.calls) != 2 {
		t.Fatal("failures in one extension must not stop the others")
	}
}

func TestRegistry_OnlyMatchingHooksCached(t *testing.T) {
	reg := NewRegistry(slog.Default())

	// shutdownOnly implements only Extension + Shutdown.
	reg.Register(shutdownOnly{})
	reg.EmitInquiryQueued(context.Background(), &inquiry.Inquiry{})
	reg.EmitShutdown(context.Background())
}

type shutdownOnly struct{}

func (shutdownOnly) Name() string { return "shutdown-only" }

func (shutdownOnly) OnShutdown(_ context.Context) error { return nil }
