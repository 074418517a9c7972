package manager_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/capacity"
	"github.com/omnikit/livequeue/ext"
	"github.com/omnikit/livequeue/guest"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/manager"
	"github.com/omnikit/livequeue/notify"
	"github.com/omnikit/livequeue/room"
	"github.com/omnikit/livequeue/routing"
	"github.com/omnikit/livequeue/store/memory"
)

type fixture struct {
	store *memory.Store
	dir   *agent.MemoryDirectory
	exts  *ext.Registry
	mgr   *manager.Manager
}

func newFixture(t *testing.T, auto bool, opts ...manager.Option) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	dir := agent.NewMemoryDirectory()
	exts := ext.NewRegistry(logger)

	var strategy routing.Strategy
	if auto {
		strategy = routing.NewAutoSelection(st, st, dir, exts, notify.Discard{}, logger)
	} else {
		strategy = routing.NewManualSelection(st, st, exts, notify.Discard{}, logger)
	}

	opts = append([]manager.Option{
		manager.WithExtensions(exts),
		manager.WithLogger(logger),
	}, opts...)

	return &fixture{
		store: st,
		dir:   dir,
		exts:  exts,
		mgr:   manager.New(st, dir, strategy, opts...),
	}
}

func onlineAgent(f *fixture, username string, departments ...string) *agent.Agent {
	a := &agent.Agent{
		ID:          id.NewAgentID(),
		Username:    username,
		Status:      agent.StatusOnline,
		Departments: departments,
	}
	f.dir.Add(a)
	return a
}

func newGuest(username string) guest.Guest {
	return guest.Guest{
		ID:       id.NewVisitorID(),
		Username: username,
	}
}

// ──────────────────────────────────────────────────
// RequestRoom
// ──────────────────────────────────────────────────

func TestRequestRoomQueuesWithManualRouting(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	onlineAgent(f, "bob")

	rm, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{
		Guest:   newGuest("alice"),
		Message: "hi there",
		Source:  "widget",
	})
	if err != nil {
		t.Fatalf("RequestRoom: %v", err)
	}
	if !rm.Open {
		t.Error("expected room to be open")
	}
	if rm.Name != "alice" {
		t.Errorf("room name = %q, want guest username fallback %q", rm.Name, "alice")
	}

	inq, err := f.store.GetInquiryByRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetInquiryByRoom: %v", err)
	}
	if inq.Status != inquiry.StatusQueued {
		t.Errorf("inquiry status = %v, want queued under manual routing", inq.Status)
	}
	if inq.Message != "hi there" {
		t.Errorf("inquiry message = %q, want %q", inq.Message, "hi there")
	}
	if inq.Source != "widget" {
		t.Errorf("inquiry source = %q, want %q", inq.Source, "widget")
	}
}

func TestRequestRoomAssignsWithAutoRouting(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()
	onlineAgent(f, "bob")

	rm, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: newGuest("alice")})
	if err != nil {
		t.Fatalf("RequestRoom: %v", err)
	}
	if rm.ServedBy == nil || rm.ServedBy.Username != "bob" {
		t.Fatalf("ServedBy = %+v, want bob assigned", rm.ServedBy)
	}

	inq, err := f.store.GetInquiryByRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetInquiryByRoom: %v", err)
	}
	if inq.Status != inquiry.StatusTaken || inq.TakenAt == nil {
		t.Errorf("inquiry = %+v, want taken with TakenAt set", inq)
	}
}

func TestRequestRoomNamePrecedence(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	onlineAgent(f, "bob")

	g := newGuest("alice")
	g.Name = "Alice A."

	rm, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: g, RoomName: "Order #42"})
	if err != nil {
		t.Fatalf("RequestRoom: %v", err)
	}
	if rm.Name != "Order #42" {
		t.Errorf("room name = %q, want explicit name to win", rm.Name)
	}

	rm, err = f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: g})
	if err != nil {
		t.Fatalf("RequestRoom: %v", err)
	}
	if rm.Name != "Alice A." {
		t.Errorf("room name = %q, want guest display name", rm.Name)
	}
}

func TestRequestRoomRejectsInvalidGuest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	onlineAgent(f, "bob")

	_, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: guest.Guest{}})
	if !errors.Is(err, guest.ErrInvalidGuest) {
		t.Fatalf("RequestRoom(empty guest) = %v, want validation error", err)
	}
	assertNoState(t, f)
}

func TestRequestRoomOfflineDepartmentNoSideEffects(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	onlineAgent(f, "bob", "support")

	g := newGuest("alice")
	g.Department = "sales"

	_, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: g})
	if !errors.Is(err, livequeue.ErrNoAgentOnline) {
		t.Fatalf("RequestRoom(offline department) = %v, want ErrNoAgentOnline", err)
	}
	assertNoState(t, f)
}

func TestRequestRoomPreselectedAgentMustBeOnline(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	a := onlineAgent(f, "bob")
	f.dir.SetSessions(a.ID, 0)

	_, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{
		Guest: newGuest("alice"),
		Agent: &agent.Selected{AgentID: a.ID, Username: a.Username},
	})
	if !errors.Is(err, livequeue.ErrNoAgentOnline) {
		t.Fatalf("RequestRoom(offline preselected agent) = %v, want ErrNoAgentOnline", err)
	}
	assertNoState(t, f)
}

// assertNoState verifies the failed request mutated nothing.
func assertNoState(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	n, err := f.store.CountOpenRooms(ctx)
	if err != nil {
		t.Fatalf("CountOpenRooms: %v", err)
	}
	if n != 0 {
		t.Errorf("open rooms = %d, want 0 after rejected request", n)
	}
	for _, status := range []inquiry.Status{inquiry.StatusQueued, inquiry.StatusReady, inquiry.StatusTaken} {
		n, err := f.store.CountByStatus(ctx, status)
		if err != nil {
			t.Fatalf("CountByStatus(%v): %v", status, err)
		}
		if n != 0 {
			t.Errorf("%v inquiries = %d, want 0 after rejected request", status, n)
		}
	}
}

func TestRequestRoomOverCapacityParksInquiry(t *testing.T) {
	t.Parallel()

	st := memory.New()
	f := newFixtureWithStore(t, st, manager.WithCapacityGate(capacity.NewLicenseGate(st, 1)))
	ctx := context.Background()
	onlineAgent(f, "bob")

	// An existing open conversation fills the only seat.
	existing := &room.Room{ID: id.NewRoomID(), Name: "busy", Visitor: room.VisitorRef{ID: id.NewVisitorID(), Username: "carol"}}
	if err := f.store.CreateRoom(ctx, existing); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	rm, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: newGuest("alice")})
	if err != nil {
		t.Fatalf("RequestRoom over capacity: %v, want success with parked inquiry", err)
	}

	inq, err := f.store.GetInquiryByRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetInquiryByRoom: %v", err)
	}
	if inq.Status != inquiry.StatusQueued {
		t.Errorf("inquiry status = %v, want queued over capacity", inq.Status)
	}
	if inq.QueuedAt.IsZero() || inq.TakenAt != nil {
		t.Errorf("inquiry = %+v, want QueuedAt set and TakenAt cleared", inq)
	}
}

// newFixtureWithStore builds a fixture around a pre-made store so tests can
// seed state before the manager runs. Auto routing.
func newFixtureWithStore(t *testing.T, st *memory.Store, opts ...manager.Option) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := agent.NewMemoryDirectory()
	exts := ext.NewRegistry(logger)
	strategy := routing.NewAutoSelection(st, st, dir, exts, notify.Discard{}, logger)

	opts = append([]manager.Option{
		manager.WithExtensions(exts),
		manager.WithLogger(logger),
	}, opts...)

	return &fixture{
		store: st,
		dir:   dir,
		exts:  exts,
		mgr:   manager.New(st, dir, strategy, opts...),
	}
}

// ──────────────────────────────────────────────────
// QueueInquiry
// ──────────────────────────────────────────────────

func TestQueueInquiryIdempotentOverCapacity(t *testing.T) {
	t.Parallel()

	st := memory.New()
	f := newFixtureWithStore(t, st, manager.WithCapacityGate(capacity.NewLicenseGate(st, 1)))
	ctx := context.Background()
	onlineAgent(f, "bob")

	existing := &room.Room{ID: id.NewRoomID(), Name: "busy", Visitor: room.VisitorRef{ID: id.NewVisitorID(), Username: "carol"}}
	if err := f.store.CreateRoom(ctx, existing); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	rm, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: newGuest("alice")})
	if err != nil {
		t.Fatalf("RequestRoom: %v", err)
	}
	first, err := f.store.GetInquiryByRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetInquiryByRoom: %v", err)
	}
	if first.Status != inquiry.StatusQueued {
		t.Fatalf("status = %v, want queued", first.Status)
	}

	// Re-queueing a parked inquiry is safe and keeps it parked.
	if err := f.mgr.QueueInquiry(ctx, first, nil); err != nil {
		t.Fatalf("QueueInquiry again: %v", err)
	}
	second, err := f.store.GetInquiry(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetInquiry: %v", err)
	}
	if second.Status != inquiry.StatusQueued {
		t.Errorf("status after re-queue = %v, want queued", second.Status)
	}
	if second.QueuedAt.Before(first.QueuedAt) {
		t.Errorf("QueuedAt went backwards: %v -> %v", first.QueuedAt, second.QueuedAt)
	}
}

type vetoExt struct{ err error }

func (vetoExt) Name() string { return "veto" }
func (v vetoExt) OnBeforeRouteChat(context.Context, *inquiry.Inquiry, *agent.Selected) error {
	return v.err
}

func TestQueueInquiryVetoAbortsRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()
	onlineAgent(f, "bob")

	sentinel := errors.New("blocked by compliance")
	f.exts.Register(vetoExt{err: sentinel})

	_, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: newGuest("alice")})
	if !errors.Is(err, sentinel) {
		t.Fatalf("RequestRoom with veto = %v, want the veto error", err)
	}
}

// ──────────────────────────────────────────────────
// UnarchiveRoom
// ──────────────────────────────────────────────────

func TestUnarchiveRoomNilRoom(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	_, err := f.mgr.UnarchiveRoom(context.Background(), nil)
	if !errors.Is(err, livequeue.ErrNoRoomToUnarchive) {
		t.Fatalf("UnarchiveRoom(nil) = %v, want ErrNoRoomToUnarchive", err)
	}
}

func TestUnarchiveRoomOpenRoomIsNoOp(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()

	rm := &room.Room{ID: id.NewRoomID(), Name: "live", Open: true, Visitor: room.VisitorRef{ID: id.NewVisitorID(), Username: "alice"}}
	if err := f.store.CreateRoom(ctx, rm); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	got, err := f.store.GetRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}

	out, err := f.mgr.UnarchiveRoom(ctx, got)
	if err != nil {
		t.Fatalf("UnarchiveRoom(open room): %v", err)
	}
	if out != got {
		t.Error("expected the same room back unchanged")
	}
	if _, err := f.store.GetInquiryByRoom(ctx, rm.ID); !errors.Is(err, livequeue.ErrInquiryNotFound) {
		t.Errorf("expected no inquiry created for an already-open room, got %v", err)
	}
}

func TestUnarchiveRoomReplacesStaleInquiry(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	onlineAgent(f, "bob")

	rm := &room.Room{
		ID:          id.NewRoomID(),
		Name:        "alice",
		Visitor:     room.VisitorRef{ID: id.NewVisitorID(), Username: "alice"},
		Source:      "widget",
		LastMessage: "are you still there?",
	}
	if err := f.store.CreateRoom(ctx, rm); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	stale := &inquiry.Inquiry{
		ID:     id.NewInquiryID(),
		RoomID: rm.ID,
		Name:   "alice",
		Guest:  inquiry.GuestRef{ID: rm.Visitor.ID, Username: "alice"},
		Status: inquiry.StatusQueued,
	}
	if err := f.store.CreateInquiry(ctx, stale); err != nil {
		t.Fatalf("CreateInquiry: %v", err)
	}
	if err := f.store.CloseRoom(ctx, rm.ID, time.Now().UTC()); err != nil {
		t.Fatalf("CloseRoom: %v", err)
	}

	archived, err := f.store.GetRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	out, err := f.mgr.UnarchiveRoom(ctx, archived)
	if err != nil {
		t.Fatalf("UnarchiveRoom: %v", err)
	}
	if out.ID != rm.ID {
		t.Errorf("returned room ID = %v, want %v", out.ID, rm.ID)
	}
	if !out.Open || out.ClosedAt != nil {
		t.Errorf("room = %+v, want reopened", out)
	}

	// The stale inquiry is removed before the fresh one is created.
	old, err := f.store.GetInquiry(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetInquiry(stale): %v", err)
	}
	if old.Status != inquiry.StatusRemoved {
		t.Errorf("stale inquiry status = %v, want removed", old.Status)
	}

	fresh, err := f.store.GetInquiryByRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetInquiryByRoom: %v", err)
	}
	if fresh.ID == stale.ID {
		t.Error("expected a fresh inquiry, got the stale one")
	}
	if fresh.Message != "are you still there?" {
		t.Errorf("fresh inquiry message = %q, want the room's last message", fresh.Message)
	}
	if fresh.Source != "widget" {
		t.Errorf("fresh inquiry source = %q, want the original channel", fresh.Source)
	}
}

func TestUnarchiveRoomPreselectsOnlinePreviousAgent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()
	prev := onlineAgent(f, "bob")

	rm := &room.Room{
		ID:       id.NewRoomID(),
		Name:     "alice",
		Visitor:  room.VisitorRef{ID: id.NewVisitorID(), Username: "alice"},
		ServedBy: &agent.Ref{ID: prev.ID, Username: prev.Username},
	}
	if err := f.store.CreateRoom(ctx, rm); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := f.store.SetAgent(ctx, rm.ID, rm.ServedBy); err != nil {
		t.Fatalf("SetAgent: %v", err)
	}
	if err := f.store.CloseRoom(ctx, rm.ID, time.Now().UTC()); err != nil {
		t.Fatalf("CloseRoom: %v", err)
	}

	archived, err := f.store.GetRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	out, err := f.mgr.UnarchiveRoom(ctx, archived)
	if err != nil {
		t.Fatalf("UnarchiveRoom: %v", err)
	}
	if out.ServedBy == nil || out.ServedBy.Username != "bob" {
		t.Fatalf("ServedBy = %+v, want previous agent bob re-assigned", out.ServedBy)
	}
}

// ──────────────────────────────────────────────────
// TakeInquiry / CloseRoom / QueueStats
// ──────────────────────────────────────────────────

func TestTakeInquiryManualClaim(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	claimer := onlineAgent(f, "bob")

	rm, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: newGuest("alice")})
	if err != nil {
		t.Fatalf("RequestRoom: %v", err)
	}
	inq, err := f.store.GetInquiryByRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetInquiryByRoom: %v", err)
	}

	got, err := f.mgr.TakeInquiry(ctx, inq.ID, &agent.Selected{AgentID: claimer.ID, Username: claimer.Username})
	if err != nil {
		t.Fatalf("TakeInquiry: %v", err)
	}
	if got.ServedBy == nil || got.ServedBy.ID != claimer.ID {
		t.Fatalf("ServedBy = %+v, want claimer", got.ServedBy)
	}

	taken, err := f.store.GetInquiry(ctx, inq.ID)
	if err != nil {
		t.Fatalf("GetInquiry: %v", err)
	}
	if taken.Status != inquiry.StatusTaken {
		t.Errorf("status = %v, want taken", taken.Status)
	}
}

func TestTakeInquiryOfflineAgent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	a := onlineAgent(f, "bob")

	rm, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: newGuest("alice")})
	if err != nil {
		t.Fatalf("RequestRoom: %v", err)
	}
	inq, err := f.store.GetInquiryByRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetInquiryByRoom: %v", err)
	}

	f.dir.SetSessions(a.ID, 0)
	_, err = f.mgr.TakeInquiry(ctx, inq.ID, &agent.Selected{AgentID: a.ID, Username: a.Username})
	if !errors.Is(err, livequeue.ErrNoAgentOnline) {
		t.Fatalf("TakeInquiry(offline agent) = %v, want ErrNoAgentOnline", err)
	}
}

func TestCloseRoomRemovesInquiry(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	onlineAgent(f, "bob")

	rm, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: newGuest("alice")})
	if err != nil {
		t.Fatalf("RequestRoom: %v", err)
	}

	if err := f.mgr.CloseRoom(ctx, rm.ID); err != nil {
		t.Fatalf("CloseRoom: %v", err)
	}
	got, err := f.store.GetRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if !got.Archived() {
		t.Errorf("room = %+v, want archived", got)
	}
	if _, err := f.store.GetInquiryByRoom(ctx, rm.ID); !errors.Is(err, livequeue.ErrInquiryNotFound) {
		t.Errorf("expected no active inquiry after close, got %v", err)
	}

	// Closing again is a no-op.
	if err := f.mgr.CloseRoom(ctx, rm.ID); err != nil {
		t.Fatalf("CloseRoom twice: %v", err)
	}
}

func TestQueueStats(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	onlineAgent(f, "bob")

	for _, username := range []string{"alice", "carol"} {
		if _, err := f.mgr.RequestRoom(ctx, manager.RoomRequest{Guest: newGuest(username)}); err != nil {
			t.Fatalf("RequestRoom(%s): %v", username, err)
		}
	}

	stats, err := f.mgr.QueueStats(ctx)
	if err != nil {
		t.Fatalf("QueueStats: %v", err)
	}
	if stats.Queued != 2 {
		t.Errorf("Queued = %d, want 2", stats.Queued)
	}
	if stats.OpenRooms != 2 {
		t.Errorf("OpenRooms = %d, want 2", stats.OpenRooms)
	}
}
