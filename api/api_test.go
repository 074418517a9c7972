package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/api"
	"github.com/omnikit/livequeue/ext"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/manager"
	"github.com/omnikit/livequeue/notify"
	"github.com/omnikit/livequeue/room"
	"github.com/omnikit/livequeue/routing"
	"github.com/omnikit/livequeue/store/memory"
)

type fixture struct {
	store  *memory.Store
	dir    *agent.MemoryDirectory
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	dir := agent.NewMemoryDirectory()
	exts := ext.NewRegistry(logger)
	strategy := routing.NewManualSelection(st, st, exts, notify.Discard{}, logger)
	mgr := manager.New(st, dir, strategy,
		manager.WithExtensions(exts),
		manager.WithLogger(logger),
	)

	r := chi.NewRouter()
	api.RegisterRoutes(r, api.NewHandler(mgr, st, st, logger))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &fixture{store: st, dir: dir, server: srv}
}

func (f *fixture) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (f *fixture) addOnlineAgent(username string) *agent.Agent {
	a := &agent.Agent{ID: id.NewAgentID(), Username: username, Status: agent.StatusOnline}
	f.dir.Add(a)
	return a
}

func TestRequestRoomEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addOnlineAgent("bob")

	resp := f.post(t, "/livechat/rooms", map[string]any{
		"guest":   map[string]any{"username": "alice"},
		"message": "hello",
		"source":  "widget",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	rm := decode[room.Room](t, resp)
	if !rm.Open || rm.Name != "alice" {
		t.Errorf("room = %+v, want open room named alice", rm)
	}

	resp = f.get(t, "/livechat/rooms/"+rm.ID.String())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET room status = %d, want 200", resp.StatusCode)
	}
	got := decode[room.Room](t, resp)
	if got.ID != rm.ID {
		t.Errorf("room ID = %v, want %v", got.ID, rm.ID)
	}
}

func TestRequestRoomValidationAndAvailability(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addOnlineAgent("bob")

	// Missing username fails validation.
	resp := f.post(t, "/livechat/rooms", map[string]any{"guest": map[string]any{}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing username status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	// Offline department is a 503.
	resp = f.post(t, "/livechat/rooms", map[string]any{
		"guest": map[string]any{"username": "alice", "department": "sales"},
	})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("offline department status = %d, want 503", resp.StatusCode)
	}
	resp.Body.Close()

	// Malformed body is a 400.
	raw, err := http.Post(f.server.URL+"/livechat/rooms", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", raw.StatusCode)
	}
	raw.Body.Close()
}

func TestQueueEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addOnlineAgent("bob")

	for _, username := range []string{"alice", "carol"} {
		resp := f.post(t, "/livechat/rooms", map[string]any{
			"guest": map[string]any{"username": username},
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed room status = %d, want 201", resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := f.get(t, "/livechat/queue")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("queue status = %d, want 200", resp.StatusCode)
	}
	queued := decode[[]inquiry.Inquiry](t, resp)
	if len(queued) != 2 {
		t.Fatalf("queue length = %d, want 2", len(queued))
	}

	resp = f.get(t, "/livechat/queue?limit=1")
	limited := decode[[]inquiry.Inquiry](t, resp)
	if len(limited) != 1 {
		t.Errorf("limited queue length = %d, want 1", len(limited))
	}

	resp = f.get(t, "/livechat/queue/stats")
	stats := decode[manager.Stats](t, resp)
	if stats.Queued != 2 || stats.OpenRooms != 2 {
		t.Errorf("stats = %+v, want 2 queued and 2 open rooms", stats)
	}
}

func TestTakeInquiryEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	claimer := f.addOnlineAgent("bob")

	resp := f.post(t, "/livechat/rooms", map[string]any{
		"guest": map[string]any{"username": "alice"},
	})
	rm := decode[room.Room](t, resp)

	queued := decode[[]inquiry.Inquiry](t, f.get(t, "/livechat/queue"))
	if len(queued) != 1 {
		t.Fatalf("queue length = %d, want 1", len(queued))
	}

	path := fmt.Sprintf("/livechat/inquiries/%s/take", queued[0].ID)
	resp = f.post(t, path, map[string]any{
		"agent": map[string]any{"id": claimer.ID.String(), "username": claimer.Username},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("take status = %d, want 200", resp.StatusCode)
	}
	taken := decode[room.Room](t, resp)
	if taken.ID != rm.ID || taken.ServedBy == nil || taken.ServedBy.Username != "bob" {
		t.Errorf("room = %+v, want served by bob", taken)
	}

	// Without an agent the claim is rejected.
	resp = f.post(t, path, map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("take without agent status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnarchiveAndCloseEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addOnlineAgent("bob")

	resp := f.post(t, "/livechat/rooms", map[string]any{
		"guest": map[string]any{"username": "alice"},
	})
	rm := decode[room.Room](t, resp)

	resp = f.post(t, "/livechat/rooms/"+rm.ID.String()+"/close", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("close status = %d, want 204", resp.StatusCode)
	}
	resp.Body.Close()

	resp = f.post(t, "/livechat/rooms/"+rm.ID.String()+"/unarchive", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unarchive status = %d, want 200", resp.StatusCode)
	}
	reopened := decode[room.Room](t, resp)
	if !reopened.Open || reopened.ClosedAt != nil {
		t.Errorf("room = %+v, want reopened", reopened)
	}

	// Unknown rooms map to 404.
	resp = f.post(t, "/livechat/rooms/"+id.NewRoomID().String()+"/unarchive", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown room status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	// Garbage IDs map to 400.
	resp = f.post(t, "/livechat/rooms/not-an-id/unarchive", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}
