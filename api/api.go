// Package api exposes the queue manager over HTTP. It is a thin
// translation layer: request decoding, the error-taxonomy-to-status-code
// mapping, and JSON encoding. All orchestration lives in the manager.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/guest"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/manager"
	"github.com/omnikit/livequeue/room"
)

// Handler serves the livechat HTTP API.
type Handler struct {
	mgr    *manager.Manager
	rooms  room.Store
	queue  inquiry.Store
	logger *slog.Logger
}

// NewHandler creates an API handler.
func NewHandler(mgr *manager.Manager, rooms room.Store, queue inquiry.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{mgr: mgr, rooms: rooms, queue: queue, logger: logger}
}

// RegisterRoutes mounts the livechat API on the router.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/livechat/rooms", h.RequestRoom)
	r.Get("/livechat/rooms/{roomID}", h.GetRoom)
	r.Post("/livechat/rooms/{roomID}/unarchive", h.UnarchiveRoom)
	r.Post("/livechat/rooms/{roomID}/close", h.CloseRoom)
	r.Post("/livechat/inquiries/{inquiryID}/take", h.TakeInquiry)
	r.Get("/livechat/queue", h.ListQueue)
	r.Get("/livechat/queue/stats", h.QueueStats)
}

// ──────────────────────────────────────────────────
// Request / response shapes
// ──────────────────────────────────────────────────

type guestPayload struct {
	ID         string `json:"id,omitempty"`
	Username   string `json:"username"`
	Name       string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
	Token      string `json:"token,omitempty"`
}

type agentPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type requestRoomPayload struct {
	Guest        guestPayload   `json:"guest"`
	Agent        *agentPayload  `json:"agent,omitempty"`
	Message      string         `json:"message,omitempty"`
	RoomName     string         `json:"room_name,omitempty"`
	Source       string         `json:"source,omitempty"`
	SLA          string         `json:"sla,omitempty"`
	Priority     int            `json:"priority,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ──────────────────────────────────────────────────
// Handlers
// ──────────────────────────────────────────────────

// RequestRoom handles POST /livechat/rooms.
func (h *Handler) RequestRoom(w http.ResponseWriter, r *http.Request) {
	var payload requestRoomPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	g := guest.Guest{
		Username:   payload.Guest.Username,
		Name:       payload.Guest.Name,
		Department: payload.Guest.Department,
		Token:      payload.Guest.Token,
	}
	if payload.Guest.ID != "" {
		visitorID, err := id.ParseVisitorID(payload.Guest.ID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid guest id"})
			return
		}
		g.ID = visitorID
	} else {
		// First contact: mint a visitor identity.
		g.ID = id.NewVisitorID()
	}

	selected, err := parseAgent(payload.Agent)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid agent id"})
		return
	}

	rm, err := h.mgr.RequestRoom(r.Context(), manager.RoomRequest{
		Guest:        g,
		Agent:        selected,
		Message:      payload.Message,
		RoomName:     payload.RoomName,
		Source:       payload.Source,
		SLA:          payload.SLA,
		Priority:     payload.Priority,
		CustomFields: payload.CustomFields,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rm)
}

// GetRoom handles GET /livechat/rooms/{roomID}.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := id.ParseRoomID(chi.URLParam(r, "roomID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid room id"})
		return
	}
	rm, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// UnarchiveRoom handles POST /livechat/rooms/{roomID}/unarchive.
func (h *Handler) UnarchiveRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := id.ParseRoomID(chi.URLParam(r, "roomID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid room id"})
		return
	}
	rm, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out, err := h.mgr.UnarchiveRoom(r.Context(), rm)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CloseRoom handles POST /livechat/rooms/{roomID}/close.
func (h *Handler) CloseRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := id.ParseRoomID(chi.URLParam(r, "roomID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid room id"})
		return
	}
	if err := h.mgr.CloseRoom(r.Context(), roomID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TakeInquiry handles POST /livechat/inquiries/{inquiryID}/take.
func (h *Handler) TakeInquiry(w http.ResponseWriter, r *http.Request) {
	inquiryID, err := id.ParseInquiryID(chi.URLParam(r, "inquiryID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid inquiry id"})
		return
	}

	var payload struct {
		Agent *agentPayload `json:"agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	selected, err := parseAgent(payload.Agent)
	if err != nil || selected == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "agent required"})
		return
	}

	rm, err := h.mgr.TakeInquiry(r.Context(), inquiryID, selected)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// ListQueue handles GET /livechat/queue.
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	opts := inquiry.ListOpts{Department: r.URL.Query().Get("department")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		opts.Limit = limit
	}

	queued, err := h.queue.ListQueued(r.Context(), opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if queued == nil {
		queued = []*inquiry.Inquiry{}
	}
	writeJSON(w, http.StatusOK, queued)
}

// QueueStats handles GET /livechat/queue/stats.
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.mgr.QueueStats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func parseAgent(payload *agentPayload) (*agent.Selected, error) {
	if payload == nil {
		return nil, nil
	}
	agentID, err := id.ParseAgentID(payload.ID)
	if err != nil {
		return nil, err
	}
	return &agent.Selected{AgentID: agentID, Username: payload.Username}, nil
}

// writeError maps the error taxonomy onto HTTP status codes. Hard failures
// mutate nothing; degraded-but-successful outcomes never reach this path.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, guest.ErrInvalidGuest):
		status = http.StatusBadRequest
	case errors.Is(err, livequeue.ErrNoAgentOnline):
		status = http.StatusServiceUnavailable
	case errors.Is(err, livequeue.ErrRoomNotFound),
		errors.Is(err, livequeue.ErrInquiryNotFound),
		errors.Is(err, livequeue.ErrAgentNotFound),
		errors.Is(err, livequeue.ErrNoRoomToUnarchive):
		status = http.StatusNotFound
	case errors.Is(err, livequeue.ErrInquiryExists),
		errors.Is(err, livequeue.ErrRoomExists),
		errors.Is(err, livequeue.ErrInvalidState):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
