package ext

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/room"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type beforeRouteChatEntry struct {
	name string
	hook BeforeRouteChat
}

type inquiryQueuedEntry struct {
	name string
	hook InquiryQueued
}

type inquiryTakenEntry struct {
	name string
	hook InquiryTaken
}

type inquiryRemovedEntry struct {
	name string
	hook InquiryRemoved
}

type roomStartedEntry struct {
	name string
	hook RoomStarted
}

type roomUnarchivedEntry struct {
	name string
	hook RoomUnarchived
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events to
// them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	beforeRouteChat []beforeRouteChatEntry
	inquiryQueued   []inquiryQueuedEntry
	inquiryTaken    []inquiryTakenEntry
	inquiryRemoved  []inquiryRemovedEntry
	roomStarted     []roomStartedEntry
	roomUnarchived  []roomUnarchivedEntry
	shutdown        []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable hook
// caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(BeforeRouteChat); ok {
		r.beforeRouteChat = append(r.beforeRouteChat, beforeRouteChatEntry{name, h})
	}
	if h, ok := e.(InquiryQueued); ok {
		r.inquiryQueued = append(r.inquiryQueued, inquiryQueuedEntry{name, h})
	}
	if h, ok := e.(InquiryTaken); ok {
		r.inquiryTaken = append(r.inquiryTaken, inquiryTakenEntry{name, h})
	}
	if h, ok := e.(InquiryRemoved); ok {
		r.inquiryRemoved = append(r.inquiryRemoved, inquiryRemovedEntry{name, h})
	}
	if h, ok := e.(RoomStarted); ok {
		r.roomStarted = append(r.roomStarted, roomStartedEntry{name, h})
	}
	if h, ok := e.(RoomUnarchived); ok {
		r.roomUnarchived = append(r.roomUnarchived, roomUnarchivedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns the registered extensions in registration order.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Pipeline emitters
// ──────────────────────────────────────────────────

// EmitBeforeRouteChat runs the before-route hooks in registration order.
// The first error aborts the pipeline and is returned to the caller.
func (r *Registry) EmitBeforeRouteChat(ctx context.Context, inq *inquiry.Inquiry, selected *agent.Selected) error {
	for _, e := range r.beforeRouteChat {
		if err := e.hook.OnBeforeRouteChat(ctx, inq, selected); err != nil {
			return fmt.Errorf("ext: %s vetoed routing: %w", e.name, err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Fire-and-forget emitters
// ──────────────────────────────────────────────────

// EmitInquiryQueued notifies all extensions that implement InquiryQueued.
func (r *Registry) EmitInquiryQueued(ctx context.Context, inq *inquiry.Inquiry) {
	for _, e := range r.inquiryQueued {
		if err := e.hook.OnInquiryQueued(ctx, inq); err != nil {
			r.logHookError("OnInquiryQueued", e.name, err)
		}
	}
}

// EmitInquiryTaken notifies all extensions that implement InquiryTaken.
func (r *Registry) EmitInquiryTaken(ctx context.Context, inq *inquiry.Inquiry, served *agent.Ref) {
	for _, e := range r.inquiryTaken {
		if err := e.hook.OnInquiryTaken(ctx, inq, served); err != nil {
			r.logHookError("OnInquiryTaken", e.name, err)
		}
	}
}

// EmitInquiryRemoved notifies all extensions that implement InquiryRemoved.
func (r *Registry) EmitInquiryRemoved(ctx context.Context, inquiryID id.InquiryID) {
	for _, e := range r.inquiryRemoved {
		if err := e.hook.OnInquiryRemoved(ctx, inquiryID); err != nil {
			r.logHookError("OnInquiryRemoved", e.name, err)
		}
	}
}

// EmitRoomStarted notifies all extensions that implement RoomStarted.
func (r *Registry) EmitRoomStarted(ctx context.Context, rm *room.Room) {
	for _, e := range r.roomStarted {
		if err := e.hook.OnRoomStarted(ctx, rm); err != nil {
			r.logHookError("OnRoomStarted", e.name, err)
		}
	}
}

// EmitRoomUnarchived notifies all extensions that implement RoomUnarchived.
func (r *Registry) EmitRoomUnarchived(ctx context.Context, rm *room.Room) {
	for _, e := range r.roomUnarchived {
		if err := e.hook.OnRoomUnarchived(ctx, rm); err != nil {
			r.logHookError("OnRoomUnarchived", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a fire-and-forget hook returns an error.
// Errors from these hooks are never propagated — they must not block the
// pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
