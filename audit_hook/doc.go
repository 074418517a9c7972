// Package audithook is a livequeue extension that bridges lifecycle events
// to an immutable audit trail backend.
//
// Every room and inquiry lifecycle hook emits a structured audit event
// through the [Recorder] interface with an appropriate severity (info for
// normal transitions, warning for re-parks) and rich metadata (room,
// department, serving agent).
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return trail.Write(ctx, evt.Action, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionInquiryTaken,
//	        audithook.ActionInquiryRemoved,
//	    ),
//	)
package audithook
