package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionRoomStarted    = "room.started"
	ActionRoomUnarchived = "room.unarchived"
	ActionInquiryQueued  = "inquiry.queued"
	ActionInquiryTaken   = "inquiry.taken"
	ActionInquiryRemoved = "inquiry.removed"
)

// Audit event categories group related actions.
const (
	CategoryRoom    = "livequeue.room"
	CategoryInquiry = "livequeue.inquiry"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceRoom    = "room"
	ResourceInquiry = "inquiry"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionRoomStarted,
		ActionRoomUnarchived,
		ActionInquiryQueued,
		ActionInquiryTaken,
		ActionInquiryRemoved,
	}
}
