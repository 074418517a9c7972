package livequeue

import "time"

// Entity carries the audit timestamps shared by all persisted entities.
// Stores set CreatedAt on insert and bump UpdatedAt on every mutation.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates UpdatedAt, setting CreatedAt first if unset.
func (e *Entity) Touch(now time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}
