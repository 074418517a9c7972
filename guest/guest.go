// Package guest defines the visitor descriptor accepted at the boundary of
// the queueing core, together with its structural validation.
//
// Guests are owned by the surrounding platform; the queueing core reads
// them, validates their shape, and snapshots them onto rooms and inquiries.
package guest

import (
	"strconv"

	"github.com/omnikit/livequeue/id"
)

// Guest describes the visitor requesting a conversation.
type Guest struct {
	ID         id.VisitorID `json:"id"`
	Username   string       `json:"username"`
	Name       string       `json:"name,omitempty"`
	Department string       `json:"department,omitempty"`
	Status     string       `json:"status,omitempty"`
	Token      string       `json:"token,omitempty"`
	Activity   []string     `json:"activity,omitempty"`
}

// DisplayName resolves the name shown for this guest: the display name when
// present, the username otherwise.
func (g Guest) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.Username
}

// Validate checks the structural shape of the guest descriptor. ID and
// Username are required; everything else is optional. Returns a
// *ValidationError listing every issue found, or nil when valid.
func (g Guest) Validate() error {
	var verr ValidationError

	if g.ID.IsNil() {
		verr.add("id", "required")
	} else if g.ID.Prefix() != id.PrefixVisitor {
		verr.add("id", "must carry the visitor prefix")
	}
	if g.Username == "" {
		verr.add("username", "required")
	}
	for i, a := range g.Activity {
		if a == "" {
			verr.add("activity", "entry "+strconv.Itoa(i)+" is empty")
		}
	}

	if len(verr.Issues) > 0 {
		return &verr
	}
	return nil
}
