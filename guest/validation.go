package guest

import (
	"errors"
	"strings"
)

// ErrInvalidGuest is the sentinel matched by errors.Is for any guest
// validation failure.
var ErrInvalidGuest = errors.New("livequeue: invalid guest payload")

// Issue describes a single validation failure.
type Issue struct {
	Field  string
	Reason string
}

// ValidationError aggregates every structural issue found in a guest
// payload. It is rejected at the boundary before any state mutation.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) add(field, reason string) {
	e.Issues = append(e.Issues, Issue{Field: field, Reason: reason})
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrInvalidGuest.Error()
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.Field + ": " + issue.Reason
	}
	return ErrInvalidGuest.Error() + " (" + strings.Join(parts, "; ") + ")"
}

// Is reports whether target is ErrInvalidGuest.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidGuest }
