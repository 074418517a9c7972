// Package id defines TypeID-based identity types for all livequeue entities.
//
// Every entity uses a single ID struct with a prefix that identifies the
// entity type. IDs are K-sortable (UUIDv7-based), globally unique, and
// URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all livequeue entity types.
const (
	PrefixRoom     Prefix = "room"
	PrefixInquiry  Prefix = "inq"
	PrefixVisitor  Prefix = "vst"
	PrefixAgent    Prefix = "agt"
	PrefixNotice   Prefix = "ntf"
	PrefixInstance Prefix = "swp"
)

// ID is the primary identifier type for all livequeue entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "inq_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Entity aliases
// ──────────────────────────────────────────────────

// RoomID identifies an omnichannel room (prefix: "room").
type RoomID = ID

// InquiryID identifies an inquiry (prefix: "inq").
type InquiryID = ID

// VisitorID identifies a guest/visitor (prefix: "vst").
type VisitorID = ID

// AgentID identifies an agent (prefix: "agt").
type AgentID = ID

// NoticeID identifies a persisted notification (prefix: "ntf").
type NoticeID = ID

// InstanceID identifies a sweeper instance (prefix: "swp").
type InstanceID = ID

// ──────────────────────────────────────────────────
// Convenience constructors and parsers
// ──────────────────────────────────────────────────

// NewRoomID generates a new unique room ID.
func NewRoomID() ID { return New(PrefixRoom) }

// NewInquiryID generates a new unique inquiry ID.
func NewInquiryID() ID { return New(PrefixInquiry) }

// NewVisitorID generates a new unique visitor ID.
func NewVisitorID() ID { return New(PrefixVisitor) }

// NewAgentID generates a new unique agent ID.
func NewAgentID() ID { return New(PrefixAgent) }

// NewNoticeID generates a new unique notification ID.
func NewNoticeID() ID { return New(PrefixNotice) }

// NewInstanceID generates a new unique sweeper instance ID.
func NewInstanceID() ID { return New(PrefixInstance) }

// ParseRoomID parses a string and validates the "room" prefix.
func ParseRoomID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRoom) }

// ParseInquiryID parses a string and validates the "inq" prefix.
func ParseInquiryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInquiry) }

// ParseVisitorID parses a string and validates the "vst" prefix.
func ParseVisitorID(s string) (ID, error) { return ParseWithPrefix(s, PrefixVisitor) }

// ParseAgentID parses a string and validates the "agt" prefix.
func ParseAgentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAgent) }

// ParseNoticeID parses a string and validates the "ntf" prefix.
func ParseNoticeID(s string) (ID, error) { return ParseWithPrefix(s, PrefixNotice) }

// ParseInstanceID parses a string and validates the "swp" prefix.
func ParseInstanceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInstance) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		if v == "" {
			*i = Nil
			return nil
		}
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*i = parsed
		return nil
	case []byte:
		return i.Scan(string(v))
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
