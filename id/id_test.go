package id_test

import (
	"strings"
	"testing"

	"github.com/omnikit/livequeue/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"RoomID", id.NewRoomID, "room_"},
		{"InquiryID", id.NewInquiryID, "inq_"},
		{"VisitorID", id.NewVisitorID, "vst_"},
		{"AgentID", id.NewAgentID, "agt_"},
		{"NoticeID", id.NewNoticeID, "ntf_"},
		{"InstanceID", id.NewInstanceID, "swp_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixInquiry)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixInquiry {
		t.Errorf("expected prefix %q, got %q", id.PrefixInquiry, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"RoomID", id.NewRoomID, id.ParseRoomID},
		{"InquiryID", id.NewInquiryID, id.ParseInquiryID},
		{"VisitorID", id.NewVisitorID, id.ParseVisitorID},
		{"AgentID", id.NewAgentID, id.ParseAgentID},
		{"NoticeID", id.NewNoticeID, id.ParseNoticeID},
		{"InstanceID", id.NewInstanceID, id.ParseInstanceID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	roomID := id.NewRoomID()
	if _, err := id.ParseInquiryID(roomID.String()); err == nil {
		t.Fatal("expected error parsing room ID as inquiry ID")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Fatal("expected error parsing empty string")
	}
}

func TestNilID(t *testing.T) {
	var nilID id.ID
	if !nilID.IsNil() {
		t.Fatal("zero-value ID should be nil")
	}
	if nilID.String() != "" {
		t.Errorf("nil ID should render empty, got %q", nilID.String())
	}

	v, err := nilID.Value()
	if err != nil {
		t.Fatalf("Value on nil ID: %v", err)
	}
	if v != nil {
		t.Errorf("nil ID should store NULL, got %v", v)
	}
}

func TestTextRoundTrip(t *testing.T) {
	original := id.NewInquiryID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var parsed id.ID
	if err := parsed.UnmarshalText(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
	}
}

func TestScan(t *testing.T) {
	original := id.NewRoomID()

	var scanned id.ID
	if err := scanned.Scan(original.String()); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("scan mismatch: %q != %q", scanned.String(), original.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !fromNil.IsNil() {
		t.Fatal("scanning nil should produce the Nil ID")
	}
}
