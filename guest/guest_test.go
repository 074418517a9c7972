package guest_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/omnikit/livequeue/guest"
	"github.com/omnikit/livequeue/id"
)

func TestValidate_OK(t *testing.T) {
	g := guest.Guest{
		ID:       id.NewVisitorID(),
		Username: "alice",
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected valid guest, got %v", err)
	}
}

func TestValidate_MissingID(t *testing.T) {
	g := guest.Guest{Username: "alice"}
	err := g.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, guest.ErrInvalidGuest) {
		t.Fatalf("expected ErrInvalidGuest, got %v", err)
	}
}

func TestValidate_MissingUsername(t *testing.T) {
	g := guest.Guest{ID: id.NewVisitorID()}
	err := g.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *guest.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Issues) != 1 || verr.Issues[0].Field != "username" {
		t.Fatalf("expected one username issue, got %+v", verr.Issues)
	}
}

func TestValidate_WrongPrefix(t *testing.T) {
	g := guest.Guest{ID: id.NewRoomID(), Username: "alice"}
	if err := g.Validate(); err == nil {
		t.Fatal("expected validation error for non-visitor prefix")
	}
}

func TestValidate_CollectsAllIssues(t *testing.T) {
	g := guest.Guest{Activity: []string{"idle", ""}}
	err := g.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *guest.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Issues) != 3 {
		t.Fatalf("expected 3 issues (id, username, activity), got %d: %+v", len(verr.Issues), verr.Issues)
	}
	if !strings.Contains(verr.Error(), "username: required") {
		t.Errorf("error text should list issues, got %q", verr.Error())
	}
}

func TestDisplayName(t *testing.T) {
	g := guest.Guest{Username: "alice"}
	if g.DisplayName() != "alice" {
		t.Fatalf("expected username fallback, got %q", g.DisplayName())
	}
	g.Name = "Alice A."
	if g.DisplayName() != "Alice A." {
		t.Fatalf("expected display name, got %q", g.DisplayName())
	}
}
