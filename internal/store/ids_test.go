package store

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	a, b := NewID("item"), NewID("item")
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if !strings.HasPrefix(a, "item-") {
		t.Fatalf("expected item prefix, got %q", a)
	}
	if got, want := len(strings.TrimPrefix(a, "item-")), 12; got != want {
		t.Fatalf("expected suffix len %d, got %d (%q)", want, got, a)
	}
}

func TestNewID_EmptyPrefix(t *testing.T) {
	id := NewID("  ")
	if len(id) != 12 || strings.Contains(id, "-") {
		t.Fatalf("expected bare 12-char suffix, got %q", id)
	}
}
