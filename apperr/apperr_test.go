package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("set status: %w", NotFound("issue %q not found", "42"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped error to match ErrNotFound")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("did not expect wrapped error to match ErrValidation")
	}
}

func TestKindOfAndMessage(t *testing.T) {
	err := Validation("title is required")
	kind, ok := KindOf(err)
	if !ok || kind != KindValidation {
		t.Fatalf("expected validation kind, got %q (ok=%v)", kind, ok)
	}
	if got := MessageOf(err, "fallback"); got != "title is required" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := MessageOf(errors.New("boom"), "fallback"); got != "fallback" {
		t.Fatalf("expected fallback message, got %q", got)
	}
	if _, ok := KindOf(errors.New("boom")); ok {
		t.Fatalf("plain errors should not report a kind")
	}
}
