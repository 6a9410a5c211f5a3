package common

import (
	"errors"
	"testing"
)

func TestGuardAction(t *testing.T) {
	if err := GuardAction(nil, "lending", "pay"); err != nil {
		t.Fatalf("nil view should not block: %v", err)
	}
	pauses := NewPauseSet(" lending.pay ", "")
	if err := GuardAction(pauses, "lending", "pay"); !errors.Is(err, ErrActionPaused) {
		t.Fatalf("expected ErrActionPaused, got %v", err)
	}
	if err := GuardAction(pauses, "lending", "originate"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pauses["lending"] = true
	if err := GuardAction(pauses, "lending", "originate"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
