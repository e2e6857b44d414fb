package orchestrator

import "testing"

func TestBoolToStateMapsPendingConfirmationCorrectly(t *testing.T) {
	if got := boolToState(true); got != StateAwaitingConfirmation {
		t.Fatalf("expected AwaitingConfirmation, got %s", got)
	}
	if got := boolToState(false); got != StateIdle {
		t.Fatalf("expected Idle, got %s", got)
	}
}

func TestNewStartsIdle(t *testing.T) {
	o := New(Config{})
	if o.State() != StateIdle {
		t.Fatalf("expected initial state Idle, got %s", o.State())
	}
}
