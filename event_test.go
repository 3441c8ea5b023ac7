package ktracepoint

import "testing"

func TestDefineAppendsToRegisteredEvents(t *testing.T) {
	before := len(RegisteredEvents())
	schema := NewSchema(nil)
	Define("deftest", "EVT", schema, NewAtomicBranch(), nil, "")
	after := RegisteredEvents()
	if len(after) != before+1 {
		t.Fatalf("RegisteredEvents() grew by %d, want 1", len(after)-before)
	}
	last := after[len(after)-1]
	if last.TP.System() != "deftest" || last.TP.Name() != "EVT" {
		t.Fatalf("unexpected last entry: %+v", last.TP)
	}
}
