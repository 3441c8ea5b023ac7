package ktracepoint

import "sync"

// EventInfo is a companion record pairing a TracePoint with its print
// function so the registry can enumerate every declared event without
// relying on registration order. The reference implementation walks a
// linker section (__start_tracepoint/__stop_tracepoint); Go has no such
// mechanism, so Define appends to an explicit process-wide list instead.
type EventInfo struct {
	TP        *TracePoint
	PrintFunc func([]byte) string
}

var (
	registeredMu sync.Mutex
	registered   []EventInfo
)

// Define constructs a TracePoint and appends its EventInfo to the
// process-wide registration list, the way a declarative site-definition
// macro surface would on a platform with linker sections. The returned
// TracePoint is what a hand-written trace_NAME entry-point function calls
// Fire on.
func Define(system, name string, schema *Schema, branch Branch, printFmt func([]byte) string, printFmtText string) *TracePoint {
	tp := NewTracePoint(system, name, schema, branch, printFmt, printFmtText)
	registeredMu.Lock()
	registered = append(registered, EventInfo{TP: tp, PrintFunc: printFmt})
	registeredMu.Unlock()
	return tp
}

// RegisteredEvents returns a snapshot of every TracePoint defined via
// Define so far, in definition order. A registry.Manager reads this once
// at startup (the Go equivalent of global_init_events's linker-section
// walk) and is otherwise free of it — tests that want isolation should
// build TracePoints directly with NewTracePoint and hand the resulting
// EventInfo slice to Manager.Init instead of relying on this global list.
func RegisteredEvents() []EventInfo {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	out := make([]EventInfo, len(registered))
	copy(out, registered)
	return out
}
