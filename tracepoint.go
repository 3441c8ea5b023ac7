package ktracepoint

import (
	"sync"
	"sync/atomic"
)

// DefaultCallback is the built-in-style handler registered on a
// TracePoint's default-callback table. data is whatever opaque value the
// registrant supplied at Register time.
type DefaultCallback func(entry *TraceEntry, data any)

// EventCallback receives the serialized payload bytes of a fired record.
type EventCallback func(payload []byte)

// RawCallback receives a record's original arguments widened to u64 via
// AsU64, without the serialization step.
type RawCallback func(args []uint64)

// orderedTable is a small insertion-ordered map, used for all three of a
// TracePoint's callback tables: a key->value map plus a slice of keys in
// insertion order, so iteration is deterministic.
type orderedTable[T any] struct {
	mu      sync.Mutex
	order   []any
	entries map[any]T
}

// register inserts val under key if key is not already present — first
// registration wins on collision. Reports whether the insertion
// happened.
func (t *orderedTable[T]) register(key any, val T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries == nil {
		t.entries = make(map[any]T)
	}
	if _, exists := t.entries[key]; exists {
		return false
	}
	t.entries[key] = val
	t.order = append(t.order, key)
	return true
}

func (t *orderedTable[T]) unregister(key any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[key]; !exists {
		return
	}
	delete(t.entries, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// snapshot returns the keys and values in insertion order, under the lock,
// so that callers can iterate and invoke callbacks without holding the
// table lock across the call-out, bounding hold time to table size.
func (t *orderedTable[T]) snapshot() ([]any, []T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]any, len(t.order))
	copy(keys, t.order)
	vals := make([]T, len(keys))
	for i, k := range keys {
		vals[i] = t.entries[k]
	}
	return keys, vals
}

// TracePoint is the per-event object: identity, schema, the three
// callback tables, the compiled filter slot, and the static branch that
// gates the whole emission path.
type TracePoint struct {
	system string
	name   string

	idMu sync.Mutex
	id   uint32
	hasID bool

	branch Branch
	schema *Schema

	defaultCallbacks struct {
		keyed orderedTable[defaultCallbackEntry]
	}
	eventCallbacks    orderedTable[EventCallback]
	rawEventCallbacks orderedTable[RawCallback]

	eventEnabled atomic.Bool

	filterMu sync.RWMutex
	filter   Filter

	printFmtThunk func(payload []byte) string
	printFmtText  string
}

type defaultCallbackEntry struct {
	cb   DefaultCallback
	data any
}

// NewTracePoint constructs a TracePoint in the disabled state. branch is
// typically a *AtomicBranch; printFmt renders one record to a user-facing
// string (the print_fmt thunk), and printFmtText is the static template
// printFmt is built from, returned verbatim by PrintFmtText.
func NewTracePoint(system, name string, schema *Schema, branch Branch, printFmt func([]byte) string, printFmtText string) *TracePoint {
	return &TracePoint{
		system:        system,
		name:          name,
		branch:        branch,
		schema:        schema,
		printFmtThunk: printFmt,
		printFmtText:  printFmtText,
	}
}

// System, Name, Schema, ID return the TracePoint's identity. ID is 0 until
// a real one is assigned through AssignID, which package registry does
// during init.
func (tp *TracePoint) System() string  { return tp.system }
func (tp *TracePoint) Name() string    { return tp.name }
func (tp *TracePoint) Schema() *Schema { return tp.schema }

func (tp *TracePoint) ID() uint32 {
	tp.idMu.Lock()
	defer tp.idMu.Unlock()
	return tp.id
}

// AssignID sets this TracePoint's registry-assigned ID. It is exported so
// package registry (a sibling, not a parent, of this package) can call it
// during global_init_events-equivalent startup; it must be called at most
// once per TracePoint.
func (tp *TracePoint) AssignID(id uint32) error {
	tp.idMu.Lock()
	defer tp.idMu.Unlock()
	if tp.hasID {
		return &InitFailure{System: tp.system, Name: tp.name, Reason: "ID already assigned"}
	}
	tp.id = id
	tp.hasID = true
	return nil
}

// PrintFmtText returns the static format template this event was defined
// with.
func (tp *TracePoint) PrintFmtText() string { return tp.printFmtText }

// PrintFmt renders payload using the user-authored print_fmt thunk.
func (tp *TracePoint) PrintFmt(payload []byte) string {
	if tp.printFmtThunk == nil {
		return ""
	}
	return tp.printFmtThunk(payload)
}

// EnableDefault, DisableDefault, DefaultIsEnabled delegate to the static
// branch.
func (tp *TracePoint) EnableDefault() error  { return tp.branch.Enable() }
func (tp *TracePoint) DisableDefault() error { return tp.branch.Disable() }
func (tp *TracePoint) DefaultIsEnabled() bool { return tp.branch.IsEnabled() }

// EnableEvent, DisableEvent, EventIsEnabled flip a plain atomic gating the
// event-callback fan-out independently of the default formatter.
func (tp *TracePoint) EnableEvent()         { tp.eventEnabled.Store(true) }
func (tp *TracePoint) DisableEvent()        { tp.eventEnabled.Store(false) }
func (tp *TracePoint) EventIsEnabled() bool { return tp.eventEnabled.Load() }

// Register inserts a default callback keyed by key (first registration
// wins on collision). data is passed back to cb unchanged on every fire.
func (tp *TracePoint) Register(key any, cb DefaultCallback, data any) bool {
	return tp.defaultCallbacks.keyed.register(key, defaultCallbackEntry{cb: cb, data: data})
}

// Unregister removes a previously registered default callback.
func (tp *TracePoint) Unregister(key any) {
	tp.defaultCallbacks.keyed.unregister(key)
}

// RegisterEventCallback, UnregisterEventCallback manage the event-callback
// table (serialized-payload subscribers).
func (tp *TracePoint) RegisterEventCallback(id any, cb EventCallback) bool {
	return tp.eventCallbacks.register(id, cb)
}
func (tp *TracePoint) UnregisterEventCallback(id any) {
	tp.eventCallbacks.unregister(id)
}

// RegisterRawEventCallback, UnregisterRawEventCallback manage the
// raw-callback table (u64-widened-argument subscribers).
func (tp *TracePoint) RegisterRawEventCallback(id any, cb RawCallback) bool {
	return tp.rawEventCallbacks.register(id, cb)
}
func (tp *TracePoint) UnregisterRawEventCallback(id any) {
	tp.rawEventCallbacks.unregister(id)
}

// SetCompiledExpr installs or clears the compiled filter. A nil Filter
// means "always pass".
func (tp *TracePoint) SetCompiledExpr(f Filter) {
	tp.filterMu.Lock()
	tp.filter = f
	tp.filterMu.Unlock()
}

// GetCompiledExpr returns the currently installed filter, or nil.
func (tp *TracePoint) GetCompiledExpr() Filter {
	tp.filterMu.RLock()
	defer tp.filterMu.RUnlock()
	return tp.filter
}

// Fire runs the full emission path: branch check, entry assembly, filter
// evaluation, then default/event/raw callback fan-out. fastAssign fills
// entry.Payload from the caller's arguments; rawArgs are those same
// arguments already widened via AsU64, for the raw-callback fan-out.
// Fire returns false without doing any further work if the static branch
// is disabled — the fast path takes no lock and does not call fastAssign
// at all.
func (tp *TracePoint) Fire(ops KernelTraceOps, fastAssign func(entry *TraceEntry), rawArgs []uint64) bool {
	if !tp.branch.IsEnabled() {
		return false
	}

	entry := &TraceEntry{
		CommonType: uint16(tp.ID()),
		CommonPID:  int32(ops.CurrentPID()),
		CommonTime: ops.TimeNow(),
		CommonCPU:  ops.CPUID(),
	}

	if fastAssign != nil {
		fastAssign(entry)
	}

	if f := tp.GetCompiledExpr(); f != nil && !f.Eval(entry.Encode()) {
		return false
	}

	keys, cbs := tp.defaultCallbacks.keyed.snapshot()
	for i := range keys {
		cbs[i].cb(entry, cbs[i].data)
	}

	if tp.EventIsEnabled() {
		_, ecbs := tp.eventCallbacks.snapshot()
		for _, cb := range ecbs {
			cb(entry.Payload)
		}
	}

	_, rcbs := tp.rawEventCallbacks.snapshot()
	for _, cb := range rcbs {
		cb(rawArgs)
	}

	return true
}
