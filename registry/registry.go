// Package registry implements the tracepoint registry: a process-wide map
// from (system, name) to event, stable ID assignment at init time,
// subsystem grouping, and the control pseudo-file views every tracepoint
// exposes (enable/format/id/filter).
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tripwire/ktracepoint"
)

// Subsystem groups events by their declared system name.
type Subsystem struct {
	Name   string
	events map[string]*EventInfo
}

// Events returns the subsystem's events, keyed by event name.
func (s *Subsystem) Events() map[string]*EventInfo {
	out := make(map[string]*EventInfo, len(s.events))
	for k, v := range s.events {
		out[k] = v
	}
	return out
}

// EventInfo is the registry's view of one tracepoint: the TracePoint
// itself plus its four pseudo-file views.
type EventInfo struct {
	TP *ktracepoint.TracePoint
}

// EnableText implements the "…/enable" read semantics: "1\n" or "0\n".
func (e *EventInfo) EnableText() string {
	if e.TP.DefaultIsEnabled() {
		return "1\n"
	}
	return "0\n"
}

// SetEnableText implements the "…/enable" write semantics: writing "1"
// calls enable_default(), "0" calls disable_default(), anything else is
// logged at Warn, ignored, and returned as InvalidControlInput.
func (e *EventInfo) SetEnableText(value string) error {
	switch strings.TrimSpace(value) {
	case "1":
		return e.TP.EnableDefault()
	case "0":
		return e.TP.DisableDefault()
	default:
		slog.Warn("registry: ignoring invalid enable write",
			"system", e.TP.System(), "name", e.TP.Name(), "value", value)
		return &ktracepoint.InvalidControlInput{File: "enable", Value: value}
	}
}

// FormatText implements the read-only "…/format" pseudo-file: the
// name/ID-prefixed block plus the schema's field layout.
func (e *EventInfo) FormatText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", e.TP.Name())
	fmt.Fprintf(&b, "ID: %d\n", e.TP.ID())
	b.WriteString(e.TP.Schema().FormatText())
	return b.String()
}

// IDText implements the read-only "…/id" pseudo-file.
func (e *EventInfo) IDText() string {
	return strconv.FormatUint(uint64(e.TP.ID()), 10) + "\n"
}

// FilterText returns the currently installed filter's source expression,
// or "" if none is installed.
func (e *EventInfo) FilterText() string {
	if f, ok := e.TP.GetCompiledExpr().(interface{ Source() string }); ok {
		return f.Source()
	}
	return ""
}

// FilterCompiler compiles a filter expression string against a schema,
// returning a ktracepoint.Filter or a descriptive error. Package filter's
// Compile function satisfies this; it is passed in rather than imported
// directly so this package never needs to know about the lexer/parser.
type FilterCompiler func(expr string, schema *ktracepoint.Schema) (ktracepoint.Filter, error)

// Manager is the process-wide tracing events manager: the registry of
// every declared tracepoint, indexed by ID and by (system, name).
type Manager struct {
	mu          sync.RWMutex
	byID        map[uint32]*EventInfo
	bySysName   map[string]map[string]*EventInfo
	subsystems  map[string]*Subsystem
	compileExpr FilterCompiler
}

// NewManager returns an empty Manager. compileExpr is used by SetFilterText;
// it may be nil if the caller never installs filters through the registry
// (e.g. a test that calls TracePoint.SetCompiledExpr directly).
func NewManager(compileExpr FilterCompiler) *Manager {
	return &Manager{
		byID:       make(map[uint32]*EventInfo),
		bySysName:  make(map[string]map[string]*EventInfo),
		subsystems: make(map[string]*Subsystem),
		compileExpr: compileExpr,
	}
}

// builtinPipeSinkKey is the fixed Register key Init uses for the
// auto-registered pipe-sink default callback, on every tracepoint it
// processes.
const builtinPipeSinkKey = "registry:builtin-pipe-sink"

// Init is the Go analog of global_init_events: given the set of declared
// events (ordinarily ktracepoint.RegisteredEvents()), it sorts stably by
// (name, system) so IDs are deterministic across runs with the same event
// set, assigns sequential IDs, and populates both the flat ID map and the
// subsystem tree.
//
// If ops is non-nil, Init also auto-registers each tracepoint's built-in
// default callback: push the fired record into ops' raw trace pipe and
// resolve/push its pid's command name, mirroring the
// tracepoint.register(tracepoint_meta.print_func, …) loop
// global_init_events runs over every declared tracepoint. Without this, a
// tracepoint that enables and fires would silently never reach any sink
// unless its definer remembered to wire one by hand. ops may be nil for
// tests that only exercise the pseudo-file views and never fire.
func (m *Manager) Init(events []ktracepoint.EventInfo, ops ktracepoint.KernelTraceOps) error {
	sorted := make([]ktracepoint.EventInfo, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TP.Name() != sorted[j].TP.Name() {
			return sorted[i].TP.Name() < sorted[j].TP.Name()
		}
		return sorted[i].TP.System() < sorted[j].TP.System()
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	var nextID uint32
	for _, ev := range sorted {
		sys, name := ev.TP.System(), ev.TP.Name()
		if _, exists := m.bySysName[sys][name]; exists {
			return &ktracepoint.InitFailure{System: sys, Name: name, Reason: "duplicate (system, name) pair"}
		}
		if err := ev.TP.AssignID(nextID); err != nil {
			return err
		}
		if ops != nil {
			ev.TP.Register(builtinPipeSinkKey, func(entry *ktracepoint.TraceEntry, _ any) {
				ops.TracePipePushRawRecord(entry.Encode(), entry.CommonCPU, entry.CommonTime)
				ops.TraceCmdlinePush(entry.CommonPID)
			}, nil)
		}
		info := &EventInfo{TP: ev.TP}
		m.byID[nextID] = info
		if m.bySysName[sys] == nil {
			m.bySysName[sys] = make(map[string]*EventInfo)
		}
		m.bySysName[sys][name] = info
		sub, ok := m.subsystems[sys]
		if !ok {
			sub = &Subsystem{Name: sys, events: make(map[string]*EventInfo)}
			m.subsystems[sys] = sub
		}
		sub.events[name] = info
		nextID++
	}
	return nil
}

// TracepointMap returns a snapshot of id -> EventInfo.
func (m *Manager) TracepointMap() map[uint32]*EventInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint32]*EventInfo, len(m.byID))
	for k, v := range m.byID {
		out[k] = v
	}
	return out
}

// GetSubsystem returns the named subsystem, or nil if it does not exist.
func (m *Manager) GetSubsystem(name string) *Subsystem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subsystems[name]
}

// SubsystemNames returns all known subsystem names.
func (m *Manager) SubsystemNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.subsystems))
	for n := range m.subsystems {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RemoveSubsystem drops a subsystem and all of its events from the
// registry's lookup tables. The underlying TracePoints are untouched —
// only discovery is affected.
func (m *Manager) RemoveSubsystem(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subsystems[name]
	if !ok {
		return
	}
	for _, info := range sub.events {
		delete(m.byID, info.TP.ID())
	}
	delete(m.bySysName, name)
	delete(m.subsystems, name)
}

// TracePointByID implements render.Lookup.
func (m *Manager) TracePointByID(id uint32) (*ktracepoint.TracePoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return info.TP, true
}

// Event looks up a single event by (system, name).
func (m *Manager) Event(system, name string) (*EventInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.bySysName[system][name]
	return info, ok
}

// SetFilterText compiles expr against event's schema and installs it, or
// returns a *ktracepoint.FilterError and leaves the previous filter (if
// any) in place — the site remains unfiltered (or keeps its prior filter)
// until a valid expression is supplied.
func (m *Manager) SetFilterText(system, name, expr string) error {
	info, ok := m.Event(system, name)
	if !ok {
		return &ktracepoint.InitFailure{System: system, Name: name, Reason: "no such event"}
	}
	if m.compileExpr == nil {
		return &ktracepoint.FilterError{Expr: expr, Reason: "no filter compiler configured"}
	}
	compiled, err := m.compileExpr(expr, info.TP.Schema())
	if err != nil {
		return err
	}
	info.TP.SetCompiledExpr(compiled)
	return nil
}
