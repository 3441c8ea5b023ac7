package ktracepoint

import (
	"encoding/binary"
	"testing"

	"github.com/tripwire/ktracepoint/pipe"
)

type fakeOps struct {
	pid int32
}

func (f *fakeOps) TimeNow() uint64                       { return 1 }
func (f *fakeOps) CPUID() uint32                         { return 0 }
func (f *fakeOps) CurrentPID() uint32                    { return uint32(f.pid) }
func (f *fakeOps) TraceCmdlinePush(pid int32)             {}
func (f *fakeOps) TracePipePushRawRecord(rec []byte, cpu uint32, timeNS uint64) {}
func (f *fakeOps) WriteKernelText(addr uintptr, b []byte) error { return nil }

func newTestTracePoint() *TracePoint {
	schema := NewSchema([]Field{
		{Name: "a", Kind: KindScalar, Signed: false, Width: 4, Len: 1},
		{Name: "b", Kind: KindScalar, Signed: false, Width: 4, Len: 1},
	})
	return NewTracePoint("test", "TEST", schema, NewAtomicBranch(), nil, "a=%d b=%d")
}

// TestFireDisabledIsNoop covers scenario S1: while the branch is disabled,
// Fire must not touch fastAssign, callbacks, or the filter at all.
func TestFireDisabledIsNoop(t *testing.T) {
	tp := newTestTracePoint()
	called := false
	fired := tp.Fire(&fakeOps{}, func(e *TraceEntry) { called = true }, nil)
	if fired {
		t.Fatal("Fire returned true while branch disabled")
	}
	if called {
		t.Fatal("fastAssign was invoked while branch disabled")
	}
	if tp.EventIsEnabled() {
		t.Fatal("EventIsEnabled() should default to false")
	}
}

func TestEnableDefaultIsVisibleToDefaultIsEnabled(t *testing.T) {
	tp := newTestTracePoint()
	if err := tp.EnableDefault(); err != nil {
		t.Fatalf("EnableDefault: %v", err)
	}
	if !tp.DefaultIsEnabled() {
		t.Fatal("DefaultIsEnabled() should be true immediately after EnableDefault()")
	}
}

func TestFireDispatchesDefaultAndEventCallbacks(t *testing.T) {
	tp := newTestTracePoint()
	_ = tp.EnableDefault()
	tp.EnableEvent()

	var gotPayload []byte
	tp.RegisterEventCallback("sub1", func(payload []byte) {
		gotPayload = payload
	})

	var rawArgsSeen []uint64
	tp.RegisterRawEventCallback("sub1", func(args []uint64) {
		rawArgsSeen = args
	})

	var defaultCalls int
	tp.Register("pipe", func(entry *TraceEntry, data any) {
		defaultCalls++
	}, nil)

	fired := tp.Fire(&fakeOps{pid: 99}, func(e *TraceEntry) {
		e.Payload = []byte{1, 0, 0, 0, 2, 0, 0, 0}
	}, []uint64{1, 2})

	if !fired {
		t.Fatal("Fire returned false while branch enabled")
	}
	if defaultCalls != 1 {
		t.Fatalf("default callback invoked %d times, want 1", defaultCalls)
	}
	if len(gotPayload) != 8 {
		t.Fatalf("event callback payload len = %d, want 8", len(gotPayload))
	}
	if len(rawArgsSeen) != 2 || rawArgsSeen[0] != 1 || rawArgsSeen[1] != 2 {
		t.Fatalf("raw callback args = %v, want [1 2]", rawArgsSeen)
	}
}

func TestFirstRegistrationWinsOnKeyCollision(t *testing.T) {
	tp := newTestTracePoint()
	first := false
	second := false
	ok1 := tp.Register("dup", func(entry *TraceEntry, data any) { first = true }, nil)
	ok2 := tp.Register("dup", func(entry *TraceEntry, data any) { second = true }, nil)
	if !ok1 || ok2 {
		t.Fatalf("register results = %v, %v, want true, false", ok1, ok2)
	}
	_ = tp.EnableDefault()
	tp.Fire(&fakeOps{}, func(e *TraceEntry) {}, nil)
	if !first || second {
		t.Fatalf("first=%v second=%v, want first callback to have run exclusively", first, second)
	}
}

func TestFilterRejectsRecord(t *testing.T) {
	tp := newTestTracePoint()
	_ = tp.EnableDefault()
	tp.SetCompiledExpr(rejectAllFilter{})

	var calls int
	tp.Register("pipe", func(entry *TraceEntry, data any) { calls++ }, nil)

	tp.Fire(&fakeOps{}, func(e *TraceEntry) {}, nil)
	if calls != 0 {
		t.Fatalf("default callback invoked %d times, want 0 when filter rejects", calls)
	}
}

type rejectAllFilter struct{}

func (rejectAllFilter) Eval(payload []byte) bool { return false }

// TestEnableAndEmitTwiceProducesOrderedSnapshot covers scenario S2: once
// enabled, two consecutive Fire calls must land in the raw pipe in the
// exact order they fired, each carrying its own arguments.
func TestEnableAndEmitTwiceProducesOrderedSnapshot(t *testing.T) {
	tp := newTestTracePoint()
	_ = tp.EnableDefault()
	tp.EnableEvent()

	raw := pipe.NewRaw(16)
	tp.Register("pipe-sink", func(entry *TraceEntry, data any) {
		raw.PushEvent(entry.Encode(), entry.CommonCPU, entry.CommonTime)
	}, nil)

	assign := func(a, b uint32) func(*TraceEntry) {
		return func(e *TraceEntry) {
			e.Payload = make([]byte, 8)
			binary.LittleEndian.PutUint32(e.Payload[0:4], a)
			binary.LittleEndian.PutUint32(e.Payload[4:8], b)
		}
	}

	if !tp.Fire(&fakeOps{}, assign(1, 2), []uint64{1, 2}) {
		t.Fatal("first Fire returned false while branch enabled")
	}
	if !tp.Fire(&fakeOps{}, assign(3, 4), []uint64{3, 4}) {
		t.Fatal("second Fire returned false while branch enabled")
	}

	cursor := raw.Snapshot()

	first, ok := cursor.Pop()
	if !ok {
		t.Fatal("expected a first record in the pipe")
	}
	entry, err := DecodeTraceEntry(first.Bytes)
	if err != nil {
		t.Fatalf("decode first record: %v", err)
	}
	if a, b := binary.LittleEndian.Uint32(entry.Payload[0:4]), binary.LittleEndian.Uint32(entry.Payload[4:8]); a != 1 || b != 2 {
		t.Fatalf("first record = {a=%d b=%d}, want {a=1 b=2}", a, b)
	}

	second, ok := cursor.Pop()
	if !ok {
		t.Fatal("expected a second record in the pipe")
	}
	entry, err = DecodeTraceEntry(second.Bytes)
	if err != nil {
		t.Fatalf("decode second record: %v", err)
	}
	if a, b := binary.LittleEndian.Uint32(entry.Payload[0:4]), binary.LittleEndian.Uint32(entry.Payload[4:8]); a != 3 || b != 4 {
		t.Fatalf("second record = {a=%d b=%d}, want {a=3 b=4}", a, b)
	}

	if _, ok := cursor.Pop(); ok {
		t.Fatal("expected no third record in the pipe")
	}
}
