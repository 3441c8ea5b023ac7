package hostops

import (
	"errors"
	"sync"
)

var errFakePatchFailure = errors.New("hostops: fake patch failure (armed by SetPatchFailure)")

// Fake is a deterministic KernelTraceOps double for tests and examples,
// grounded directly on the reference implementation's usage example (its
// Kops struct): a settable clock/cpu/pid and an in-memory pid->name map
// instead of OS introspection.
type Fake struct {
	mu            sync.Mutex
	now           uint64
	cpu           uint32
	pid           uint32
	names         map[int32]string
	patches       [][]byte
	pushed        []PushedRecord
	cache         cmdlinePusher
	failNextPatch bool
}

// PushedRecord is one record captured via TracePipePushRawRecord, for test
// assertions that don't need a real pipe.Raw wired in.
type PushedRecord struct {
	Bytes  []byte
	CPU    uint32
	TimeNS uint64
}

// NewFake returns a Fake starting at time 0, cpu 0, pid 0.
func NewFake() *Fake {
	return &Fake{names: make(map[int32]string)}
}

// SetTime, SetCPU, SetPID let a test script the values TimeNow/CPUID/
// CurrentPID will next return.
func (f *Fake) SetTime(ns uint64) { f.mu.Lock(); f.now = ns; f.mu.Unlock() }
func (f *Fake) SetCPU(cpu uint32) { f.mu.Lock(); f.cpu = cpu; f.mu.Unlock() }
func (f *Fake) SetPID(pid uint32) { f.mu.Lock(); f.pid = pid; f.mu.Unlock() }

// SetComm pre-seeds the name Fake will resolve pid to on the next
// TraceCmdlinePush.
func (f *Fake) SetComm(pid int32, comm string) {
	f.mu.Lock()
	f.names[pid] = comm
	f.mu.Unlock()
}

func (f *Fake) TimeNow() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) CPUID() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cpu
}

func (f *Fake) CurrentPID() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pid
}

// TracePipePushRawRecord records rec/cpu/timeNS for later inspection via
// Pushed, instead of writing into a real pipe.Raw.
func (f *Fake) TracePipePushRawRecord(rec []byte, cpu uint32, timeNS uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(rec))
	copy(cp, rec)
	f.pushed = append(f.pushed, PushedRecord{Bytes: cp, CPU: cpu, TimeNS: timeNS})
}

// Pushed returns every record previously passed to TracePipePushRawRecord.
func (f *Fake) Pushed() []PushedRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PushedRecord, len(f.pushed))
	copy(out, f.pushed)
	return out
}

// cmdlinePusher lets a test observe TraceCmdlinePush without wiring a
// real pipe.CmdlineCache; most tests instead construct Fake via
// NewFakeWithCache to exercise the real cache.
type cmdlinePusher interface {
	Push(pid int32, comm string)
}

// NewFakeWithCache wires TraceCmdlinePush to push resolved names into
// cache, matching Real's behavior but reading from the in-memory names
// map instead of the OS.
func NewFakeWithCache(cache cmdlinePusher) *Fake {
	f := NewFake()
	f.cache = cache
	return f
}

func (f *Fake) TraceCmdlinePush(pid int32) {
	f.mu.Lock()
	name, ok := f.names[pid]
	cache := f.cache
	f.mu.Unlock()
	if !ok || cache == nil {
		return
	}
	cache.Push(pid, name)
}

// WriteKernelText records the write for inspection and always succeeds,
// unless SetPatchFailure has armed a failure.
func (f *Fake) WriteKernelText(addr uintptr, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextPatch {
		f.failNextPatch = false
		return errFakePatchFailure
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.patches = append(f.patches, cp)
	return nil
}

// SetPatchFailure arms the next WriteKernelText call to fail, for testing
// a Branch implementation's PatchFailure handling.
func (f *Fake) SetPatchFailure() {
	f.mu.Lock()
	f.failNextPatch = true
	f.mu.Unlock()
}

// Patches returns every byte slice previously passed to WriteKernelText.
func (f *Fake) Patches() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.patches))
	copy(out, f.patches)
	return out
}
