// Package hostops provides concrete ktracepoint.KernelTraceOps
// implementations: Real, backed by OS introspection, and Fake, a
// deterministic double for tests and examples.
package hostops

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/tripwire/ktracepoint/pipe"
)

// Real is the production KernelTraceOps: wall-clock time, a round-robin
// CPU-slot counter (see platformComm for the real per-pid resolution
// split), the caller's own PID, raw-pipe pushes backed by a shared
// pipe.Raw, and cmdline-cache pushes backed by a shared pipe.CmdlineCache.
type Real struct {
	cache     *pipe.CmdlineCache
	tracePipe *pipe.Raw
	cpuSlot   atomic.Uint32
	numCPU    uint32
}

// NewReal returns a Real bound to cache and tracePipe, both of which must
// outlive every TracePoint wired to this Real (the renderer reads from the
// same cache, and TracePipePushRawRecord writes into the same pipe).
func NewReal(cache *pipe.CmdlineCache, tracePipe *pipe.Raw, numCPU int) *Real {
	if numCPU < 1 {
		numCPU = 1
	}
	return &Real{cache: cache, tracePipe: tracePipe, numCPU: uint32(numCPU)}
}

// TimeNow returns wall-clock time in nanoseconds.
func (r *Real) TimeNow() uint64 { return uint64(time.Now().UnixNano()) }

// CPUID has no portable, allocation-free "which CPU am I on" syscall
// exposed by the Go runtime; this rotates through [0, numCPU) so the
// rendered field is plausible without pretending to be exact. cpu_id is
// purely an observability field, never load-bearing logic.
func (r *Real) CPUID() uint32 {
	return r.cpuSlot.Add(1) % r.numCPU
}

// CurrentPID returns the calling process's PID.
func (r *Real) CurrentPID() uint32 { return uint32(os.Getpid()) }

// TracePipePushRawRecord pushes rec into the bound raw trace pipe, stamped
// with cpu/timeNS.
func (r *Real) TracePipePushRawRecord(rec []byte, cpu uint32, timeNS uint64) {
	r.tracePipe.PushEvent(rec, cpu, timeNS)
}

// TraceCmdlinePush resolves pid's process name via platformComm and
// pushes it into the bound cmdline cache.
func (r *Real) TraceCmdlinePush(pid int32) {
	name, err := platformComm(pid)
	if err != nil || name == "" {
		return
	}
	r.cache.Push(pid, name)
}

// WriteKernelText is only meaningful for a Branch backed by real code
// patching (see package codepatch); Real itself does not perform process
// text patches, so this always fails closed rather than silently no-op.
func (r *Real) WriteKernelText(addr uintptr, data []byte) error {
	return errWriteKernelTextUnsupported
}
