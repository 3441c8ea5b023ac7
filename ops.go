package ktracepoint

// KernelTraceOps is the host-provided collaborator every emission path
// goes through: the time/PID/CPU source, the raw-pipe push hook, the
// cmdline-cache push hook, and the code-write backend. The core only ever
// calls through this interface — it never reads the clock, the process
// table, or memory protection state directly. Two implementations live in
// package hostops: Real (OS-backed) and Fake (deterministic, for tests and
// examples).
type KernelTraceOps interface {
	// TimeNow returns the current time in nanoseconds.
	TimeNow() uint64
	// CPUID returns the ID of the CPU the caller is currently running on.
	CPUID() uint32
	// CurrentPID returns the calling process/thread's ID.
	CurrentPID() uint32
	// TracePipePushRawRecord pushes an already-encoded TraceEntry record
	// into the host's raw trace pipe, stamped with the cpu/time captured
	// at fire time. Called automatically for every registered tracepoint;
	// see registry.Manager.Init.
	TracePipePushRawRecord(rec []byte, cpu uint32, timeNS uint64)
	// TraceCmdlinePush resolves pid's process name and pushes the pair
	// into the host's TraceCmdLineCache.
	TraceCmdlinePush(pid int32)
	// WriteKernelText overwrites the bytes at addr with data. Used only by
	// a Branch implementation that performs real code patching; the
	// default AtomicBranch never calls it.
	WriteKernelText(addr uintptr, data []byte) error
}
