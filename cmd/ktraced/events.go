package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tripwire/ktracepoint"
)

// testSchema is the two-u32-field payload (a, b) used by the demo TEST
// tracepoint: enough to exercise the filter engine and the renderer
// end to end without any domain-specific payload of its own.
var testSchema = ktracepoint.NewSchema([]ktracepoint.Field{
	{Name: "a", Kind: ktracepoint.KindScalar, Signed: false, Width: 4, Len: 1},
	{Name: "b", Kind: ktracepoint.KindScalar, Signed: false, Width: 4, Len: 1},
})

const testPrintFmtText = "field:u32 a; offset:8; size:4; signed:0;\nfield:u32 b; offset:12; size:4; signed:0;\n"

func testPrintFmt(payload []byte) string {
	if len(payload) < 8 {
		return ""
	}
	a := uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24
	b := uint32(payload[4]) | uint32(payload[5])<<8 | uint32(payload[6])<<16 | uint32(payload[7])<<24
	return fmt.Sprintf("a=%d b=%d", a, b)
}

// demoTestTracePoint is the single example tracepoint this daemon ships
// with out of the box: subsystem "demo", event "test".
var demoTestTracePoint = ktracepoint.Define("demo", "test", testSchema, ktracepoint.NewAtomicBranch(), testPrintFmt, testPrintFmtText)

// traceTest is the hand-written entry-point function a real call site
// would invoke — the Go analog of a declared trace_TEST(a, b) macro
// expansion. It is cheap to call even while disabled: Fire's first check
// is an unlocked atomic load.
func traceTest(ops ktracepoint.KernelTraceOps, a, b uint32) {
	demoTestTracePoint.Fire(ops, func(entry *ktracepoint.TraceEntry) {
		entry.Payload = []byte{
			byte(a), byte(a >> 8), byte(a >> 16), byte(a >> 24),
			byte(b), byte(b >> 8), byte(b >> 16), byte(b >> 24),
		}
	}, []uint64{ktracepoint.AsU64(a), ktracepoint.AsU64(b)})
}

// runDemoEmitter calls trace_TEST on an interval so a freshly started
// daemon has something flowing through /trace before any real call site
// exists. It stops as soon as ctx is canceled.
func runDemoEmitter(ctx context.Context, ops ktracepoint.KernelTraceOps, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var n uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			traceTest(ops, n, n*2)
			logger.Debug("demo emitter fired trace_TEST", slog.Uint64("n", uint64(n)))
		}
	}
}
