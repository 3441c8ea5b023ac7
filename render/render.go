// Package render decodes pipe records into the canonical ftrace-style
// trace line.
package render

import (
	"fmt"

	"github.com/tripwire/ktracepoint"
	"github.com/tripwire/ktracepoint/pipe"
)

// Lookup resolves a tracepoint ID to the TracePoint that emitted it. A
// *registry.Manager satisfies this via its own accessor methods; it is
// expressed as an interface here so this package does not need to import
// registry (which itself imports ktracepoint, not render).
type Lookup interface {
	TracePointByID(id uint32) (*ktracepoint.TracePoint, bool)
}

// Line renders one pipe record as:
//
//	<comm>-<pid> [CPU] <flags> <time>: <tp_name>: <fmt_thunk(payload)>
//
// cmdline resolves the pid->comm mapping, falling back to "<...>" for an
// unknown pid. cpu and timestampNS describe the record's
// capture context; since the encoded record bytes do not carry them (the
// 8-byte header has no cpu/time slot), callers that want them in the
// rendered line supply them out of band — the raw pipe push site is the
// natural place to stash them alongside the record.
func Line(raw []byte, lookup Lookup, cmdline *pipe.CmdlineCache, cpu uint32, timestampNS uint64) (string, error) {
	entry, err := ktracepoint.DecodeTraceEntry(raw)
	if err != nil {
		return "", err
	}
	tp, ok := lookup.TracePointByID(uint32(entry.CommonType))
	if !ok {
		return "", fmt.Errorf("render: no tracepoint registered for id %d", entry.CommonType)
	}

	comm, ok := cmdline.Lookup(entry.CommonPID)
	if !ok {
		comm = "<...>"
	}

	body := tp.PrintFmt(entry.Payload)
	return fmt.Sprintf("%s-%d [%03d] %s %d.%09d: %s: %s",
		comm, entry.CommonPID, cpu, entry.LatencyFormat(),
		timestampNS/1e9, timestampNS%1e9, tp.Name(), body), nil
}
