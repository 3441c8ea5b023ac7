package ktracepoint

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// FieldKind tags the three shapes a field's union can take:
// Scalar{signed,width} | Array{elem,len} | Pointer.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindArray
	KindPointer
)

// Field describes one slot in a schema, either part of the fixed common
// header or part of an event's user-authored payload.
type Field struct {
	Name   string
	Kind   FieldKind
	Signed bool // meaningful for KindScalar
	Width  int  // bytes per scalar, or bytes per array element
	Len    int  // element count for KindArray; 1 otherwise
	Offset uint16
	Size   uint16
}

// commonHeaderFields is the fixed 8-byte TraceEntry header every schema
// begins with: common_type, common_flags, common_preempt_count, common_pid.
func commonHeaderFields() []Field {
	return []Field{
		{Name: "common_type", Kind: KindScalar, Signed: false, Width: 2, Len: 1, Offset: 0, Size: 2},
		{Name: "common_flags", Kind: KindScalar, Signed: false, Width: 1, Len: 1, Offset: 2, Size: 1},
		{Name: "common_preempt_count", Kind: KindScalar, Signed: false, Width: 1, Len: 1, Offset: 3, Size: 1},
		{Name: "common_pid", Kind: KindScalar, Signed: true, Width: 4, Len: 1, Offset: 4, Size: 4},
	}
}

// HeaderSize is the fixed size, in bytes, of every TraceEntry header.
const HeaderSize = 8

// Schema is the ordered, typed field layout of an event's record — the
// compile-time description that makes the pipe and the filter engine
// possible without any reflection at evaluation time.
type Schema struct {
	fields     []Field
	recordSize int
}

// NewSchema lays out payloadFields immediately after the fixed common
// header, computing offsets and the total record size. Callers supply
// Width/Len/Kind/Signed/Name for each payload field; Offset/Size are
// overwritten by NewSchema.
func NewSchema(payloadFields []Field) *Schema {
	fields := commonHeaderFields()
	offset := uint16(HeaderSize)
	for _, f := range payloadFields {
		size := uint16(f.Width * maxInt(f.Len, 1))
		f.Offset = offset
		f.Size = size
		fields = append(fields, f)
		offset += size
	}
	return &Schema{fields: fields, recordSize: int(offset)}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Fields returns the ordered field list, header fields included.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name, searching header and payload fields.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RecordSize is the total byte length of header+payload for this schema.
func (s *Schema) RecordSize() int {
	return s.recordSize
}

// FormatText emits the ftrace-compatible format block: one line per
// field, "field:<type> <name>; offset:<u>; size:<u>; signed:<0|1>;".
func (s *Schema) FormatText() string {
	var b strings.Builder
	for _, f := range s.fields {
		fmt.Fprintf(&b, "field:%s %s; offset:%d; size:%d; signed:%d;\n",
			typeName(f), f.Name, f.Offset, f.Size, boolToBit(f.Signed))
	}
	return b.String()
}

func typeName(f Field) string {
	switch f.Kind {
	case KindArray:
		return fmt.Sprintf("%s%d[%d]", signPrefix(f.Signed), f.Width*8, f.Len)
	case KindPointer:
		return "ptr"
	default:
		return fmt.Sprintf("%s%d", signPrefix(f.Signed), f.Width*8)
	}
}

func signPrefix(signed bool) string {
	if signed {
		return "s"
	}
	return "u"
}

func boolToBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// TraceEntry is the record header plus payload: the first 8 bytes are
// always common_type/common_flags/common_preempt_count/common_pid,
// followed immediately by the event's typed payload.
//
// CommonTime and CommonCPU are out-of-band: Fire stamps them with the
// host's capture-time values, but Encode/DecodeTraceEntry never put them
// on the wire (the on-disk/on-pipe record format is unchanged). They
// exist so a fired record's default callback can hand its exact capture
// context to whatever sink it pushes into, instead of that sink
// re-querying the clock/CPU later and getting a different answer.
type TraceEntry struct {
	CommonType         uint16
	CommonFlags        uint8
	CommonPreemptCount uint8
	CommonPID          int32
	CommonTime         uint64
	CommonCPU          uint32
	Payload            []byte
}

// Encode packs the header and payload into a single contiguous record
// suitable for pushing into the raw trace pipe.
func (e *TraceEntry) Encode() []byte {
	out := make([]byte, HeaderSize+len(e.Payload))
	binary.LittleEndian.PutUint16(out[0:2], e.CommonType)
	out[2] = e.CommonFlags
	out[3] = e.CommonPreemptCount
	binary.LittleEndian.PutUint32(out[4:8], uint32(e.CommonPID))
	copy(out[HeaderSize:], e.Payload)
	return out
}

// DecodeTraceEntry reverses Encode, validating that raw is at least
// HeaderSize bytes long: the first 8 bytes of any pipe record must be a
// valid TraceEntry header.
func DecodeTraceEntry(raw []byte) (*TraceEntry, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("ktracepoint: record too short to contain a TraceEntry header: %d bytes", len(raw))
	}
	return &TraceEntry{
		CommonType:         binary.LittleEndian.Uint16(raw[0:2]),
		CommonFlags:        raw[2],
		CommonPreemptCount: raw[3],
		CommonPID:          int32(binary.LittleEndian.Uint32(raw[4:8])),
		Payload:            raw[HeaderSize:],
	}, nil
}

// LatencyFormat renders the 5-character ftrace latency/preemption field
// shown between the timestamp and the event body in real trace_pipe
// output: irqs-off, need-resched, hard/softirq, and the preempt_count
// nibble (see DESIGN.md). This core does not track
// IRQ/softirq/resched state, so only the preempt_count-derived characters
// vary; the rest render as the ftrace "unknown" placeholder.
func (e *TraceEntry) LatencyFormat() string {
	var preempt byte
	switch {
	case e.CommonPreemptCount == 0:
		preempt = '.'
	case e.CommonPreemptCount < 10:
		preempt = '0' + e.CommonPreemptCount
	default:
		preempt = '*'
	}
	return fmt.Sprintf("....%c", preempt)
}
