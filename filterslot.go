package ktracepoint

// Filter is an opaque, clonable, thread-safe object carrying a closure
// that, given a byte slice matching the schema, returns bool. Package
// filter's CompiledExpr implements this interface; it lives in its own
// package to keep the lexer/parser/compiler out of the core, the same way
// the schema stays free of reflection.
type Filter interface {
	// Eval receives the full encoded record (header+payload, matching the
	// schema's offsets) and reports whether it passes the filter.
	Eval(record []byte) bool
}
