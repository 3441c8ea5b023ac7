package filter

import "github.com/tripwire/ktracepoint"

// CompiledExpr is an opaque, clonable, thread-safe predicate: a closure
// tree over a record's byte buffer, plus the source expression it was
// compiled from (so the registry's filter pseudo-file can echo it back
// on read).
type CompiledExpr struct {
	src  string
	eval boolEval
}

// Eval reports whether record passes the compiled expression. It implements
// ktracepoint.Filter.
func (c *CompiledExpr) Eval(record []byte) bool {
	return c.eval(record)
}

// Source returns the expression text this filter was compiled from.
func (c *CompiledExpr) Source() string {
	return c.src
}

// Compile lexes, parses, type-checks, and lowers expr against schema,
// returning a ktracepoint.Filter or a descriptive *ktracepoint.FilterError.
// It has the registry.FilterCompiler signature so it can be handed
// directly to registry.NewManager.
func Compile(expr string, schema *ktracepoint.Schema) (ktracepoint.Filter, error) {
	ast, err := parse(expr)
	if err != nil {
		return nil, &ktracepoint.FilterError{Expr: expr, Reason: err.Error()}
	}
	eval, err := compileNode(ast, schema)
	if err != nil {
		if fe, ok := err.(*ktracepoint.FilterError); ok {
			fe.Expr = expr
			return nil, fe
		}
		return nil, &ktracepoint.FilterError{Expr: expr, Reason: err.Error()}
	}
	return &CompiledExpr{src: expr, eval: eval}, nil
}
