package filter

import (
	"fmt"

	"github.com/tripwire/ktracepoint"
)

// valueKind distinguishes a primary's provenance during type-checking: an
// integer literal imposes no type of its own, while an identifier carries
// its schema field's kind/signedness/width.
type valueKind int

const (
	valInt valueKind = iota
	valField
)

// value is the compile-time type of a primary expression.
type value struct {
	kind  valueKind
	field ktracepoint.Field // valid when kind == valField
}

// valueGetter extracts a primary's u64 value from a record at eval time.
type valueGetter func(record []byte) uint64

// boolEval evaluates a boolean node against a record.
type boolEval func(record []byte) bool

// compileNode type-checks and lowers node, returning a boolEval.
func compileNode(n Node, schema *ktracepoint.Schema) (boolEval, error) {
	switch v := n.(type) {
	case *OrNode:
		evals := make([]boolEval, len(v.Operands))
		for i, op := range v.Operands {
			e, err := compileNode(op, schema)
			if err != nil {
				return nil, err
			}
			evals[i] = e
		}
		return func(record []byte) bool {
			for _, e := range evals {
				if e(record) {
					return true
				}
			}
			return false
		}, nil

	case *AndNode:
		evals := make([]boolEval, len(v.Operands))
		for i, op := range v.Operands {
			e, err := compileNode(op, schema)
			if err != nil {
				return nil, err
			}
			evals[i] = e
		}
		return func(record []byte) bool {
			for _, e := range evals {
				if !e(record) {
					return false
				}
			}
			return true
		}, nil

	case *NotNode:
		e, err := compileNode(v.Operand, schema)
		if err != nil {
			return nil, err
		}
		return func(record []byte) bool { return !e(record) }, nil

	case *CmpNode:
		return compileCmp(v, schema)

	default:
		return nil, &ktracepoint.FilterError{Reason: fmt.Sprintf("unknown AST node %T", n)}
	}
}

// compileCmp handles both `primary op primary` and the bare-primary
// "nonzero" form the grammar allows (cmp := primary (op primary)?).
func compileCmp(c *CmpNode, schema *ktracepoint.Schema) (boolEval, error) {
	leftVal, leftGet, err := compilePrimary(c.Left, schema)
	if err != nil {
		return nil, err
	}

	if !c.HasOp {
		if leftVal.kind == valField && (leftVal.field.Kind == ktracepoint.KindArray || leftVal.field.Kind == ktracepoint.KindPointer) {
			return nil, &ktracepoint.FilterError{Reason: fmt.Sprintf("type_mismatch: field %q is not comparable bare (array/pointer fields require an explicit equality comparison)", leftVal.field.Name)}
		}
		return func(record []byte) bool { return leftGet(record) != 0 }, nil
	}

	rightVal, rightGet, err := compilePrimary(c.Right, schema)
	if err != nil {
		return nil, err
	}

	arrayOrPointer := (leftVal.kind == valField && (leftVal.field.Kind == ktracepoint.KindArray || leftVal.field.Kind == ktracepoint.KindPointer)) ||
		(rightVal.kind == valField && (rightVal.field.Kind == ktracepoint.KindArray || rightVal.field.Kind == ktracepoint.KindPointer))

	if arrayOrPointer {
		// Array/pointer fields are not comparable except for equality to
		// integer literals, interpreted as raw leading bytes.
		if c.Op != tokEQ && c.Op != tokNE {
			return nil, &ktracepoint.FilterError{Reason: "type_mismatch: array/pointer fields only support == and !="}
		}
		fieldIsLeft := leftVal.kind == valField
		var other valueKind
		if fieldIsLeft {
			other = rightVal.kind
		} else {
			other = leftVal.kind
		}
		if other != valInt {
			return nil, &ktracepoint.FilterError{Reason: "type_mismatch: array/pointer fields are only comparable to an integer literal"}
		}
	}

	signed := false
	if leftVal.kind == valField {
		signed = leftVal.field.Signed
	} else if rightVal.kind == valField {
		signed = rightVal.field.Signed
	}

	op := c.Op
	return func(record []byte) bool {
		l := leftGet(record)
		r := rightGet(record)
		return evalCompare(op, l, r, signed)
	}, nil
}

func evalCompare(op tokKind, l, r uint64, signed bool) bool {
	if signed {
		li, ri := int64(l), int64(r)
		switch op {
		case tokEQ:
			return li == ri
		case tokNE:
			return li != ri
		case tokLT:
			return li < ri
		case tokLE:
			return li <= ri
		case tokGT:
			return li > ri
		case tokGE:
			return li >= ri
		}
	}
	switch op {
	case tokEQ:
		return l == r
	case tokNE:
		return l != r
	case tokLT:
		return l < r
	case tokLE:
		return l <= r
	case tokGT:
		return l > r
	case tokGE:
		return l >= r
	}
	return false
}

// compilePrimary resolves an identifier against schema or lowers a literal,
// returning both the compile-time value (for type-checking) and the
// runtime getter.
func compilePrimary(n Node, schema *ktracepoint.Schema) (value, valueGetter, error) {
	switch v := n.(type) {
	case *IdentNode:
		field, ok := schema.Field(v.Name)
		if !ok {
			return value{}, nil, &ktracepoint.FilterError{Reason: fmt.Sprintf("unknown_field: %q", v.Name)}
		}
		f := field
		return value{kind: valField, field: f}, func(record []byte) uint64 {
			return loadField(record, f)
		}, nil

	case *IntNode:
		val := v.Value
		return value{kind: valInt}, func(record []byte) uint64 { return val }, nil

	case *NotNode:
		return value{}, nil, &ktracepoint.FilterError{Reason: "type_mismatch: '!' may only prefix a boolean sub-expression, not a comparison operand"}

	default:
		return value{}, nil, &ktracepoint.FilterError{Reason: fmt.Sprintf("type_mismatch: %T cannot appear as a comparison operand", n)}
	}
}

// loadField reads field's bytes out of record and widens them to u64.
// Array/pointer fields widen via their leading bytes (see AsU64's doc
// comment on how this implementation's record-by-value layout differs
// from pointer-widening host languages); scalar fields widen directly,
// sign-extending through their declared width when signed.
func loadField(record []byte, f ktracepoint.Field) uint64 {
	end := int(f.Offset) + int(f.Size)
	if end > len(record) {
		return 0
	}
	raw := record[f.Offset:end]

	if f.Kind == ktracepoint.KindArray || f.Kind == ktracepoint.KindPointer {
		return ktracepoint.BytesAsU64(raw)
	}

	var v uint64
	for i := len(raw) - 1; i >= 0; i-- {
		v = v<<8 | uint64(raw[i])
	}
	if f.Signed {
		switch f.Width {
		case 1:
			return uint64(int64(int8(v)))
		case 2:
			return uint64(int64(int16(v)))
		case 4:
			return uint64(int64(int32(v)))
		}
	}
	return v
}
