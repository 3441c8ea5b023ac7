package filter

import (
	"encoding/binary"
	"testing"

	"github.com/tripwire/ktracepoint"
)

func testSchema() *ktracepoint.Schema {
	return ktracepoint.NewSchema([]ktracepoint.Field{
		{Name: "a", Kind: ktracepoint.KindScalar, Signed: false, Width: 4, Len: 1},
		{Name: "b", Kind: ktracepoint.KindScalar, Signed: false, Width: 4, Len: 1},
	})
}

func record(a, b uint32) []byte {
	rec := make([]byte, 16)
	binary.LittleEndian.PutUint32(rec[8:12], a)
	binary.LittleEndian.PutUint32(rec[12:16], b)
	return rec
}

// TestFilterAcceptsRejects checks a compound expression mixing && and ||
// against a run of records, keeping only those that should pass.
func TestFilterAcceptsRejects(t *testing.T) {
	schema := testSchema()
	f, err := Compile("(a > 8 && a <= 10) || b > 5", schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	type pair struct{ a, b uint32 }
	inputs := []pair{{1, 2}, {9, 2}, {3, 4}, {10, 4}, {11, 6}}
	var passed []pair
	for _, in := range inputs {
		if f.Eval(record(in.a, in.b)) {
			passed = append(passed, in)
		}
	}

	want := []pair{{9, 2}, {10, 4}, {11, 6}}
	if len(passed) != len(want) {
		t.Fatalf("passed = %v, want %v", passed, want)
	}
	for i, p := range passed {
		if p != want[i] {
			t.Fatalf("passed[%d] = %v, want %v", i, p, want[i])
		}
	}
}

func TestCompileUnknownField(t *testing.T) {
	schema := testSchema()
	_, err := Compile("c > 1", schema)
	if err == nil {
		t.Fatal("expected unknown_field error")
	}
}

func TestCompileLexError(t *testing.T) {
	schema := testSchema()
	_, err := Compile("a @ 1", schema)
	if err == nil {
		t.Fatal("expected lex error for '@'")
	}
}

func TestCompileParseError(t *testing.T) {
	schema := testSchema()
	_, err := Compile("a >", schema)
	if err == nil {
		t.Fatal("expected parse error for dangling operator")
	}
}

func TestBareIdentIsNonzeroCheck(t *testing.T) {
	schema := testSchema()
	f, err := Compile("a", schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if f.Eval(record(0, 5)) {
		t.Fatal("a=0 should fail the bare-identifier nonzero check")
	}
	if !f.Eval(record(1, 5)) {
		t.Fatal("a=1 should pass the bare-identifier nonzero check")
	}
}

func TestArrayFieldOnlySupportsEquality(t *testing.T) {
	schema := ktracepoint.NewSchema([]ktracepoint.Field{
		{Name: "pad", Kind: ktracepoint.KindArray, Width: 1, Len: 4},
	})
	if _, err := Compile("pad > 1", schema); err == nil {
		t.Fatal("expected type_mismatch for '>' on an array field")
	}
	if _, err := Compile("pad == 0", schema); err != nil {
		t.Fatalf("expected equality against a literal to compile, got %v", err)
	}
}

func TestSignedComparison(t *testing.T) {
	schema := ktracepoint.NewSchema([]ktracepoint.Field{
		{Name: "s", Kind: ktracepoint.KindScalar, Signed: true, Width: 4, Len: 1},
	})
	f, err := Compile("s < 0", schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	rec := make([]byte, 12)
	binary.LittleEndian.PutUint32(rec[8:12], 0xFFFFFFFF) // int32(-1)
	if !f.Eval(rec) {
		t.Fatal("expected s=-1 < 0 to be true under signed comparison")
	}
}

func TestFilterSourceRoundTrip(t *testing.T) {
	schema := testSchema()
	f, err := Compile("a == 1", schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ce := f.(*CompiledExpr)
	if ce.Source() != "a == 1" {
		t.Fatalf("Source() = %q, want %q", ce.Source(), "a == 1")
	}
}
