package ktracepoint

import "testing"

func TestAsU64Widening(t *testing.T) {
	if got := AsU64(uint32(42)); got != 42 {
		t.Fatalf("AsU64(uint32(42)) = %d, want 42", got)
	}
	if got := AsU64(int8(-1)); got != 0xFFFFFFFFFFFFFFFF {
		t.Fatalf("AsU64(int8(-1)) = %#x, want all-ones (sign-extended)", got)
	}
}

func TestBoolAsU64(t *testing.T) {
	if BoolAsU64(true) != 1 {
		t.Fatal("BoolAsU64(true) should be 1")
	}
	if BoolAsU64(false) != 0 {
		t.Fatal("BoolAsU64(false) should be 0")
	}
}

func TestBytesAsU64(t *testing.T) {
	got := BytesAsU64([]byte{1, 0, 0, 0, 0, 0, 0, 0})
	if got != 1 {
		t.Fatalf("BytesAsU64 = %d, want 1", got)
	}
	// Shorter than 8 bytes zero-pads on the right.
	if got := BytesAsU64([]byte{0xFF}); got != 0xFF {
		t.Fatalf("BytesAsU64 short = %#x, want 0xFF", got)
	}
}
