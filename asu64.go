package ktracepoint

import "encoding/binary"

// AsU64 widens an integer value into the u64 representation used
// internally for record storage and filter-literal comparison; signed
// kinds are sign-extended. Bools go through BoolAsU64. Byte slices (the
// representation used for array-typed fields, see KindArray) go through
// BytesAsU64, which widens to the little-endian value of their leading 8
// bytes, zero-padded if shorter — records store field values inline
// rather than pointers to them, so there is no address to widen the way
// the original host language's AsU64 widens raw pointers/slices.
func AsU64[T Integer](v T) uint64 {
	return uint64(v)
}

// Integer is the set of Go kinds AsU64 accepts directly.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// BoolAsU64 widens a bool the way the reference implementation's AsU64 impl
// for bool does: false -> 0, true -> 1.
func BoolAsU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// BytesAsU64 widens the leading bytes of a byte slice to a little-endian
// u64, zero-padding on the right if b is shorter than 8 bytes and
// truncating any bytes beyond the first 8.
func BytesAsU64(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}
