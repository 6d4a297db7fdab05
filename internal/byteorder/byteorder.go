// Package byteorder centralizes the single endian-swap decision point spec.md
// §9 calls for: "Byte-swap decisions must be driven by a single helper that
// compares requested endianness to the host's native endianness; the code
// must never embed #if BIG_ENDIAN checks at call sites."
package byteorder

import (
	"encoding/binary"
	"unsafe"
)

// Native reports whether the host's native byte order is big-endian.
func Native() bool {
	var x uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&x))
	return b[0] == 0
}

// nativeBigEndian is computed once and consulted by ShouldSwap.
var nativeBigEndian = Native()

// ToUint64 interprets buf (1-8 bytes) as an unsigned integer read with the
// requested endianness; the result does not depend on the host's byte order.
func ToUint64(buf []byte, wantBig bool) uint64 {
	var tmp [8]byte
	n := len(buf)
	if n > 8 {
		n = 8
	}
	if wantBig {
		copy(tmp[8-n:], buf[:n])
		return binary.BigEndian.Uint64(tmp[:])
	}
	copy(tmp[:n], buf[:n])
	return binary.LittleEndian.Uint64(tmp[:])
}

// FromUint64 writes the low n bytes of v into buf using the requested
// endianness.
func FromUint64(v uint64, n int, wantBig bool) []byte {
	var tmp [8]byte
	if wantBig {
		binary.BigEndian.PutUint64(tmp[:], v)
		return append([]byte(nil), tmp[8-n:]...)
	}
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append([]byte(nil), tmp[:n]...)
}

// ShouldSwap reports whether bytes read in wantBig order need swapping to be
// interpreted by the host's native multi-byte integer operations. Kept as a
// named predicate so call sites never inline an #if-style check.
func ShouldSwap(wantBig bool) bool {
	return wantBig != nativeBigEndian
}
