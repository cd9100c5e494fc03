// Package binutil decodes the fixed-width and variable-length integers used by
// the Go runtime tables.
package binutil

import (
	"encoding/binary"

	"github.com/dennwc/varint"
)

// Uint32 returns the uint32 at the start of b, or false if b is too short.
func Uint32(b []byte, order binary.ByteOrder) (uint32, bool) {
	if len(b) < 4 {
		return 0, false
	}
	return order.Uint32(b), true
}

// Uint64 returns the uint64 at the start of b, or false if b is too short.
func Uint64(b []byte, order binary.ByteOrder) (uint64, bool) {
	if len(b) < 8 {
		return 0, false
	}
	return order.Uint64(b), true
}

// Uint reads a 4 or 8 byte unsigned integer. Any other size is rejected.
func Uint(b []byte, size int, order binary.ByteOrder) (uint64, bool) {
	switch size {
	case 4:
		v, ok := Uint32(b, order)
		return uint64(v), ok
	case 8:
		return Uint64(b, order)
	}
	return 0, false
}

// Uvarint decodes an unsigned LEB128 varint.
// n is the number of bytes consumed; n <= 0 means b was truncated (0) or the
// value overflows 64 bits (< 0).
func Uvarint(b []byte) (v uint64, n int) {
	return varint.Uvarint(b)
}

// Varint decodes a zigzag encoded signed varint with the same n convention
// as Uvarint.
func Varint(b []byte) (int64, int) {
	u, n := varint.Uvarint(b)
	if n <= 0 {
		return 0, n
	}
	return Zigzag(u), n
}

// Zigzag maps 0, 1, 2, 3, 4 ... to 0, -1, 1, -2, 2 ...
func Zigzag(u uint64) int64 {
	v := int64(u >> 1)
	if u&1 != 0 {
		v = ^v
	}
	return v
}

// CString returns the bytes of b up to the first NUL. ok is false when b has
// no terminator.
func CString(b []byte) (s []byte, ok bool) {
	for i, c := range b {
		if c == 0 {
			return b[:i], true
		}
	}
	return nil, false
}
