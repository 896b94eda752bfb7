// Package svarint encodes SQLite variable-length integers.
//
// Unlike protobuf varints these are big-endian, and the ninth byte,
// when present, carries a full eight bits.
package svarint

import (
	"golang.org/x/exp/constraints"
)

// MaxLen is the longest encoding of any 64-bit value.
const MaxLen = 9

// Length returns the number of bytes Put writes for x.
func Length[T constraints.Integer](x T) int {
	v := uint64(x)
	if v>>56 != 0 {
		return MaxLen
	}
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// Put encodes x into buf, which must have room for Length(x) bytes,
// and returns the number of bytes written.
func Put[T constraints.Integer](buf []byte, x T) int {
	v := uint64(x)
	if v>>56 != 0 {
		buf[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			buf[i] = byte(v) | 0x80
			v >>= 7
		}
		return MaxLen
	}

	n := Length(v)
	buf[n-1] = byte(v) &^ 0x80
	for i := n - 2; i >= 0; i-- {
		v >>= 7
		buf[i] = byte(v) | 0x80
	}
	return n
}

// Append appends the encoding of x to buf.
func Append[T constraints.Integer](buf []byte, x T) []byte {
	var tmp [MaxLen]byte
	n := Put(tmp[:], x)
	return append(buf, tmp[:n]...)
}
