// Package xdr provides the small set of RFC 4506 primitives the NFSv4
// COMPOUND codec needs on top of github.com/rasky/go-xdr.
//
// The rasky package handles struct-shaped arguments through reflection.
// The helpers here cover the hand-rolled parts of the protocol: bounded
// variable-length items, discriminated unions, bitmaps and the append-style
// writers used by result encoders.
//
// All multi-byte integers are big-endian and every item is padded to a
// 4-byte boundary.
package xdr

import "errors"

// ErrTooLong is returned when a length prefix exceeds the caller's limit.
var ErrTooLong = errors.New("xdr: length exceeds limit")

// Pad returns the number of zero bytes that follow n bytes of opaque data.
func Pad(n uint32) uint32 {
	return (4 - n%4) % 4
}
