package xdr

import (
	"bytes"
	"encoding/binary"
)

var zeroPad [3]byte

// WriteUint32 appends a big-endian unsigned 32-bit integer.
func WriteUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// WriteUint64 appends a big-endian unsigned hyper.
func WriteUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// WriteBool appends an XDR boolean.
func WriteBool(buf *bytes.Buffer, v bool) {
	if v {
		WriteUint32(buf, 1)
		return
	}
	WriteUint32(buf, 0)
}

// WriteOpaque appends length-prefixed opaque data with padding.
func WriteOpaque(buf *bytes.Buffer, data []byte) {
	WriteUint32(buf, uint32(len(data)))
	WriteFixedOpaque(buf, data)
}

// WriteString appends an XDR string.
func WriteString(buf *bytes.Buffer, s string) {
	WriteUint32(buf, uint32(len(s)))
	buf.WriteString(s)
	buf.Write(zeroPad[:Pad(uint32(len(s)))])
}

// WriteFixedOpaque appends data without a length prefix, padded to 4 bytes.
func WriteFixedOpaque(buf *bytes.Buffer, data []byte) {
	buf.Write(data)
	buf.Write(zeroPad[:Pad(uint32(len(data)))])
}

// WriteBitmap appends a bitmap4.
func WriteBitmap(buf *bytes.Buffer, words []uint32) {
	WriteUint32(buf, uint32(len(words)))
	for _, w := range words {
		WriteUint32(buf, w)
	}
}

// WriteDiscriminant appends the uint32 arm selector of a discriminated union.
func WriteDiscriminant(buf *bytes.Buffer, arm uint32) {
	WriteUint32(buf, arm)
}
