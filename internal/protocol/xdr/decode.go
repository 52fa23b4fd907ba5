package xdr

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DecodeUint32 reads a big-endian unsigned 32-bit integer.
func DecodeUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read uint32: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// DecodeUint64 reads a big-endian unsigned hyper.
func DecodeUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read uint64: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// DecodeBool reads an XDR boolean. Any non-zero value is true.
func DecodeBool(r io.Reader) (bool, error) {
	v, err := DecodeUint32(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// DecodeOpaque reads variable-length opaque data of at most limit bytes and
// consumes the trailing padding.
func DecodeOpaque(r io.Reader, limit uint32) ([]byte, error) {
	n, err := DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read opaque length: %w", err)
	}
	if n > limit {
		return nil, fmt.Errorf("opaque of %d bytes: %w", n, ErrTooLong)
	}

	data := make([]byte, n+Pad(n))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read opaque data: %w", err)
	}
	return data[:n:n], nil
}

// DecodeString reads an XDR string of at most limit bytes.
func DecodeString(r io.Reader, limit uint32) (string, error) {
	data, err := DecodeOpaque(r, limit)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeFixedOpaque fills dst and consumes the padding that follows it.
func DecodeFixedOpaque(r io.Reader, dst []byte) error {
	if _, err := io.ReadFull(r, dst); err != nil {
		return fmt.Errorf("read fixed opaque: %w", err)
	}
	if pad := Pad(uint32(len(dst))); pad > 0 {
		var skip [3]byte
		if _, err := io.ReadFull(r, skip[:pad]); err != nil {
			return fmt.Errorf("read fixed opaque padding: %w", err)
		}
	}
	return nil
}

// DecodeBitmap reads a bitmap4: a counted array of 32-bit words.
func DecodeBitmap(r io.Reader, maxWords uint32) ([]uint32, error) {
	n, err := DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read bitmap length: %w", err)
	}
	if n > maxWords {
		return nil, fmt.Errorf("bitmap of %d words: %w", n, ErrTooLong)
	}
	words := make([]uint32, n)
	for i := range words {
		if words[i], err = DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("read bitmap word %d: %w", i, err)
		}
	}
	return words, nil
}

// DecodeDiscriminant reads the uint32 arm selector of a discriminated union.
func DecodeDiscriminant(r io.Reader) (uint32, error) {
	return DecodeUint32(r)
}
