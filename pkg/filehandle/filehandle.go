// Package filehandle defines the persistent NFSv4 filehandle layout.
//
// Layout (16 bytes, big-endian):
//
//	0      version
//	1      kind (pseudo, regular, xattr)
//	2..3   reserved, zero
//	4..7   export id (zero for pseudo handles)
//	8..15  object id (pseudo node id for pseudo handles)
//
// Handles stay valid across restarts as long as the export id and the
// object keep existing.
package filehandle

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Version is the only layout version this package produces.
const Version = 1

// Size is the encoded length of a handle.
const Size = 16

// MaxSize is the NFSv4 ceiling on opaque filehandles.
const MaxSize = 128

// ErrBadHandle is returned for buffers that are not a handle of this server.
var ErrBadHandle = errors.New("filehandle: malformed handle")

// Kind distinguishes what namespace an object id lives in.
type Kind uint8

const (
	KindPseudo  Kind = 0
	KindRegular Kind = 1
	KindXattr   Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindPseudo:
		return "pseudo"
	case KindRegular:
		return "regular"
	case KindXattr:
		return "xattr"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Handle is the decoded form of a filehandle.
type Handle struct {
	Kind     Kind
	ExportID uint32
	ObjectID uint64
}

// Pseudo builds a handle for a pseudo-fs node.
func Pseudo(nodeID uint64) Handle {
	return Handle{Kind: KindPseudo, ObjectID: nodeID}
}

// Regular builds a handle for an object of an export.
func Regular(exportID uint32, objectID uint64) Handle {
	return Handle{Kind: KindRegular, ExportID: exportID, ObjectID: objectID}
}

// Encode returns the wire form of h.
func (h Handle) Encode() []byte {
	return h.AppendTo(make([]byte, 0, Size))
}

// AppendTo appends the wire form of h to dst.
func (h Handle) AppendTo(dst []byte) []byte {
	dst = append(dst, Version, byte(h.Kind), 0, 0)
	dst = binary.BigEndian.AppendUint32(dst, h.ExportID)
	return binary.BigEndian.AppendUint64(dst, h.ObjectID)
}

// Decode parses a wire handle.
func Decode(b []byte) (Handle, error) {
	if len(b) != Size {
		return Handle{}, fmt.Errorf("%w: length %d", ErrBadHandle, len(b))
	}
	if b[0] != Version {
		return Handle{}, fmt.Errorf("%w: version %d", ErrBadHandle, b[0])
	}
	kind := Kind(b[1])
	if kind > KindXattr || b[2] != 0 || b[3] != 0 {
		return Handle{}, fmt.Errorf("%w: kind %d", ErrBadHandle, b[1])
	}

	h := Handle{
		Kind:     kind,
		ExportID: binary.BigEndian.Uint32(b[4:8]),
		ObjectID: binary.BigEndian.Uint64(b[8:16]),
	}
	if kind == KindPseudo && h.ExportID != 0 {
		return Handle{}, fmt.Errorf("%w: pseudo handle with export %d", ErrBadHandle, h.ExportID)
	}
	return h, nil
}

// String renders h for logs and the printfh command.
func (h Handle) String() string {
	if h.Kind == KindPseudo {
		return fmt.Sprintf("pseudo node=%d", h.ObjectID)
	}
	return fmt.Sprintf("%s export=%d object=%d", h.Kind, h.ExportID, h.ObjectID)
}
