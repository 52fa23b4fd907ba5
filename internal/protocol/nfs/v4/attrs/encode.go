// Package attrs encodes NFSv4 fattr4 values for GETATTR.
//
// Pseudo-fs nodes and store objects are both described by a Source, so
// there is a single encoder for every object the server can expose.
package attrs

import (
	"bytes"
	"strconv"
	"time"

	"github.com/marmos91/nfs4d/internal/protocol/xdr"
)

// Attribute bit numbers, RFC 7530 Section 5.
const (
	FATTR4_SUPPORTED_ATTRS   = 0
	FATTR4_TYPE              = 1
	FATTR4_FH_EXPIRE_TYPE    = 2
	FATTR4_CHANGE            = 3
	FATTR4_SIZE              = 4
	FATTR4_LINK_SUPPORT      = 5
	FATTR4_SYMLINK_SUPPORT   = 6
	FATTR4_NAMED_ATTR        = 7
	FATTR4_FSID              = 8
	FATTR4_UNIQUE_HANDLES    = 9
	FATTR4_LEASE_TIME        = 10
	FATTR4_RDATTR_ERROR      = 11
	FATTR4_FILEHANDLE        = 19
	FATTR4_FILEID            = 20
	FATTR4_MODE              = 33
	FATTR4_NUMLINKS          = 35
	FATTR4_OWNER             = 36
	FATTR4_OWNER_GROUP       = 37
	FATTR4_TIME_MODIFY       = 53
	FATTR4_MOUNTED_ON_FILEID = 55
)

const fh4Persistent = 0

var supported = func() []uint32 {
	var bm []uint32
	for _, bit := range []uint32{
		FATTR4_SUPPORTED_ATTRS, FATTR4_TYPE, FATTR4_FH_EXPIRE_TYPE, FATTR4_CHANGE,
		FATTR4_SIZE, FATTR4_LINK_SUPPORT, FATTR4_SYMLINK_SUPPORT, FATTR4_NAMED_ATTR,
		FATTR4_FSID, FATTR4_UNIQUE_HANDLES, FATTR4_LEASE_TIME, FATTR4_RDATTR_ERROR,
		FATTR4_FILEHANDLE, FATTR4_FILEID, FATTR4_MODE, FATTR4_NUMLINKS,
		FATTR4_OWNER, FATTR4_OWNER_GROUP, FATTR4_TIME_MODIFY, FATTR4_MOUNTED_ON_FILEID,
	} {
		SetBit(&bm, bit)
	}
	return bm
}()

// SupportedAttrs returns a copy of the supported attribute bitmap.
func SupportedAttrs() []uint32 {
	return append([]uint32(nil), supported...)
}

// Source describes an object for attribute encoding.
type Source struct {
	Type            uint32
	Change          uint64
	Size            uint64
	FSIDMajor       uint64
	FSIDMinor       uint64
	FileID          uint64
	Mode            uint32
	Nlink           uint32
	UID             uint32
	GID             uint32
	Mtime           time.Time
	MountedOnFileID uint64
	Handle          []byte
	LeaseSeconds    uint32
}

// Encode returns the mask of attributes actually returned (requested and
// supported) and their values packed in ascending bit order.
func Encode(requested []uint32, src *Source) ([]uint32, []byte) {
	mask := Intersect(requested, supported)

	var vals bytes.Buffer
	for _, bit := range Bits(mask) {
		encodeAttr(&vals, bit, src)
	}
	return mask, vals.Bytes()
}

func encodeAttr(buf *bytes.Buffer, bit uint32, src *Source) {
	switch bit {
	case FATTR4_SUPPORTED_ATTRS:
		xdr.WriteBitmap(buf, supported)
	case FATTR4_TYPE:
		xdr.WriteUint32(buf, src.Type)
	case FATTR4_FH_EXPIRE_TYPE:
		xdr.WriteUint32(buf, fh4Persistent)
	case FATTR4_CHANGE:
		xdr.WriteUint64(buf, src.Change)
	case FATTR4_SIZE:
		xdr.WriteUint64(buf, src.Size)
	case FATTR4_LINK_SUPPORT, FATTR4_SYMLINK_SUPPORT, FATTR4_UNIQUE_HANDLES:
		xdr.WriteBool(buf, true)
	case FATTR4_NAMED_ATTR:
		xdr.WriteBool(buf, false)
	case FATTR4_FSID:
		xdr.WriteUint64(buf, src.FSIDMajor)
		xdr.WriteUint64(buf, src.FSIDMinor)
	case FATTR4_LEASE_TIME:
		xdr.WriteUint32(buf, src.LeaseSeconds)
	case FATTR4_RDATTR_ERROR:
		xdr.WriteUint32(buf, 0)
	case FATTR4_FILEHANDLE:
		xdr.WriteOpaque(buf, src.Handle)
	case FATTR4_FILEID:
		xdr.WriteUint64(buf, src.FileID)
	case FATTR4_MODE:
		xdr.WriteUint32(buf, src.Mode&0o7777)
	case FATTR4_NUMLINKS:
		xdr.WriteUint32(buf, src.Nlink)
	case FATTR4_OWNER:
		xdr.WriteString(buf, strconv.FormatUint(uint64(src.UID), 10))
	case FATTR4_OWNER_GROUP:
		xdr.WriteString(buf, strconv.FormatUint(uint64(src.GID), 10))
	case FATTR4_TIME_MODIFY:
		xdr.WriteUint64(buf, uint64(src.Mtime.Unix()))
		xdr.WriteUint32(buf, uint32(src.Mtime.Nanosecond()))
	case FATTR4_MOUNTED_ON_FILEID:
		xdr.WriteUint64(buf, src.MountedOnFileID)
	}
}

var attrNames = map[string]uint32{
	"supported_attrs":   FATTR4_SUPPORTED_ATTRS,
	"type":              FATTR4_TYPE,
	"fh_expire_type":    FATTR4_FH_EXPIRE_TYPE,
	"change":            FATTR4_CHANGE,
	"size":              FATTR4_SIZE,
	"link_support":      FATTR4_LINK_SUPPORT,
	"symlink_support":   FATTR4_SYMLINK_SUPPORT,
	"named_attr":        FATTR4_NAMED_ATTR,
	"fsid":              FATTR4_FSID,
	"unique_handles":    FATTR4_UNIQUE_HANDLES,
	"lease_time":        FATTR4_LEASE_TIME,
	"rdattr_error":      FATTR4_RDATTR_ERROR,
	"filehandle":        FATTR4_FILEHANDLE,
	"fileid":            FATTR4_FILEID,
	"mode":              FATTR4_MODE,
	"numlinks":          FATTR4_NUMLINKS,
	"owner":             FATTR4_OWNER,
	"owner_group":       FATTR4_OWNER_GROUP,
	"time_modify":       FATTR4_TIME_MODIFY,
	"mounted_on_fileid": FATTR4_MOUNTED_ON_FILEID,
}

// ByName returns the bit number of a supported attribute given its RFC
// name without the FATTR4_ prefix, e.g. "size" or "mounted_on_fileid".
func ByName(name string) (uint32, bool) {
	bit, ok := attrNames[name]
	return bit, ok
}
