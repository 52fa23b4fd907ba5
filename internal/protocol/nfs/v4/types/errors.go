package types

import (
	goerrors "errors"
	"strings"
	"unicode/utf8"

	"github.com/marmos91/nfs4d/pkg/objstore"
)

// MapStoreError translates an object store error into an nfsstat4 value.
// Anything that is not a *objstore.StoreError becomes NFS4ERR_SERVERFAULT.
func MapStoreError(err error) uint32 {
	if err == nil {
		return NFS4_OK
	}

	var storeErr *objstore.StoreError
	if !goerrors.As(err, &storeErr) {
		return NFS4ERR_SERVERFAULT
	}

	switch storeErr.Code {
	case objstore.ErrNotFound:
		return NFS4ERR_NOENT
	case objstore.ErrStaleHandle:
		return NFS4ERR_STALE
	case objstore.ErrAlreadyExists:
		return NFS4ERR_EXIST
	case objstore.ErrNotEmpty:
		return NFS4ERR_NOTEMPTY
	case objstore.ErrIsDirectory:
		return NFS4ERR_ISDIR
	case objstore.ErrNotDirectory:
		return NFS4ERR_NOTDIR
	case objstore.ErrInvalidArgument:
		return NFS4ERR_INVAL
	case objstore.ErrReadOnly:
		return NFS4ERR_ROFS
	case objstore.ErrNameTooLong:
		return NFS4ERR_NAMETOOLONG
	case objstore.ErrNotSupported:
		return NFS4ERR_NOTSUPP
	case objstore.ErrIOError:
		return NFS4ERR_IO
	default:
		return NFS4ERR_SERVERFAULT
	}
}

// ValidateComponentName checks a single path component the way LOOKUP,
// REMOVE, LINK, RENAME and SECINFO require:
//
//   - empty: NFS4ERR_INVAL
//   - longer than MaxNameLen bytes: NFS4ERR_NAMETOOLONG
//   - invalid UTF-8: NFS4ERR_INVAL
//   - "." or "..": NFS4ERR_BADNAME
//   - embedded NUL or '/': NFS4ERR_BADCHAR
func ValidateComponentName(name string) uint32 {
	switch {
	case len(name) == 0:
		return NFS4ERR_INVAL
	case len(name) > MaxNameLen:
		return NFS4ERR_NAMETOOLONG
	case !utf8.ValidString(name):
		return NFS4ERR_INVAL
	case name == "." || name == "..":
		return NFS4ERR_BADNAME
	case strings.ContainsAny(name, "\x00/"):
		return NFS4ERR_BADCHAR
	}
	return NFS4_OK
}
