package logger

import (
	"fmt"
	"log/slog"
)

// Field keys used across the server. Keep them consistent so records can
// be aggregated and queried.
const (
	// ========================================================================
	// Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// COMPOUND processing
	// ========================================================================
	KeyMinor    = "minor"
	KeyOp       = "op"
	KeyOpIndex  = "op_index"
	KeyStatus   = "status"
	KeyHandle   = "handle"
	KeyExport   = "export"
	KeyFilename = "filename"
	KeyTag      = "tag"

	// ========================================================================
	// Client and credentials
	// ========================================================================
	KeyClientAddr = "client_addr"
	KeyClientID   = "client_id"
	KeySessionID  = "session_id"
	KeySlot       = "slot"
	KeySeqID      = "seqid"
	KeyUID        = "uid"
	KeyGID        = "gid"
	KeyAuth       = "auth"

	// ========================================================================
	// Object store
	// ========================================================================
	KeyStore    = "store"
	KeyObjectID = "object_id"
	KeyCacheHit = "cache_hit"
	KeyEntries  = "entries"

	// ========================================================================
	// Misc
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyPath       = "path"
)

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr  { return slog.String(KeySpanID, id) }

// Minor returns an attribute for the NFSv4 minor version.
func Minor(v uint32) slog.Attr { return slog.Any(KeyMinor, v) }

// Op returns an attribute for an operation name.
func Op(name string) slog.Attr { return slog.String(KeyOp, name) }

// OpIndex returns an attribute for the position of an operation.
func OpIndex(i int) slog.Attr { return slog.Int(KeyOpIndex, i) }

// Status returns an attribute for a status name such as NFS4ERR_NOENT.
func Status(name string) slog.Attr { return slog.String(KeyStatus, name) }

// Handle returns an attribute for a filehandle, hex encoded.
func Handle(h []byte) slog.Attr { return slog.String(KeyHandle, fmt.Sprintf("%x", h)) }

func Export(path string) slog.Attr   { return slog.String(KeyExport, path) }
func Filename(name string) slog.Attr { return slog.String(KeyFilename, name) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }

func ClientAddr(addr string) slog.Attr { return slog.String(KeyClientAddr, addr) }

// ClientID returns an attribute for an NFSv4 client ID in hex.
func ClientID(id uint64) slog.Attr { return slog.String(KeyClientID, fmt.Sprintf("%016x", id)) }

func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }
func Slot(id uint32) slog.Attr      { return slog.Any(KeySlot, id) }
func SeqID(id uint32) slog.Attr     { return slog.Any(KeySeqID, id) }
func UID(uid uint32) slog.Attr      { return slog.Any(KeyUID, uid) }
func GID(gid uint32) slog.Attr      { return slog.Any(KeyGID, gid) }
func Auth(flavor uint32) slog.Attr  { return slog.Any(KeyAuth, flavor) }

func Store(name string) slog.Attr     { return slog.String(KeyStore, name) }
func ObjectID(id uint64) slog.Attr    { return slog.Any(KeyObjectID, id) }
func CacheHit(hit bool) slog.Attr     { return slog.Bool(KeyCacheHit, hit) }
func Entries(n int) slog.Attr         { return slog.Int(KeyEntries, n) }
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns an attribute for err. A nil error yields an empty Attr,
// which slog drops.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
