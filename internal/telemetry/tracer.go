package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. They follow OpenTelemetry semantic conventions where
// one applies; NFSv4 specific keys use the "nfs." prefix.
const (
	// ========================================================================
	// Client attributes
	// ========================================================================
	AttrClientAddr = "client.address"

	// ========================================================================
	// RPC attributes
	// ========================================================================
	AttrRPCXID      = "rpc.xid"
	AttrRPCAuthType = "rpc.auth_type"

	// ========================================================================
	// NFSv4 attributes
	// ========================================================================
	AttrNFSMinorVersion = "nfs.minor_version"
	AttrNFSNumOps       = "nfs.compound.num_ops"
	AttrNFSOperation    = "nfs.operation"
	AttrNFSOpIndex      = "nfs.operation.index"
	AttrNFSHandle       = "nfs.handle"
	AttrNFSExport       = "nfs.export"
	AttrNFSFilename     = "nfs.filename"
	AttrNFSStatus       = "nfs.status"
	AttrNFSSessionID    = "nfs.session_id"
	AttrNFSClientID     = "nfs.client_id"

	// ========================================================================
	// User attributes
	// ========================================================================
	AttrUID = "user.uid"
	AttrGID = "user.gid"

	// ========================================================================
	// Object store attributes
	// ========================================================================
	AttrStoreType = "store.type"
	AttrObjectID  = "store.object_id"
	AttrCacheHit  = "cache.hit"
)

// Span names.
const (
	SpanCompound = "nfs.COMPOUND"
	SpanStore    = "objstore"
)

// ClientAddr returns an attribute for the client transport address.
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// RPCXID returns an attribute for the RPC transaction ID.
func RPCXID(xid uint32) attribute.KeyValue {
	return attribute.String(AttrRPCXID, fmt.Sprintf("0x%08x", xid))
}

// RPCAuthType returns an attribute for the RPC auth flavor.
func RPCAuthType(flavor uint32) attribute.KeyValue {
	return attribute.Int64(AttrRPCAuthType, int64(flavor))
}

// NFSMinorVersion returns an attribute for the COMPOUND minor version.
func NFSMinorVersion(minor uint32) attribute.KeyValue {
	return attribute.Int64(AttrNFSMinorVersion, int64(minor))
}

// NFSNumOps returns an attribute for the number of operations in a COMPOUND.
func NFSNumOps(n int) attribute.KeyValue {
	return attribute.Int(AttrNFSNumOps, n)
}

// NFSOperation returns an attribute for an operation name.
func NFSOperation(name string) attribute.KeyValue {
	return attribute.String(AttrNFSOperation, name)
}

// NFSOpIndex returns an attribute for the position of an operation.
func NFSOpIndex(i int) attribute.KeyValue {
	return attribute.Int(AttrNFSOpIndex, i)
}

// NFSHandle returns an attribute for a filehandle, hex encoded.
func NFSHandle(handle []byte) attribute.KeyValue {
	return attribute.String(AttrNFSHandle, fmt.Sprintf("%x", handle))
}

// NFSExport returns an attribute for an export path.
func NFSExport(path string) attribute.KeyValue {
	return attribute.String(AttrNFSExport, path)
}

// NFSFilename returns an attribute for a component name.
func NFSFilename(name string) attribute.KeyValue {
	return attribute.String(AttrNFSFilename, name)
}

// NFSStatus returns an attribute for an nfsstat4 value.
func NFSStatus(status int) attribute.KeyValue {
	return attribute.Int(AttrNFSStatus, status)
}

// NFSSessionID returns an attribute for a session ID string.
func NFSSessionID(id string) attribute.KeyValue {
	return attribute.String(AttrNFSSessionID, id)
}

// NFSClientID returns an attribute for a client ID.
func NFSClientID(id uint64) attribute.KeyValue {
	return attribute.String(AttrNFSClientID, fmt.Sprintf("%016x", id))
}

// UID returns an attribute for the caller's user ID.
func UID(uid uint32) attribute.KeyValue {
	return attribute.Int64(AttrUID, int64(uid))
}

// GID returns an attribute for the caller's group ID.
func GID(gid uint32) attribute.KeyValue {
	return attribute.Int64(AttrGID, int64(gid))
}

// StoreType returns an attribute for an object store backend name.
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// ObjectID returns an attribute for an object store ID.
func ObjectID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrObjectID, int64(id))
}

// CacheHit returns an attribute recording whether a lookup hit the cache.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// StartCompoundSpan starts the root span of one COMPOUND request.
func StartCompoundSpan(ctx context.Context, minor uint32, numOps int, client string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		NFSMinorVersion(minor),
		NFSNumOps(numOps),
	}
	if client != "" {
		attrs = append(attrs, ClientAddr(client))
	}
	return StartSpan(ctx, SpanCompound,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...))
}

// StartOpSpan starts a child span for the operation at index i of a
// COMPOUND.
func StartOpSpan(ctx context.Context, name string, index int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := []attribute.KeyValue{
		NFSOperation(name),
		NFSOpIndex(index),
	}
	all = append(all, attrs...)
	return StartSpan(ctx, "nfs."+name, trace.WithAttributes(all...))
}

// StartStoreSpan starts a span for an object store operation.
func StartStoreSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanStore+"."+operation, trace.WithAttributes(attrs...))
}
