package state

import (
	"errors"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// NFS4StateError is an error that carries the nfsstat4 a handler should
// report for it.
type NFS4StateError struct {
	Status  uint32
	Message string
}

func (e *NFS4StateError) Error() string {
	return e.Message
}

// Is matches any NFS4StateError with the same status, so callers can test
// against the sentinels below even when a more specific message was built.
func (e *NFS4StateError) Is(target error) bool {
	t, ok := target.(*NFS4StateError)
	return ok && t.Status == e.Status
}

func newStateError(status uint32, msg string) *NFS4StateError {
	return &NFS4StateError{Status: status, Message: msg}
}

var (
	ErrStaleClientID   = newStateError(types.NFS4ERR_STALE_CLIENTID, "stale client ID")
	ErrClientIDInUse   = newStateError(types.NFS4ERR_CLID_INUSE, "client ID in use by another principal")
	ErrClientIDBusy    = newStateError(types.NFS4ERR_CLIENTID_BUSY, "client ID has active sessions")
	ErrExpired         = newStateError(types.NFS4ERR_EXPIRED, "lease expired")
	ErrNotSame         = newStateError(types.NFS4ERR_NOT_SAME, "verifier does not match confirmed record")
	ErrNoConfirmed     = newStateError(types.NFS4ERR_NOENT, "no confirmed record to update")
	ErrPrincipal       = newStateError(types.NFS4ERR_PERM, "principal does not match confirmed record")
	ErrUpdateNotSupp   = newStateError(types.NFS4ERR_NOTSUPP, "updating a confirmed record is not supported")
	ErrBadSession      = newStateError(types.NFS4ERR_BADSESSION, "session not found")
	ErrBadSlot         = newStateError(types.NFS4ERR_BADSLOT, "slot ID out of range")
	ErrDelay           = newStateError(types.NFS4ERR_DELAY, "slot in use")
	ErrSeqMisordered   = newStateError(types.NFS4ERR_SEQ_MISORDERED, "sequence ID misordered")
	ErrRetryUncached   = newStateError(types.NFS4ERR_RETRY_UNCACHED_REP, "retry of uncached reply")
	ErrTooManySessions = newStateError(types.NFS4ERR_RESOURCE, "per-client session limit exceeded")
	ErrBadFlags        = newStateError(types.NFS4ERR_INVAL, "invalid flags")
	ErrCompleteAlready = newStateError(types.NFS4ERR_COMPLETE_ALREADY, "reclaim already complete")
	ErrGrace           = newStateError(types.NFS4ERR_GRACE, "server in grace period")
)

// StatusOf maps err to an nfsstat4. Errors that do not carry a status are
// reported as SERVERFAULT.
func StatusOf(err error) uint32 {
	if err == nil {
		return types.NFS4_OK
	}
	var se *NFS4StateError
	if errors.As(err, &se) {
		return se.Status
	}
	return types.NFS4ERR_SERVERFAULT
}
