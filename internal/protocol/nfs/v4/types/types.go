package types

import (
	"encoding/hex"
	"fmt"
)

// Op is one decoded operation of a COMPOUND request. Args holds a pointer to
// the op-specific argument struct, or nil for operations without arguments
// or without a body in this server.
type Op struct {
	OpCode uint32
	Args   any
}

// Compound4Args is a decoded COMPOUND4args.
type Compound4Args struct {
	Tag          []byte
	MinorVersion uint32
	Ops          []Op
}

// Credentials identifies the caller of a request.
type Credentials struct {
	Flavor    uint32
	UID       uint32
	GID       uint32
	GIDs      []uint32
	Principal string
}

// SessionID is a sessionid4.
type SessionID [NFS4_SESSIONID_SIZE]byte

func (s SessionID) String() string {
	return hex.EncodeToString(s[:])
}

// Verifier is a verifier4.
type Verifier [NFS4_VERIFIER_SIZE]byte

// ChannelAttrs is channel_attrs4.
type ChannelAttrs struct {
	HeaderPadSize         uint32
	MaxRequestSize        uint32
	MaxResponseSize       uint32
	MaxResponseSizeCached uint32
	MaxOperations         uint32
	MaxRequests           uint32
	RdmaIrd               []uint32
}

func (c ChannelAttrs) String() string {
	return fmt.Sprintf("{ops=%d reqs=%d req=%d resp=%d cached=%d}",
		c.MaxOperations, c.MaxRequests, c.MaxRequestSize, c.MaxResponseSize, c.MaxResponseSizeCached)
}

// ============================================================================
// Filehandle operations
// ============================================================================

type PutFHArgs struct {
	Handle []byte
}

type LookupArgs struct {
	Name string
}

type GetAttrArgs struct {
	Request []uint32
}

type CommitArgs struct {
	Offset uint64
	Count  uint32
}

type RemoveArgs struct {
	Target string
}

type LinkArgs struct {
	NewName string
}

type RenameArgs struct {
	OldName string
	NewName string
}

type SecInfoArgs struct {
	Name string
}

// ============================================================================
// NFSv4.0 client id operations
// ============================================================================

// CallbackClient is cb_client4.
type CallbackClient struct {
	Program uint32
	NetID   string
	Addr    string
}

type SetClientIDArgs struct {
	Verifier      Verifier
	ID            []byte
	Callback      CallbackClient
	CallbackIdent uint32
}

type SetClientIDConfirmArgs struct {
	ClientID uint64
	Verifier Verifier
}

type RenewArgs struct {
	ClientID uint64
}

type ReleaseLockOwnerArgs struct {
	ClientID uint64
	Owner    []byte
}

// ============================================================================
// NFSv4.1 session operations
// ============================================================================

// ImplID is nfs_impl_id4.
type ImplID struct {
	Domain string
	Name   string
	Date   int64
}

type ExchangeIDArgs struct {
	Verifier     Verifier
	OwnerID      []byte
	Flags        uint32
	StateProtect uint32
	ImplID       []ImplID
}

// CallbackSecParms is the flavor of one callback_sec_parms4 entry.
type CallbackSecParms struct {
	Flavor uint32
	UID    uint32
	GID    uint32
}

type CreateSessionArgs struct {
	ClientID        uint64
	Sequence        uint32
	Flags           uint32
	ForeChannel     ChannelAttrs
	BackChannel     ChannelAttrs
	CallbackProgram uint32
	SecParms        []CallbackSecParms
}

type DestroySessionArgs struct {
	SessionID SessionID
}

type SequenceArgs struct {
	SessionID     SessionID
	SequenceID    uint32
	SlotID        uint32
	HighestSlotID uint32
	CacheThis     bool
}

type DestroyClientIDArgs struct {
	ClientID uint64
}

type ReclaimCompleteArgs struct {
	OneFS bool
}
