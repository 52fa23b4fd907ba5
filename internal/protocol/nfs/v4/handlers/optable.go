package handlers

import (
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// opHandler executes one operation. args is the decoded argument struct
// from types.Op, or nil for operations without arguments.
type opHandler func(h *Handler, c *CompoundContext, args any) types.Result

// opDescriptor describes one entry of a dispatch table.
type opDescriptor struct {
	Name   string
	OpCode uint32
	Handle opHandler

	// sessionExempt operations may open a v4.1 COMPOUND without SEQUENCE.
	sessionExempt bool
}

// opTable is the dispatch table of one minor version. index maps a wire
// opcode to a position in ops; the last position is the ILLEGAL sentinel.
type opTable struct {
	ops   []opDescriptor
	index []uint8
}

// Operations with a body, shared by both minor versions.
var commonOps = map[uint32]opHandler{
	types.OP_PUTFH:     (*Handler).opPutFH,
	types.OP_PUTROOTFH: (*Handler).opPutRootFH,
	types.OP_PUTPUBFH:  (*Handler).opPutPubFH,
	types.OP_GETFH:     (*Handler).opGetFH,
	types.OP_SAVEFH:    (*Handler).opSaveFH,
	types.OP_RESTOREFH: (*Handler).opRestoreFH,
	types.OP_LOOKUP:    (*Handler).opLookup,
	types.OP_LOOKUPP:   (*Handler).opLookupP,
	types.OP_GETATTR:   (*Handler).opGetAttr,
	types.OP_READLINK:  (*Handler).opReadlink,
	types.OP_COMMIT:    (*Handler).opCommit,
	types.OP_REMOVE:    (*Handler).opRemove,
	types.OP_LINK:      (*Handler).opLink,
	types.OP_RENAME:    (*Handler).opRename,
	types.OP_SECINFO:   (*Handler).opSecInfo,
}

// Client ID operations that only exist in NFSv4.0. In 4.1 they keep their
// table entry but answer NFS4ERR_NOTSUPP.
var v40Ops = map[uint32]opHandler{
	types.OP_SETCLIENTID:         (*Handler).opSetClientID,
	types.OP_SETCLIENTID_CONFIRM: (*Handler).opSetClientIDConfirm,
	types.OP_RENEW:               (*Handler).opRenew,
	types.OP_RELEASE_LOCKOWNER:   (*Handler).opReleaseLockOwner,
}

var v41Ops = map[uint32]opHandler{
	types.OP_EXCHANGE_ID:      (*Handler).opExchangeID,
	types.OP_CREATE_SESSION:   (*Handler).opCreateSession,
	types.OP_DESTROY_SESSION:  (*Handler).opDestroySession,
	types.OP_SEQUENCE:         (*Handler).opSequence,
	types.OP_DESTROY_CLIENTID: (*Handler).opDestroyClientID,
	types.OP_RECLAIM_COMPLETE: (*Handler).opReclaimComplete,
}

// Operations that keep their wire code in 4.1 but are routed to ILLEGAL.
var v41Disabled = map[uint32]bool{
	types.OP_OPEN_CONFIRM:         true,
	types.OP_BACKCHANNEL_CTL:      true,
	types.OP_BIND_CONN_TO_SESSION: true,
	types.OP_GET_DIR_DELEGATION:   true,
	types.OP_SECINFO_NO_NAME:      true,
	types.OP_WANT_DELEGATION:      true,
}

// Operations allowed as the first operation of a 4.1 COMPOUND.
var v41SessionExempt = map[uint32]bool{
	types.OP_EXCHANGE_ID:      true,
	types.OP_CREATE_SESSION:   true,
	types.OP_DESTROY_SESSION:  true,
	types.OP_DESTROY_CLIENTID: true,
}

var (
	opTableV40 = buildOpTable(types.OP_LAST_V40, nil, commonOps, v40Ops)
	opTableV41 = buildOpTable(types.OP_LAST_V41, v41Disabled, commonOps, v41Ops)
)

// buildOpTable lays out one descriptor per opcode from OP_ACCESS to last.
// Opcodes without a body answer NFS4ERR_NOTSUPP; reserved and disabled
// opcodes point at the ILLEGAL sentinel.
func buildOpTable(last uint32, disabled map[uint32]bool, impls ...map[uint32]opHandler) *opTable {
	t := &opTable{index: make([]uint8, last+1)}

	for op := uint32(types.OP_ACCESS); op <= last; op++ {
		if disabled[op] {
			continue
		}
		d := opDescriptor{
			Name:          types.OpName(op),
			OpCode:        op,
			Handle:        (*Handler).opNotSupp,
			sessionExempt: last >= types.OP_LAST_V41 && v41SessionExempt[op],
		}
		for _, impl := range impls {
			if fn, ok := impl[op]; ok {
				d.Handle = fn
			}
		}
		t.index[op] = uint8(len(t.ops))
		t.ops = append(t.ops, d)
	}

	illegal := uint8(len(t.ops))
	t.ops = append(t.ops, opDescriptor{
		Name:   types.OpName(types.OP_ILLEGAL),
		OpCode: types.OP_ILLEGAL,
		Handle: (*Handler).opIllegal,
	})
	for op := uint32(0); op < types.OP_ACCESS; op++ {
		t.index[op] = illegal
	}
	for op := range disabled {
		if op <= last {
			t.index[op] = illegal
		}
	}
	return t
}

// illegal returns the ILLEGAL sentinel.
func (t *opTable) illegal() *opDescriptor {
	return &t.ops[len(t.ops)-1]
}

// lookup returns the descriptor for a wire opcode.
func (t *opTable) lookup(opcode uint32) *opDescriptor {
	if opcode >= uint32(len(t.index)) {
		return t.illegal()
	}
	return &t.ops[t.index[opcode]]
}

// lookupOp returns the descriptor of opcode for a minor version.
func lookupOp(minor, opcode uint32) *opDescriptor {
	if minor == types.NFS4_MINOR_VERSION_0 {
		return opTableV40.lookup(opcode)
	}
	return opTableV41.lookup(opcode)
}

// ============================================================================
// Generic handlers
// ============================================================================

func (h *Handler) opIllegal(_ *CompoundContext, _ any) types.Result {
	return statusResult(types.NFS4ERR_OP_ILLEGAL)
}

// opNotSupp is installed for operations without a body.
func (h *Handler) opNotSupp(_ *CompoundContext, _ any) types.Result {
	return statusResult(types.NFS4ERR_NOTSUPP)
}
