package handlers

import (
	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/state"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/pkg/bufpool"
)

// EXCHANGE_ID (RFC 8881 Section 18.35)
func (h *Handler) opExchangeID(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.ExchangeIDArgs)
	if !ok {
		return badArgs()
	}
	if c.MinorVersion == types.NFS4_MINOR_VERSION_0 {
		return statusResult(types.NFS4ERR_INVAL)
	}

	res, err := h.State.ExchangeID(a, c.Creds)
	if err != nil {
		return stateResult(err)
	}

	id := h.State.Identity()
	return types.Result{
		Status: types.NFS4_OK,
		Body: &types.ExchangeIDRes{
			ClientID:     res.ClientID,
			SequenceID:   res.SequenceID,
			Flags:        res.Flags,
			StateProtect: types.SP4_NONE,
			OwnerMinor:   id.OwnerMinor,
			OwnerMajor:   bufpool.Clone(id.OwnerMajor),
			Scope:        bufpool.Clone(id.Scope),
		},
	}
}

// CREATE_SESSION (RFC 8881 Section 18.36)
//
// The client's CREATE_SESSION slot doubles as the reply cache when the
// operation opens the COMPOUND. Behind SEQUENCE the session slot caches the
// reply instead, so a retransmission reaching this point is misordered.
func (h *Handler) opCreateSession(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.CreateSessionArgs)
	if !ok {
		return badArgs()
	}
	if c.MinorVersion == types.NFS4_MINOR_VERSION_0 {
		return statusResult(types.NFS4ERR_INVAL)
	}

	res, err := h.State.CreateSession(c.ctx, a, c.Creds)
	if err != nil {
		return stateResult(err)
	}

	if res.Replay {
		if c.OpPos != 0 {
			return statusResult(types.NFS4ERR_SEQ_MISORDERED)
		}
		c.ReplySlot = res.Slot
		c.UseReplayCache = true
		return statusResult(types.NFS4_OK)
	}

	if c.OpPos == 0 {
		c.ReplySlot = res.Slot
	} else {
		res.Slot.Release()
	}
	return types.Result{Status: types.NFS4_OK, Body: res.Res}
}

// DESTROY_SESSION (RFC 8881 Section 18.37)
func (h *Handler) opDestroySession(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.DestroySessionArgs)
	if !ok {
		return badArgs()
	}
	if err := h.State.DestroySession(a.SessionID); err != nil {
		return stateResult(err)
	}
	return statusResult(types.NFS4_OK)
}

// SEQUENCE (RFC 8881 Section 18.46)
//
// Binds the request to a session slot. A new sequence ID executes the
// request and caches its reply; the slot's current sequence ID is a
// retransmission answered from the cache.
func (h *Handler) opSequence(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.SequenceArgs)
	if !ok {
		return badArgs()
	}
	if c.OpPos != 0 {
		return statusResult(types.NFS4ERR_SEQUENCE_POS)
	}

	res, err := h.State.Sequence(a)
	if err != nil {
		status := state.StatusOf(err)
		h.metrics.RecordSequence(types.StatusName(status))
		logger.DebugCtx(c.ctx, "SEQUENCE rejected",
			"session_id", a.SessionID.String(),
			"slot", a.SlotID,
			"seqid", a.SequenceID,
			"status", types.StatusName(status))
		return statusResult(status)
	}
	h.metrics.RecordSequence(res.Validation.String())

	c.Session = res.Session
	c.ReplySlot = res.Slot
	c.UseReplayCache = res.Validation == state.SeqRetry
	c.holdLease(res.Session.Client)

	slots := res.Session.Slots
	return types.Result{
		Status: types.NFS4_OK,
		Body: &types.SequenceRes{
			SessionID:           a.SessionID,
			SequenceID:          a.SequenceID,
			SlotID:              a.SlotID,
			HighestSlotID:       slots.MaxSlots() - 1,
			TargetHighestSlotID: slots.TargetHighestSlotID(),
		},
	}
}

// DESTROY_CLIENTID (RFC 8881 Section 18.50)
func (h *Handler) opDestroyClientID(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.DestroyClientIDArgs)
	if !ok {
		return badArgs()
	}
	if err := h.State.DestroyClientID(c.ctx, a.ClientID); err != nil {
		return stateResult(err)
	}
	return statusResult(types.NFS4_OK)
}

// RECLAIM_COMPLETE (RFC 8881 Section 18.51)
//
// Only the whole-client form is tracked; rca_one_fs is accepted as is.
func (h *Handler) opReclaimComplete(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.ReclaimCompleteArgs)
	if !ok {
		return badArgs()
	}
	if c.Session == nil {
		return statusResult(types.NFS4ERR_OP_NOT_IN_SESSION)
	}
	if a.OneFS {
		return statusResult(types.NFS4_OK)
	}
	if err := h.State.ReclaimComplete(c.ctx, c.Session.ClientID); err != nil {
		return stateResult(err)
	}
	return statusResult(types.NFS4_OK)
}
