package handlers

import (
	"errors"
	"fmt"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/state"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// holdLease records a lease reservation taken by an operation. A request
// keeps at most one reservation; a second one on the same client is given
// back immediately, one on another client replaces the first.
func (c *CompoundContext) holdLease(client *state.Client) {
	switch c.LeaseClient {
	case nil:
		c.LeaseClient = client
	case client:
		client.UpdateAndReleaseLease()
	default:
		c.LeaseClient.UpdateAndReleaseLease()
		c.LeaseClient = client
	}
}

// SETCLIENTID (RFC 7530 Section 16.33)
func (h *Handler) opSetClientID(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.SetClientIDArgs)
	if !ok {
		return badArgs()
	}

	res, err := h.State.SetClientID(a, c.Creds)
	if err != nil {
		if errors.Is(err, state.ErrClientIDInUse) && res != nil && res.InUse != nil {
			return types.Result{
				Status: types.NFS4ERR_CLID_INUSE,
				Body:   &types.ClientInUseRes{NetID: res.InUse.NetID, Addr: res.InUse.Addr},
			}
		}
		return stateResult(err)
	}

	return types.Result{
		Status: types.NFS4_OK,
		Body:   &types.SetClientIDRes{ClientID: res.ClientID, Verifier: res.ConfirmVerifier},
	}
}

// SETCLIENTID_CONFIRM (RFC 7530 Section 16.34)
func (h *Handler) opSetClientIDConfirm(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.SetClientIDConfirmArgs)
	if !ok {
		return badArgs()
	}
	if err := h.State.ConfirmClientID(c.ctx, a.ClientID, a.Verifier, c.Creds); err != nil {
		logger.DebugCtx(c.ctx, "SETCLIENTID_CONFIRM failed",
			"client_id", fmt.Sprintf("%016x", a.ClientID),
			"error", err)
		return stateResult(err)
	}
	return statusResult(types.NFS4_OK)
}

// RENEW (RFC 7530 Section 16.29)
func (h *Handler) opRenew(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.RenewArgs)
	if !ok {
		return badArgs()
	}
	client, err := h.State.Renew(a.ClientID)
	if err != nil {
		return stateResult(err)
	}
	c.holdLease(client)
	return statusResult(types.NFS4_OK)
}

// RELEASE_LOCKOWNER (RFC 7530 Section 16.37). No lock state is kept, so
// this only validates the client ID.
func (h *Handler) opReleaseLockOwner(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.ReleaseLockOwnerArgs)
	if !ok {
		return badArgs()
	}
	if err := h.State.ReleaseLockOwner(a.ClientID, a.Owner); err != nil {
		return stateResult(err)
	}
	return statusResult(types.NFS4_OK)
}
