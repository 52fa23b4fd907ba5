package handlers

import (
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

// SECINFO (RFC 7530 Section 16.31, RFC 8881 Section 18.29)
//
// Every object accepts AUTH_SYS and AUTH_NONE. The name must exist. In
// NFSv4.1 a successful SECINFO consumes the current filehandle.
func (h *Handler) opSecInfo(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.SecInfoArgs)
	if !ok {
		return badArgs()
	}
	if status := checkCurrent(c); status != types.NFS4_OK {
		return statusResult(status)
	}
	if status := checkType(&c.cur, objstore.TypeDirectory); status != types.NFS4_OK {
		return statusResult(status)
	}
	if status := types.ValidateComponentName(a.Name); status != types.NFS4_OK {
		return statusResult(status)
	}

	if c.cur.pseudo() {
		if _, found := h.PseudoFS.Child(c.cur.node, a.Name); !found {
			return statusResult(types.NFS4ERR_NOENT)
		}
	} else {
		e, err := c.cur.exp.Store.Lookup(c.cur.entry, a.Name)
		if err != nil {
			return statusResult(types.MapStoreError(err))
		}
		putEntry(e)
	}

	if c.MinorVersion >= types.NFS4_MINOR_VERSION_1 {
		c.setCurrent(position{})
	}
	return types.Result{
		Status: types.NFS4_OK,
		Body:   types.NewSecInfoRes(types.AUTH_SYS, types.AUTH_NONE),
	}
}
