package handlers

import (
	"time"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/attrs"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/internal/telemetry"
	"github.com/marmos91/nfs4d/pkg/bufpool"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

const pseudoDirMode = 0o555

// attrSource describes the current object for attribute encoding.
func (h *Handler) attrSource(c *CompoundContext) (*attrs.Source, uint32) {
	lease := uint32(h.State.LeaseDuration() / time.Second)

	if c.cur.pseudo() {
		n := c.cur.node
		return &attrs.Source{
			Type:            types.NF4DIR,
			Change:          n.Change,
			FileID:          n.ID,
			Mode:            pseudoDirMode,
			Nlink:           uint32(2 + len(n.Children)),
			Mtime:           h.started,
			MountedOnFileID: n.ID,
			Handle:          c.cur.fh.bytes(),
			LeaseSeconds:    lease,
		}, types.NFS4_OK
	}

	exp := c.cur.exp
	a, err := exp.Store.GetAttr(c.cur.entry)
	if err != nil {
		return nil, types.MapStoreError(err)
	}

	mountedOn := a.FileID
	if c.cur.entry.ID() == objstore.RootID {
		if junction, ok := h.PseudoFS.Junction(exp.ID); ok {
			mountedOn = junction.ID
		}
	}

	return &attrs.Source{
		Type:            uint32(a.Type),
		Change:          a.Change,
		Size:            a.Size,
		FSIDMajor:       uint64(exp.ID),
		FileID:          a.FileID,
		Mode:            a.Mode,
		Nlink:           a.Nlink,
		UID:             a.UID,
		GID:             a.GID,
		Mtime:           a.Mtime,
		MountedOnFileID: mountedOn,
		Handle:          c.cur.fh.bytes(),
		LeaseSeconds:    lease,
	}, types.NFS4_OK
}

// GETATTR (RFC 7530 Section 16.7)
func (h *Handler) opGetAttr(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.GetAttrArgs)
	if !ok {
		return badArgs()
	}
	if status := checkCurrent(c); status != types.NFS4_OK {
		return statusResult(status)
	}

	src, status := h.attrSource(c)
	if status != types.NFS4_OK {
		return statusResult(status)
	}
	mask, vals := attrs.Encode(a.Request, src)

	return types.Result{
		Status: types.NFS4_OK,
		Body:   &types.GetAttrRes{Mask: mask, Vals: bufpool.Clone(vals)},
	}
}

// READLINK (RFC 7530 Section 16.25)
func (h *Handler) opReadlink(c *CompoundContext, _ any) types.Result {
	if status := checkCurrent(c); status != types.NFS4_OK {
		return statusResult(status)
	}
	if c.cur.typ != objstore.TypeSymlink {
		return statusResult(types.NFS4ERR_INVAL)
	}

	target, err := c.cur.exp.Store.Readlink(c.cur.entry)
	if err != nil {
		return statusResult(types.MapStoreError(err))
	}
	return types.Result{
		Status: types.NFS4_OK,
		Body:   &types.ReadlinkRes{Link: bufpool.Clone([]byte(target))},
	}
}

// COMMIT (RFC 7530 Section 16.3)
//
// Any failure of the store is reported as NFS4ERR_INVAL.
func (h *Handler) opCommit(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.CommitArgs)
	if !ok {
		return badArgs()
	}
	if status := checkCurrent(c); status != types.NFS4_OK {
		return statusResult(status)
	}
	if status := checkType(&c.cur, objstore.TypeRegular); status != types.NFS4_OK {
		return statusResult(status)
	}

	err := traceStore(c, "commit", func() error {
		return c.cur.exp.Store.Commit(c.cur.entry, a.Offset, a.Count)
	}, telemetry.NFSExport(c.cur.exp.Path), telemetry.ObjectID(c.cur.entry.ID()))
	if err != nil {
		return statusResult(types.NFS4ERR_INVAL)
	}
	return types.Result{
		Status: types.NFS4_OK,
		Body:   &types.CommitRes{Verifier: h.State.Identity().WriteVerifier},
	}
}
