package handlers

import (
	"errors"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/pseudofs"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/pkg/bufpool"
	"github.com/marmos91/nfs4d/pkg/export"
	"github.com/marmos91/nfs4d/pkg/filehandle"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

// pseudoPosition describes a pseudo-fs node.
func pseudoPosition(n *pseudofs.Node) position {
	p := position{typ: objstore.TypeDirectory, node: n}
	p.fh.set(n.Handle())
	return p
}

// entryPosition describes an object of exp. It takes over the reference
// held on e.
func entryPosition(exp *export.Export, e *objstore.Entry) position {
	p := position{typ: e.Type(), entry: e, exp: exp}
	p.fh.set(filehandle.Regular(exp.ID, e.ID()).Encode())
	return p
}

// resolve turns a wire filehandle into a position holding its own
// reference.
func (h *Handler) resolve(fh []byte) (position, uint32) {
	exp, isPseudo, isXattr, err := h.Exports.Resolve(fh)
	if err != nil {
		if errors.Is(err, export.ErrUnknownExport) {
			return position{}, types.NFS4ERR_STALE
		}
		return position{}, types.NFS4ERR_BADHANDLE
	}
	hd, err := filehandle.Decode(fh)
	if err != nil {
		return position{}, types.NFS4ERR_BADHANDLE
	}

	switch {
	case isPseudo:
		n, ok := h.PseudoFS.Node(hd.ObjectID)
		if !ok {
			return position{}, types.NFS4ERR_STALE
		}
		return pseudoPosition(n), types.NFS4_OK

	case !exp.NFSv4:
		return position{}, types.NFS4ERR_PERM

	case isXattr:
		p := position{exp: exp, xattr: true}
		p.fh.set(fh)
		return p, types.NFS4_OK
	}

	e, err := exp.Store.Get(hd.ObjectID)
	if err != nil {
		return position{}, types.MapStoreError(err)
	}
	return entryPosition(exp, e), types.NFS4_OK
}

// PUTFH (RFC 7530 Section 16.20)
func (h *Handler) opPutFH(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.PutFHArgs)
	if !ok {
		return badArgs()
	}
	if len(a.Handle) == 0 || len(a.Handle) > types.NFS4_FHSIZE {
		return statusResult(types.NFS4ERR_BADHANDLE)
	}

	p, status := h.resolve(a.Handle)
	if status != types.NFS4_OK {
		logger.DebugCtx(c.ctx, "PUTFH: cannot resolve handle",
			"handle", filehandleString(a.Handle),
			"status", types.StatusName(status))
		return statusResult(status)
	}
	c.setCurrent(p)
	return statusResult(types.NFS4_OK)
}

// PUTROOTFH (RFC 7530 Section 16.22)
func (h *Handler) opPutRootFH(c *CompoundContext, _ any) types.Result {
	p := pseudoPosition(h.PseudoFS.Root())
	c.RootFH.set(p.fh.bytes())
	c.MountedOnFH.reset()
	c.setCurrent(p)
	return statusResult(types.NFS4_OK)
}

// PUTPUBFH (RFC 7530 Section 16.21). The public filehandle is the pseudo
// root.
func (h *Handler) opPutPubFH(c *CompoundContext, _ any) types.Result {
	p := pseudoPosition(h.PseudoFS.Root())
	c.PublicFH.set(p.fh.bytes())
	c.MountedOnFH.reset()
	c.setCurrent(p)
	return statusResult(types.NFS4_OK)
}

// GETFH (RFC 7530 Section 16.8)
func (h *Handler) opGetFH(c *CompoundContext, _ any) types.Result {
	if !c.cur.valid() {
		return statusResult(types.NFS4ERR_NOFILEHANDLE)
	}
	return types.Result{
		Status: types.NFS4_OK,
		Body:   &types.GetFHRes{Handle: bufpool.Clone(c.cur.fh.bytes())},
	}
}

// SAVEFH (RFC 7530 Section 16.31)
func (h *Handler) opSaveFH(c *CompoundContext, _ any) types.Result {
	if !c.cur.valid() {
		return statusResult(types.NFS4ERR_NOFILEHANDLE)
	}
	c.setSaved(refPosition(c.cur))
	return statusResult(types.NFS4_OK)
}

// RESTOREFH (RFC 7530 Section 16.27)
func (h *Handler) opRestoreFH(c *CompoundContext, _ any) types.Result {
	if !c.saved.valid() {
		return statusResult(types.NFS4ERR_RESTOREFH)
	}

	if c.cur.sameObject(&c.saved) {
		// Both positions already hold a reference on the same entry.
		c.cur = c.saved
		return statusResult(types.NFS4_OK)
	}
	c.setCurrent(refPosition(c.saved))
	return statusResult(types.NFS4_OK)
}

func filehandleString(fh []byte) string {
	hd, err := filehandle.Decode(fh)
	if err != nil {
		return "malformed"
	}
	return hd.String()
}

// checkCurrent performs the checks every object operation starts with.
func checkCurrent(c *CompoundContext) uint32 {
	switch {
	case !c.cur.valid():
		return types.NFS4ERR_NOFILEHANDLE
	case c.cur.xattr:
		return types.NFS4ERR_NOTSUPP
	}
	return types.NFS4_OK
}

// checkType reports the status for an object that must be of type want.
func checkType(p *position, want objstore.FileType) uint32 {
	if p.typ == want {
		return types.NFS4_OK
	}
	switch want {
	case objstore.TypeDirectory:
		if p.typ == objstore.TypeSymlink {
			return types.NFS4ERR_SYMLINK
		}
		return types.NFS4ERR_NOTDIR
	case objstore.TypeRegular:
		switch p.typ {
		case objstore.TypeDirectory:
			return types.NFS4ERR_ISDIR
		case objstore.TypeSymlink:
			return types.NFS4ERR_SYMLINK
		}
	}
	return types.NFS4ERR_INVAL
}
