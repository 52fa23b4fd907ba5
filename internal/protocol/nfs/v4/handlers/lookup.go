package handlers

import (
	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

// LOOKUP (RFC 7530 Section 16.15)
//
// In the pseudo filesystem the child is a pseudo node, or a junction whose
// lookup crosses into the root of the mounted export. Everywhere else the
// export's object store resolves the name.
func (h *Handler) opLookup(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.LookupArgs)
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
		child, found := h.PseudoFS.Child(c.cur.node, a.Name)
		if !found {
			return statusResult(types.NFS4ERR_NOENT)
		}
		if !child.IsJunction() {
			c.setCurrent(pseudoPosition(child))
			return statusResult(types.NFS4_OK)
		}

		exp := child.Export
		root, err := exp.Store.Root()
		if err != nil {
			logger.WarnCtx(c.ctx, "LOOKUP: export root unavailable",
				"export", exp.Path,
				"error", err)
			return statusResult(types.MapStoreError(err))
		}
		c.MountedOnFH.set(child.Handle())
		c.setCurrent(entryPosition(exp, root))
		logger.DebugCtx(c.ctx, "LOOKUP: crossed junction", "export", exp.Path)
		return statusResult(types.NFS4_OK)
	}

	exp := c.cur.exp
	e, err := exp.Store.Lookup(c.cur.entry, a.Name)
	if err != nil {
		return statusResult(types.MapStoreError(err))
	}
	c.setCurrent(entryPosition(exp, e))
	return statusResult(types.NFS4_OK)
}

// LOOKUPP (RFC 7530 Section 16.16)
//
// The parent of an export root is the parent of the junction the export is
// mounted on.
func (h *Handler) opLookupP(c *CompoundContext, _ any) types.Result {
	if status := checkCurrent(c); status != types.NFS4_OK {
		return statusResult(status)
	}
	if status := checkType(&c.cur, objstore.TypeDirectory); status != types.NFS4_OK {
		return statusResult(status)
	}

	if c.cur.pseudo() {
		n := c.cur.node
		if n.Parent == n {
			return statusResult(types.NFS4ERR_NOENT)
		}
		c.setCurrent(pseudoPosition(n.Parent))
		return statusResult(types.NFS4_OK)
	}

	exp := c.cur.exp
	if c.cur.entry.ID() == objstore.RootID {
		junction, found := h.PseudoFS.Junction(exp.ID)
		if !found {
			return statusResult(types.NFS4ERR_NOENT)
		}
		c.MountedOnFH.reset()
		c.setCurrent(pseudoPosition(junction.Parent))
		return statusResult(types.NFS4_OK)
	}

	parent, err := exp.Store.LookupParent(c.cur.entry)
	if err != nil {
		return statusResult(types.MapStoreError(err))
	}
	c.setCurrent(entryPosition(exp, parent))
	return statusResult(types.NFS4_OK)
}
