package handlers

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/internal/telemetry"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

// traceStore runs a mutating store call inside its own span.
func traceStore(c *CompoundContext, operation string, fn func() error, attrs ...attribute.KeyValue) error {
	ctx, span := telemetry.StartStoreSpan(c.ctx, operation, attrs...)
	defer span.End()

	err := fn()
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return err
}

// changeOf returns the change attribute of a directory, or zero when it
// cannot be read.
func changeOf(p *position) uint64 {
	a, err := p.exp.Store.GetAttr(p.entry)
	if err != nil {
		return 0
	}
	return a.Change
}

// REMOVE (RFC 7530 Section 16.26)
func (h *Handler) opRemove(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.RemoveArgs)
	if !ok {
		return badArgs()
	}
	if status := checkCurrent(c); status != types.NFS4_OK {
		return statusResult(status)
	}
	if status := checkType(&c.cur, objstore.TypeDirectory); status != types.NFS4_OK {
		return statusResult(status)
	}
	if c.cur.pseudo() || c.cur.exp.ReadOnly {
		return statusResult(types.NFS4ERR_ROFS)
	}
	if err := h.State.CheckGrace(); err != nil {
		return stateResult(err)
	}
	if status := types.ValidateComponentName(a.Target); status != types.NFS4_OK {
		return statusResult(status)
	}

	before := changeOf(&c.cur)
	err := traceStore(c, "remove", func() error {
		return c.cur.exp.Store.Remove(c.cur.entry, a.Target)
	}, telemetry.NFSExport(c.cur.exp.Path), telemetry.NFSFilename(a.Target))
	if err != nil {
		return statusResult(types.MapStoreError(err))
	}
	logger.DebugCtx(c.ctx, "REMOVE", "export", c.cur.exp.Path, "name", a.Target)

	return types.Result{
		Status: types.NFS4_OK,
		Body: &types.ChangeInfoRes{CInfo: types.ChangeInfo{
			Before: before,
			After:  changeOf(&c.cur),
		}},
	}
}

// LINK (RFC 7530 Section 16.9). The saved filehandle is the source object,
// the current filehandle the target directory.
func (h *Handler) opLink(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.LinkArgs)
	if !ok {
		return badArgs()
	}
	if status := checkCurrent(c); status != types.NFS4_OK {
		return statusResult(status)
	}
	if !c.saved.valid() {
		return statusResult(types.NFS4ERR_NOFILEHANDLE)
	}
	if c.saved.xattr {
		return statusResult(types.NFS4ERR_NOTSUPP)
	}
	if status := checkType(&c.cur, objstore.TypeDirectory); status != types.NFS4_OK {
		return statusResult(status)
	}
	if c.saved.isDir() {
		return statusResult(types.NFS4ERR_ISDIR)
	}
	if status := types.ValidateComponentName(a.NewName); status != types.NFS4_OK {
		return statusResult(status)
	}
	if c.cur.pseudo() || c.cur.exp.ReadOnly {
		return statusResult(types.NFS4ERR_ROFS)
	}
	if c.cur.exp != c.saved.exp {
		return statusResult(types.NFS4ERR_XDEV)
	}

	before := changeOf(&c.cur)
	err := traceStore(c, "link", func() error {
		return c.cur.exp.Store.Link(c.saved.entry, c.cur.entry, a.NewName)
	}, telemetry.NFSExport(c.cur.exp.Path), telemetry.NFSFilename(a.NewName))
	if err != nil {
		return statusResult(types.MapStoreError(err))
	}

	return types.Result{
		Status: types.NFS4_OK,
		Body: &types.ChangeInfoRes{CInfo: types.ChangeInfo{
			Before: before,
			After:  changeOf(&c.cur),
		}},
	}
}

// RENAME (RFC 7530 Section 16.28). The saved filehandle is the source
// directory, the current filehandle the target directory.
func (h *Handler) opRename(c *CompoundContext, args any) types.Result {
	a, ok := args.(*types.RenameArgs)
	if !ok {
		return badArgs()
	}
	if status := checkCurrent(c); status != types.NFS4_OK {
		return statusResult(status)
	}
	if !c.saved.valid() {
		return statusResult(types.NFS4ERR_NOFILEHANDLE)
	}
	if c.saved.xattr {
		return statusResult(types.NFS4ERR_NOTSUPP)
	}
	if status := checkType(&c.saved, objstore.TypeDirectory); status != types.NFS4_OK {
		return statusResult(status)
	}
	if status := checkType(&c.cur, objstore.TypeDirectory); status != types.NFS4_OK {
		return statusResult(status)
	}
	if c.cur.pseudo() || c.saved.pseudo() || c.cur.exp.ReadOnly || c.saved.exp.ReadOnly {
		return statusResult(types.NFS4ERR_ROFS)
	}
	if err := h.State.CheckGrace(); err != nil {
		return stateResult(err)
	}
	if c.cur.exp != c.saved.exp {
		return statusResult(types.NFS4ERR_XDEV)
	}
	if status := types.ValidateComponentName(a.OldName); status != types.NFS4_OK {
		return statusResult(status)
	}
	if status := types.ValidateComponentName(a.NewName); status != types.NFS4_OK {
		return statusResult(status)
	}

	srcBefore, dstBefore := changeOf(&c.saved), changeOf(&c.cur)

	if c.cur.entry == c.saved.entry && a.OldName == a.NewName {
		e, err := c.cur.exp.Store.Lookup(c.cur.entry, a.OldName)
		if err != nil {
			return statusResult(types.MapStoreError(err))
		}
		putEntry(e)
		return types.Result{
			Status: types.NFS4_OK,
			Body: &types.RenameRes{
				Source: types.ChangeInfo{Before: srcBefore, After: srcBefore},
				Target: types.ChangeInfo{Before: dstBefore, After: dstBefore},
			},
		}
	}

	err := traceStore(c, "rename", func() error {
		return c.cur.exp.Store.Rename(c.saved.entry, a.OldName, c.cur.entry, a.NewName)
	}, telemetry.NFSExport(c.cur.exp.Path), telemetry.NFSFilename(a.OldName))
	if err != nil {
		return statusResult(types.MapStoreError(err))
	}

	return types.Result{
		Status: types.NFS4_OK,
		Body: &types.RenameRes{
			Source: types.ChangeInfo{Before: srcBefore, After: changeOf(&c.saved)},
			Target: types.ChangeInfo{Before: dstBefore, After: changeOf(&c.cur)},
		},
	}
}
