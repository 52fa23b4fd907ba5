package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/state"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/pkg/bufpool"
	"github.com/marmos91/nfs4d/pkg/export"
	"github.com/marmos91/nfs4d/pkg/filehandle"
	"github.com/marmos91/nfs4d/pkg/objstore"
	"github.com/marmos91/nfs4d/pkg/objstore/memory"
)

// Export IDs of the test fixture.
const (
	dataExportID    = 1
	roExportID      = 2
	legacyExportID  = 3
	scratchExportID = 4
)

var rootCreds = types.Credentials{Flavor: types.AUTH_SYS}

// fixture is a handler over three exports:
//
//	/data         read-write, with dir/, dir/file, dir/link -> file, other/
//	/pub/ro       read-only, with readme
//	/legacy       NFSv4 access disabled
//	/scratch      read-write, with tmp/
type fixture struct {
	h *Handler

	data    *objstore.Cache
	ro      *objstore.Cache
	legacy  *objstore.Cache
	scratch *objstore.Cache

	dataExp    *export.Export
	roExp      *export.Export
	legacyExp  *export.Export
	scratchExp *export.Export

	ids map[string]uint64
}

type fixtureOptions struct {
	grace     time.Duration
	maxMinor  uint32
	maxSlots  uint32
	leaseTime time.Duration
}

func newCache(t *testing.T, readOnly bool) *objstore.Cache {
	t.Helper()
	c, err := objstore.NewCache(memory.New(), objstore.CacheConfig{ReadOnly: readOnly})
	require.NoError(t, err)
	return c
}

func newFixture(t *testing.T, opts ...fixtureOptions) *fixture {
	t.Helper()
	o := fixtureOptions{maxMinor: types.NFS4_MINOR_VERSION_1}
	if len(opts) > 0 {
		o = opts[0]
	}

	f := &fixture{
		data:    newCache(t, false),
		ro:      newCache(t, true),
		legacy:  newCache(t, false),
		scratch: newCache(t, false),
		ids:     make(map[string]uint64),
	}

	mk := func(c *objstore.Cache, key, path string, typ objstore.FileType, target string) {
		id, err := c.CreatePath(path, typ, 0o644, target)
		require.NoError(t, err)
		f.ids[key] = id
	}
	mk(f.data, "dir", "dir", objstore.TypeDirectory, "")
	mk(f.data, "file", "dir/file", objstore.TypeRegular, "")
	mk(f.data, "link", "dir/link", objstore.TypeSymlink, "file")
	mk(f.data, "other", "other", objstore.TypeDirectory, "")
	mk(f.ro, "readme", "readme", objstore.TypeRegular, "")
	mk(f.scratch, "tmp", "tmp", objstore.TypeDirectory, "")

	f.dataExp = &export.Export{ID: dataExportID, Path: "/data", NFSv4: true, Store: f.data}
	f.roExp = &export.Export{ID: roExportID, Path: "/pub/ro", NFSv4: true, ReadOnly: true, Store: f.ro}
	f.legacyExp = &export.Export{ID: legacyExportID, Path: "/legacy", NFSv4: false, Store: f.legacy}
	f.scratchExp = &export.Export{ID: scratchExportID, Path: "/scratch", NFSv4: true, Store: f.scratch}

	table, err := export.NewTable(f.dataExp, f.roExp, f.legacyExp, f.scratchExp)
	require.NoError(t, err)

	mgr := state.NewManager(state.Config{
		LeaseTime:   o.leaseTime,
		GracePeriod: o.grace,
		MaxSlots:    o.maxSlots,
	})
	require.NoError(t, mgr.Start(context.Background()))
	t.Cleanup(mgr.Shutdown)

	h, err := NewHandler(Config{
		Exports:         table,
		State:           mgr,
		MaxMinorVersion: o.maxMinor,
	})
	require.NoError(t, err)
	f.h = h
	return f
}

// handle returns the wire filehandle of a fixture object of /data.
func (f *fixture) handle(key string) []byte {
	return filehandle.Regular(dataExportID, f.ids[key]).Encode()
}

func (f *fixture) handleIn(exp *export.Export, key string) []byte {
	return filehandle.Regular(exp.ID, f.ids[key]).Encode()
}

func (f *fixture) rootHandle(exp *export.Export) []byte {
	return filehandle.Regular(exp.ID, objstore.RootID).Encode()
}

// live returns the number of referenced entries across all stores.
func (f *fixture) live() int {
	n := 0
	for _, c := range []*objstore.Cache{f.data, f.ro, f.legacy, f.scratch} {
		n += c.Stats().Live
	}
	return n
}

// run executes a COMPOUND and registers the response for freeing.
func (f *fixture) run(t *testing.T, minor uint32, ops ...types.Op) *types.Compound4Response {
	t.Helper()
	return f.runReq(t, &Request{Creds: rootCreds, ClientAddr: "127.0.0.1:700"}, minor, ops...)
}

func (f *fixture) runReq(t *testing.T, req *Request, minor uint32, ops ...types.Op) *types.Compound4Response {
	t.Helper()
	resp := f.h.ProcessCompound(context.Background(), &types.Compound4Args{
		Tag:          []byte("test"),
		MinorVersion: minor,
		Ops:          ops,
	}, req)
	require.NotNil(t, resp)
	t.Cleanup(resp.Free)
	return resp
}

// checkNoLeaks asserts that no entry references or pooled buffers remain
// once resps are freed.
func checkNoLeaks(t *testing.T, f *fixture, baseline int64, resps ...*types.Compound4Response) {
	t.Helper()
	for _, r := range resps {
		r.Free()
	}
	require.Zero(t, f.live(), "entry references leaked")
	require.Equal(t, baseline, bufpool.Outstanding(), "pooled buffers leaked")
}

func statuses(resp *types.Compound4Response) []uint32 {
	out := make([]uint32, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = r.Status
	}
	return out
}

// ============================================================================
// Operation builders
// ============================================================================

func op(code uint32, args any) types.Op { return types.Op{OpCode: code, Args: args} }

func putRootFH() types.Op          { return op(types.OP_PUTROOTFH, nil) }
func putPubFH() types.Op           { return op(types.OP_PUTPUBFH, nil) }
func putFH(fh []byte) types.Op     { return op(types.OP_PUTFH, &types.PutFHArgs{Handle: fh}) }
func getFH() types.Op              { return op(types.OP_GETFH, nil) }
func saveFH() types.Op             { return op(types.OP_SAVEFH, nil) }
func restoreFH() types.Op          { return op(types.OP_RESTOREFH, nil) }
func lookup(name string) types.Op  { return op(types.OP_LOOKUP, &types.LookupArgs{Name: name}) }
func lookupP() types.Op            { return op(types.OP_LOOKUPP, nil) }
func readlink() types.Op           { return op(types.OP_READLINK, nil) }
func remove(name string) types.Op  { return op(types.OP_REMOVE, &types.RemoveArgs{Target: name}) }
func link(name string) types.Op    { return op(types.OP_LINK, &types.LinkArgs{NewName: name}) }
func secinfo(name string) types.Op { return op(types.OP_SECINFO, &types.SecInfoArgs{Name: name}) }
func commit() types.Op             { return op(types.OP_COMMIT, &types.CommitArgs{}) }

func rename(from, to string) types.Op {
	return op(types.OP_RENAME, &types.RenameArgs{OldName: from, NewName: to})
}

func getAttr(bits ...uint32) types.Op {
	var mask []uint32
	for _, b := range bits {
		for int(b/32) >= len(mask) {
			mask = append(mask, 0)
		}
		mask[b/32] |= 1 << (b % 32)
	}
	return op(types.OP_GETATTR, &types.GetAttrArgs{Request: mask})
}

func sequence(id types.SessionID, seq, slot uint32) types.Op {
	return op(types.OP_SEQUENCE, &types.SequenceArgs{SessionID: id, SequenceID: seq, SlotID: slot})
}

// ============================================================================
// Session helpers
// ============================================================================

func testVerifier(b byte) types.Verifier {
	var v types.Verifier
	v[0] = b
	return v
}

// openSession runs EXCHANGE_ID and CREATE_SESSION through the engine and
// returns the client and session IDs.
func (f *fixture) openSession(t *testing.T, owner string) (uint64, types.SessionID) {
	t.Helper()

	resp := f.run(t, types.NFS4_MINOR_VERSION_1, op(types.OP_EXCHANGE_ID, &types.ExchangeIDArgs{
		OwnerID:  []byte(owner),
		Verifier: testVerifier(1),
	}))
	require.Equal(t, uint32(types.NFS4_OK), resp.Status)
	eid := resp.Results[0].Body.(*types.ExchangeIDRes)

	resp = f.run(t, types.NFS4_MINOR_VERSION_1, op(types.OP_CREATE_SESSION, &types.CreateSessionArgs{
		ClientID: eid.ClientID,
		Sequence: eid.SequenceID,
		ForeChannel: types.ChannelAttrs{
			MaxRequests:     4,
			MaxOperations:   8,
			MaxRequestSize:  1 << 16,
			MaxResponseSize: 1 << 16,
		},
	}))
	require.Equal(t, uint32(types.NFS4_OK), resp.Status)
	cs := resp.Results[0].Body.(*types.CreateSessionRes)
	return eid.ClientID, cs.SessionID
}
