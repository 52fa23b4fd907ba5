package handlers

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/attrs"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/pkg/bufpool"
)

// spyOn replaces the handler of opcode in the dispatch table of minor and
// returns a counter of its invocations. The original is restored on cleanup.
func spyOn(t *testing.T, minor, opcode uint32) *int {
	t.Helper()
	d := lookupOp(minor, opcode)
	require.Equal(t, opcode, d.OpCode)

	orig := d.Handle
	calls := new(int)
	d.Handle = func(h *Handler, c *CompoundContext, args any) types.Result {
		*calls++
		return orig(h, c, args)
	}
	t.Cleanup(func() { d.Handle = orig })
	return calls
}

// ============================================================================
// Execution
// ============================================================================

func TestProcessCompound_AllSucceed(t *testing.T) {
	f := newFixture(t)
	baseline := bufpool.Outstanding()

	resp := f.run(t, types.NFS4_MINOR_VERSION_0,
		putFH(f.handle("dir")),
		lookup("file"),
		getFH(),
		getAttr(attrs.FATTR4_TYPE, attrs.FATTR4_FILEID),
	)

	require.Len(t, resp.Results, 4)
	assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
	assert.Equal(t, []byte("test"), resp.Tag)
	for i, want := range []uint32{types.OP_PUTFH, types.OP_LOOKUP, types.OP_GETFH, types.OP_GETATTR} {
		assert.Equal(t, want, resp.Results[i].OpCode, "op %d", i)
		assert.Equal(t, uint32(types.NFS4_OK), resp.Results[i].Status, "op %d", i)
	}

	fh := resp.Results[2].Body.(*types.GetFHRes)
	assert.Equal(t, f.handle("file"), fh.Handle)

	checkNoLeaks(t, f, baseline, resp)
}

func TestProcessCompound_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	calls := spyOn(t, types.NFS4_MINOR_VERSION_0, types.OP_GETATTR)
	baseline := bufpool.Outstanding()

	resp := f.run(t, types.NFS4_MINOR_VERSION_0,
		putFH(f.handle("dir")),
		lookup("missing"),
		getAttr(attrs.FATTR4_TYPE),
		getFH(),
	)

	assert.Equal(t, []uint32{types.NFS4_OK, types.NFS4ERR_NOENT}, statuses(resp))
	assert.Equal(t, uint32(types.NFS4ERR_NOENT), resp.Status)
	assert.Zero(t, *calls, "operations after the failure must not run")

	checkNoLeaks(t, f, baseline, resp)
}

func TestProcessCompound_FailureAtEveryPosition(t *testing.T) {
	f := newFixture(t)

	for k := 0; k < 5; k++ {
		ops := make([]types.Op, 0, 6)
		ops = append(ops, putFH(f.handle("dir")))
		for i := 0; i < k; i++ {
			ops = append(ops, getFH())
		}
		ops = append(ops, lookup("missing"), getFH())

		resp := f.run(t, types.NFS4_MINOR_VERSION_0, ops...)
		require.Len(t, resp.Results, k+2)
		assert.Equal(t, uint32(types.NFS4ERR_NOENT), resp.Status)
		assert.Equal(t, uint32(types.OP_LOOKUP), resp.Results[k+1].OpCode)
	}
}

func TestProcessCompound_Scenarios(t *testing.T) {
	t.Run("RootAttributes", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, putRootFH(), getAttr(attrs.FATTR4_TYPE))

		require.Equal(t, []uint32{types.NFS4_OK, types.NFS4_OK}, statuses(resp))
		res := resp.Results[1].Body.(*types.GetAttrRes)
		require.Len(t, res.Vals, 4)
		assert.Equal(t, uint32(types.NF4DIR), binary.BigEndian.Uint32(res.Vals))
		assert.Equal(t, []uint32{1 << attrs.FATTR4_TYPE}, res.Mask)
	})

	t.Run("BadHandle", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, putFH([]byte{0xde, 0xad}), getAttr(attrs.FATTR4_TYPE))

		require.Len(t, resp.Results, 1)
		assert.Equal(t, uint32(types.NFS4ERR_BADHANDLE), resp.Status)
		assert.Equal(t, uint32(types.OP_PUTFH), resp.Results[0].OpCode)
	})

	t.Run("EmptyRequest", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_0)

		assert.Empty(t, resp.Results)
		assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
	})

	t.Run("TooManyOperations", func(t *testing.T) {
		f := newFixture(t)
		ops := make([]types.Op, types.MaxCompoundOps+1)
		for i := range ops {
			ops[i] = putRootFH()
		}
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, ops...)

		assert.Empty(t, resp.Results)
		assert.Equal(t, uint32(types.NFS4ERR_RESOURCE), resp.Status)
	})

	t.Run("MaximumOperations", func(t *testing.T) {
		f := newFixture(t)
		ops := make([]types.Op, types.MaxCompoundOps)
		for i := range ops {
			ops[i] = putRootFH()
		}
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, ops...)

		assert.Len(t, resp.Results, types.MaxCompoundOps)
		assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
	})
}

// ============================================================================
// Envelope
// ============================================================================

func TestProcessCompound_MinorVersion(t *testing.T) {
	tests := []struct {
		name     string
		maxMinor uint32
		minor    uint32
		want     uint32
	}{
		{"V40Accepted", types.NFS4_MINOR_VERSION_1, types.NFS4_MINOR_VERSION_0, types.NFS4_OK},
		{"V42Rejected", types.NFS4_MINOR_VERSION_1, 2, types.NFS4ERR_MINOR_VERS_MISMATCH},
		{"V41DisabledByConfig", types.NFS4_MINOR_VERSION_0, types.NFS4_MINOR_VERSION_1, types.NFS4ERR_MINOR_VERS_MISMATCH},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fixtureOptions{maxMinor: tt.maxMinor})
			resp := f.run(t, tt.minor, putRootFH())

			assert.Equal(t, tt.want, resp.Status)
			if tt.want != types.NFS4_OK {
				assert.Empty(t, resp.Results)
			}
		})
	}
}

func TestProcessCompound_ExportWithoutNFSv4(t *testing.T) {
	f := newFixture(t)
	calls := spyOn(t, types.NFS4_MINOR_VERSION_0, types.OP_PUTROOTFH)

	resp := f.runReq(t, &Request{Creds: rootCreds, Export: f.legacyExp},
		types.NFS4_MINOR_VERSION_0, putRootFH(), getFH())

	require.Len(t, resp.Results, 1)
	assert.Equal(t, uint32(types.NFS4ERR_PERM), resp.Status)
	assert.Equal(t, uint32(types.OP_PUTROOTFH), resp.Results[0].OpCode)
	assert.Zero(t, *calls)
}

func TestProcessCompound_ExchangeIDNotAlone(t *testing.T) {
	f := newFixture(t)
	resp := f.run(t, types.NFS4_MINOR_VERSION_1,
		op(types.OP_EXCHANGE_ID, &types.ExchangeIDArgs{OwnerID: []byte("c1")}),
		putRootFH())

	require.Len(t, resp.Results, 1)
	assert.Equal(t, uint32(types.NFS4ERR_NOT_ONLY_OP), resp.Status)
	assert.Equal(t, uint32(types.OP_EXCHANGE_ID), resp.Results[0].OpCode)
	assert.Zero(t, f.h.State.ClientCount())
}

func TestProcessCompound_OperationNotInSession(t *testing.T) {
	f := newFixture(t)
	resp := f.run(t, types.NFS4_MINOR_VERSION_1, putRootFH(), getFH())

	require.Len(t, resp.Results, 1)
	assert.Equal(t, uint32(types.NFS4ERR_OP_NOT_IN_SESSION), resp.Status)
	assert.Equal(t, uint32(types.OP_PUTROOTFH), resp.Results[0].OpCode)
}

// ============================================================================
// Opcode dispatch
// ============================================================================

func TestProcessCompound_IllegalOpcodes(t *testing.T) {
	tests := []struct {
		name   string
		minor  uint32
		opcode uint32
	}{
		{"BelowAccess", types.NFS4_MINOR_VERSION_0, 1},
		{"PastLastV40", types.NFS4_MINOR_VERSION_0, types.OP_LAST_V40 + 1},
		{"FarOutOfRange", types.NFS4_MINOR_VERSION_0, 9999},
		{"PastLastV41", types.NFS4_MINOR_VERSION_1, types.OP_LAST_V41 + 1},
		{"DisabledInV41", types.NFS4_MINOR_VERSION_1, types.OP_OPEN_CONFIRM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp := f.run(t, tt.minor, op(tt.opcode, nil), getFH())

			require.Len(t, resp.Results, 1)
			assert.Equal(t, uint32(types.OP_ILLEGAL), resp.Results[0].OpCode)
			assert.Equal(t, uint32(types.NFS4ERR_OP_ILLEGAL), resp.Status)
		})
	}
}

func TestProcessCompound_UnimplementedOperations(t *testing.T) {
	t.Run("V40", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, putRootFH(), op(types.OP_READ, nil))

		assert.Equal(t, []uint32{types.NFS4_OK, types.NFS4ERR_NOTSUPP}, statuses(resp))
		assert.Equal(t, uint32(types.OP_READ), resp.Results[1].OpCode)
	})

	t.Run("V41ExtensionOperation", func(t *testing.T) {
		f := newFixture(t)
		_, sid := f.openSession(t, "notsupp")
		resp := f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 1, 0), op(types.OP_LAYOUTGET, nil))

		assert.Equal(t, []uint32{types.NFS4_OK, types.NFS4ERR_NOTSUPP}, statuses(resp))
	})

	t.Run("SetClientIDInV41", func(t *testing.T) {
		f := newFixture(t)
		_, sid := f.openSession(t, "legacy-op")
		resp := f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 1, 0),
			op(types.OP_SETCLIENTID, &types.SetClientIDArgs{ID: []byte("x")}))

		assert.Equal(t, []uint32{types.NFS4_OK, types.NFS4ERR_NOTSUPP}, statuses(resp))
	})

	t.Run("SequenceInV40", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, op(types.OP_SEQUENCE, &types.SequenceArgs{}))

		assert.Equal(t, uint32(types.NFS4ERR_OP_ILLEGAL), resp.Status)
	})
}

// ============================================================================
// Sessions
// ============================================================================

func TestProcessCompound_SequenceRetryAnsweredFromCache(t *testing.T) {
	f := newFixture(t)
	_, sid := f.openSession(t, "replay")
	calls := spyOn(t, types.NFS4_MINOR_VERSION_1, types.OP_GETATTR)

	first := f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 1, 0), putRootFH(), getFH())
	require.Equal(t, []uint32{types.NFS4_OK, types.NFS4_OK, types.NFS4_OK}, statuses(first))

	retry := f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 1, 0), getAttr(attrs.FATTR4_TYPE))

	assert.Zero(t, *calls, "nothing after SEQUENCE may run on a retry")
	assert.Equal(t, first.Status, retry.Status)
	require.Len(t, retry.Results, len(first.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].OpCode, retry.Results[i].OpCode)
		assert.Equal(t, first.Results[i].Status, retry.Results[i].Status)
	}
	assert.Equal(t,
		first.Results[2].Body.(*types.GetFHRes).Handle,
		retry.Results[2].Body.(*types.GetFHRes).Handle)

	// The next sequence ID executes normally.
	next := f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 2, 0), putRootFH(), getAttr(attrs.FATTR4_TYPE))
	assert.Equal(t, uint32(types.NFS4_OK), next.Status)
	assert.Equal(t, 1, *calls)
}

func TestProcessCompound_SequenceErrors(t *testing.T) {
	f := newFixture(t)
	_, sid := f.openSession(t, "seq-errors")

	tests := []struct {
		name string
		ops  []types.Op
		want uint32
	}{
		{"UnknownSession", []types.Op{sequence(types.SessionID{0xff}, 1, 0)}, types.NFS4ERR_BADSESSION},
		{"SlotOutOfRange", []types.Op{sequence(sid, 1, 4)}, types.NFS4ERR_BADSLOT},
		{"Misordered", []types.Op{sequence(sid, 5, 0)}, types.NFS4ERR_SEQ_MISORDERED},
		{"RetryWithoutCache", []types.Op{sequence(sid, 0, 1)}, types.NFS4ERR_RETRY_UNCACHED_REP},
		{"NotFirst", []types.Op{sequence(sid, 1, 2), sequence(sid, 1, 3)}, types.NFS4ERR_SEQUENCE_POS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.run(t, types.NFS4_MINOR_VERSION_1, tt.ops...)
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Results, len(tt.ops))
		})
	}
}

func TestProcessCompound_SessionOperationLimit(t *testing.T) {
	f := newFixture(t)
	_, sid := f.openSession(t, "max-ops")

	ops := []types.Op{sequence(sid, 1, 0)}
	for i := 0; i < 9; i++ {
		ops = append(ops, putRootFH())
	}
	resp := f.run(t, types.NFS4_MINOR_VERSION_1, ops...)

	require.Len(t, resp.Results, 9)
	assert.Equal(t, uint32(types.NFS4ERR_TOO_MANY_OPS), resp.Status)
	assert.Equal(t, uint32(types.OP_PUTROOTFH), resp.Results[8].OpCode)

	// The failed reply is cached like any other.
	retry := f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 1, 0))
	assert.Equal(t, uint32(types.NFS4ERR_TOO_MANY_OPS), retry.Status)
	assert.Len(t, retry.Results, 9)
}

// ============================================================================
// Resource accounting
// ============================================================================

func TestProcessCompound_FreeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	baseline := bufpool.Outstanding()

	resp := f.run(t, types.NFS4_MINOR_VERSION_0,
		putFH(f.handle("link")),
		readlink(),
		getFH(),
		getAttr(attrs.FATTR4_TYPE, attrs.FATTR4_FILEHANDLE),
	)
	require.Equal(t, uint32(types.NFS4_OK), resp.Status)
	assert.Greater(t, bufpool.Outstanding(), baseline)

	resp.Free()
	assert.True(t, resp.Freed())
	assert.Equal(t, baseline, bufpool.Outstanding())

	require.NotPanics(t, resp.Free)
	assert.Equal(t, baseline, bufpool.Outstanding())
}

func TestProcessCompound_EntryReferencesBalanced(t *testing.T) {
	tests := []struct {
		name string
		ops  func(f *fixture) []types.Op
	}{
		{"SaveRestoreDifferentObjects", func(f *fixture) []types.Op {
			return []types.Op{putFH(f.handle("file")), saveFH(), putFH(f.handle("dir")), restoreFH(), getFH()}
		}},
		{"SaveRestoreSameObject", func(f *fixture) []types.Op {
			return []types.Op{putFH(f.handle("dir")), saveFH(), restoreFH(), restoreFH()}
		}},
		{"ReplaceCurrentRepeatedly", func(f *fixture) []types.Op {
			return []types.Op{putFH(f.handle("dir")), putFH(f.handle("file")), putFH(f.handle("other")), lookupP()}
		}},
		{"JunctionRoundTrip", func(f *fixture) []types.Op {
			return []types.Op{putRootFH(), lookup("data"), saveFH(), lookup("dir"), lookupP(), lookupP(), restoreFH()}
		}},
		{"FailureWithSavedEntry", func(f *fixture) []types.Op {
			return []types.Op{putFH(f.handle("dir")), saveFH(), lookup("file"), lookup("nope")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			baseline := bufpool.Outstanding()

			resp := f.run(t, types.NFS4_MINOR_VERSION_0, tt.ops(f)...)
			require.NotEmpty(t, resp.Results)

			checkNoLeaks(t, f, baseline, resp)
		})
	}
}

func TestProcessCompound_Concurrent(t *testing.T) {
	f := newFixture(t)
	baseline := bufpool.Outstanding()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				resp := f.h.ProcessCompound(context.Background(), &types.Compound4Args{
					MinorVersion: types.NFS4_MINOR_VERSION_0,
					Ops: []types.Op{
						putFH(f.handle("dir")),
						saveFH(),
						lookup("file"),
						getAttr(attrs.FATTR4_FILEID),
						restoreFH(),
						getFH(),
					},
				}, &Request{Creds: rootCreds})
				if resp.Status != types.NFS4_OK {
					t.Errorf("unexpected status %s", types.StatusName(resp.Status))
				}
				resp.Free()
			}
		}()
	}
	wg.Wait()

	checkNoLeaks(t, f, baseline)
}

func TestProcessCompound_RecordsOpStats(t *testing.T) {
	f := newFixture(t)
	f.run(t, types.NFS4_MINOR_VERSION_0, putRootFH(), lookup("missing"))

	got := make(map[string]OpStat)
	for _, s := range f.h.Stats().Snapshot() {
		got[s.Op] = s
	}
	assert.Equal(t, uint64(1), got["PUTROOTFH"].Calls)
	assert.Zero(t, got["PUTROOTFH"].Errors)
	assert.Equal(t, uint64(1), got["LOOKUP"].Calls)
	assert.Equal(t, uint64(1), got["LOOKUP"].Errors)
}
