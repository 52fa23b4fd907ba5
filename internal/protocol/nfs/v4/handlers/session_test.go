package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

func exchangeID(owner string, verf types.Verifier, flags uint32) types.Op {
	return op(types.OP_EXCHANGE_ID, &types.ExchangeIDArgs{OwnerID: []byte(owner), Verifier: verf, Flags: flags})
}

func createSession(clientID uint64, seq uint32) types.Op {
	return op(types.OP_CREATE_SESSION, &types.CreateSessionArgs{
		ClientID: clientID,
		Sequence: seq,
		ForeChannel: types.ChannelAttrs{
			MaxRequests:     4,
			MaxOperations:   8,
			MaxRequestSize:  1 << 16,
			MaxResponseSize: 1 << 16,
		},
	})
}

func destroySession(id types.SessionID) types.Op {
	return op(types.OP_DESTROY_SESSION, &types.DestroySessionArgs{SessionID: id})
}

func destroyClientID(id uint64) types.Op {
	return op(types.OP_DESTROY_CLIENTID, &types.DestroyClientIDArgs{ClientID: id})
}

func reclaimComplete(oneFS bool) types.Op {
	return op(types.OP_RECLAIM_COMPLETE, &types.ReclaimCompleteArgs{OneFS: oneFS})
}

// ============================================================================
// EXCHANGE_ID
// ============================================================================

func TestExchangeID(t *testing.T) {
	t.Run("NewClient", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_1, exchangeID("owner-1", testVerifier(1), 0))
		require.Equal(t, uint32(types.NFS4_OK), resp.Status)

		res := resp.Results[0].Body.(*types.ExchangeIDRes)
		id := f.h.State.Identity()
		assert.NotZero(t, res.ClientID)
		assert.Equal(t, uint32(1), res.SequenceID)
		assert.NotZero(t, res.Flags&types.EXCHGID4_FLAG_USE_NON_PNFS)
		assert.Zero(t, res.Flags&types.EXCHGID4_FLAG_CONFIRMED_R)
		assert.Equal(t, uint32(types.SP4_NONE), res.StateProtect)
		assert.Equal(t, id.OwnerMajor, res.OwnerMajor)
		assert.Equal(t, id.Scope, res.Scope)
	})

	t.Run("ConfirmedClientReturned", func(t *testing.T) {
		f := newFixture(t)
		clientID, _ := f.openSession(t, "owner-2")

		resp := f.run(t, types.NFS4_MINOR_VERSION_1, exchangeID("owner-2", testVerifier(1), 0))
		require.Equal(t, uint32(types.NFS4_OK), resp.Status)
		res := resp.Results[0].Body.(*types.ExchangeIDRes)
		assert.Equal(t, clientID, res.ClientID)
		assert.NotZero(t, res.Flags&types.EXCHGID4_FLAG_CONFIRMED_R)
	})

	t.Run("RestartedClient", func(t *testing.T) {
		f := newFixture(t)
		clientID, _ := f.openSession(t, "owner-3")

		resp := f.run(t, types.NFS4_MINOR_VERSION_1, exchangeID("owner-3", testVerifier(2), 0))
		require.Equal(t, uint32(types.NFS4_OK), resp.Status)
		assert.NotEqual(t, clientID, resp.Results[0].Body.(*types.ExchangeIDRes).ClientID)
	})

	t.Run("OtherPrincipalWhileLeaseLive", func(t *testing.T) {
		f := newFixture(t)
		f.openSession(t, "owner-4")

		other := &Request{Creds: types.Credentials{Flavor: types.AUTH_SYS, UID: 1000}}
		resp := f.runReq(t, other, types.NFS4_MINOR_VERSION_1, exchangeID("owner-4", testVerifier(1), 0))
		assert.Equal(t, uint32(types.NFS4ERR_CLID_INUSE), resp.Status)
	})

	t.Run("UpdateWithoutRecord", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_1,
			exchangeID("owner-5", testVerifier(1), types.EXCHGID4_FLAG_UPD_CONFIRMED_REC_A))
		assert.Equal(t, uint32(types.NFS4ERR_NOENT), resp.Status)
	})

	t.Run("UnknownFlags", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_1, exchangeID("owner-6", testVerifier(1), 0x80000000))
		assert.Equal(t, uint32(types.NFS4ERR_INVAL), resp.Status)
	})
}

// ============================================================================
// CREATE_SESSION
// ============================================================================

func TestCreateSession(t *testing.T) {
	exchange := func(t *testing.T, f *fixture, owner string) *types.ExchangeIDRes {
		t.Helper()
		resp := f.run(t, types.NFS4_MINOR_VERSION_1, exchangeID(owner, testVerifier(1), 0))
		require.Equal(t, uint32(types.NFS4_OK), resp.Status)
		return resp.Results[0].Body.(*types.ExchangeIDRes)
	}

	t.Run("NegotiatesChannel", func(t *testing.T) {
		f := newFixture(t)
		eid := exchange(t, f, "cs-1")

		resp := f.run(t, types.NFS4_MINOR_VERSION_1, createSession(eid.ClientID, eid.SequenceID))
		require.Equal(t, uint32(types.NFS4_OK), resp.Status)

		res := resp.Results[0].Body.(*types.CreateSessionRes)
		assert.Equal(t, eid.SequenceID, res.Sequence)
		assert.Equal(t, uint32(4), res.ForeChannel.MaxRequests)
		assert.Equal(t, uint32(8), res.ForeChannel.MaxOperations)
		assert.NotNil(t, f.h.State.GetSession(res.SessionID))
		assert.True(t, f.h.State.GetClient(eid.ClientID).Confirmed())
	})

	t.Run("RetransmissionReplayed", func(t *testing.T) {
		f := newFixture(t)
		eid := exchange(t, f, "cs-2")

		first := f.run(t, types.NFS4_MINOR_VERSION_1, createSession(eid.ClientID, eid.SequenceID))
		require.Equal(t, uint32(types.NFS4_OK), first.Status)
		retry := f.run(t, types.NFS4_MINOR_VERSION_1, createSession(eid.ClientID, eid.SequenceID))
		require.Equal(t, uint32(types.NFS4_OK), retry.Status)

		assert.Equal(t,
			first.Results[0].Body.(*types.CreateSessionRes).SessionID,
			retry.Results[0].Body.(*types.CreateSessionRes).SessionID)
		assert.Equal(t, 1, f.h.State.SessionCount())
	})

	t.Run("Misordered", func(t *testing.T) {
		f := newFixture(t)
		eid := exchange(t, f, "cs-3")
		resp := f.run(t, types.NFS4_MINOR_VERSION_1, createSession(eid.ClientID, eid.SequenceID+5))
		assert.Equal(t, uint32(types.NFS4ERR_SEQ_MISORDERED), resp.Status)
	})

	t.Run("UnknownClient", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_1, createSession(0x1234, 1))
		assert.Equal(t, uint32(types.NFS4ERR_STALE_CLIENTID), resp.Status)
	})

	t.Run("FailureDoesNotConsumeSequence", func(t *testing.T) {
		f := newFixture(t)
		eid := exchange(t, f, "cs-4")

		other := &Request{Creds: types.Credentials{Flavor: types.AUTH_SYS, UID: 1000}}
		resp := f.runReq(t, other, types.NFS4_MINOR_VERSION_1, createSession(eid.ClientID, eid.SequenceID))
		require.Equal(t, uint32(types.NFS4ERR_CLID_INUSE), resp.Status)

		resp = f.run(t, types.NFS4_MINOR_VERSION_1, createSession(eid.ClientID, eid.SequenceID))
		assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
	})

	t.Run("BehindSequence", func(t *testing.T) {
		f := newFixture(t)
		_, sid := f.openSession(t, "cs-5a")
		eid := exchange(t, f, "cs-5b")

		resp := f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 1, 0), createSession(eid.ClientID, eid.SequenceID))
		require.Equal(t, []uint32{types.NFS4_OK, types.NFS4_OK}, statuses(resp))

		// The CREATE_SESSION slot does not cache behind SEQUENCE, so
		// repeating it elsewhere is misordered rather than replayed.
		resp = f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 2, 0), createSession(eid.ClientID, eid.SequenceID))
		assert.Equal(t, []uint32{types.NFS4_OK, types.NFS4ERR_SEQ_MISORDERED}, statuses(resp))
	})

	t.Run("NotInV40", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, createSession(1, 1))
		assert.Equal(t, uint32(types.NFS4ERR_OP_ILLEGAL), resp.Status)
	})
}

// ============================================================================
// SEQUENCE
// ============================================================================

func TestSequence(t *testing.T) {
	f := newFixture(t)
	_, sid := f.openSession(t, "seq")

	resp := f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 1, 2))
	require.Equal(t, uint32(types.NFS4_OK), resp.Status)

	res := resp.Results[0].Body.(*types.SequenceRes)
	assert.Equal(t, sid, res.SessionID)
	assert.Equal(t, uint32(1), res.SequenceID)
	assert.Equal(t, uint32(2), res.SlotID)
	assert.Equal(t, uint32(3), res.HighestSlotID)
	assert.Equal(t, uint32(3), res.TargetHighestSlotID)

	t.Run("SlotsAreIndependent", func(t *testing.T) {
		resp := f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 1, 3), putRootFH())
		assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
		resp = f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 2, 2), putRootFH())
		assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
	})

	t.Run("RenewsLease", func(t *testing.T) {
		client := f.h.State.GetSession(sid).Client
		before := client.LastRenew()
		f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 2, 3))
		assert.False(t, client.LastRenew().Before(before))
	})
}

// ============================================================================
// DESTROY_SESSION, DESTROY_CLIENTID
// ============================================================================

func TestDestroySession(t *testing.T) {
	f := newFixture(t)
	clientID, sid := f.openSession(t, "destroy")

	resp := f.run(t, types.NFS4_MINOR_VERSION_1, destroyClientID(clientID))
	assert.Equal(t, uint32(types.NFS4ERR_CLIENTID_BUSY), resp.Status)

	resp = f.run(t, types.NFS4_MINOR_VERSION_1, destroySession(sid))
	require.Equal(t, uint32(types.NFS4_OK), resp.Status)
	assert.Zero(t, f.h.State.SessionCount())

	resp = f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 1, 0))
	assert.Equal(t, uint32(types.NFS4ERR_BADSESSION), resp.Status)

	resp = f.run(t, types.NFS4_MINOR_VERSION_1, destroySession(sid))
	assert.Equal(t, uint32(types.NFS4ERR_BADSESSION), resp.Status)

	resp = f.run(t, types.NFS4_MINOR_VERSION_1, destroyClientID(clientID))
	require.Equal(t, uint32(types.NFS4_OK), resp.Status)
	assert.Zero(t, f.h.State.ClientCount())

	resp = f.run(t, types.NFS4_MINOR_VERSION_1, destroyClientID(clientID))
	assert.Equal(t, uint32(types.NFS4ERR_STALE_CLIENTID), resp.Status)
}

// ============================================================================
// RECLAIM_COMPLETE
// ============================================================================

func TestReclaimComplete(t *testing.T) {
	f := newFixture(t)
	clientID, sid := f.openSession(t, "reclaimer")

	resp := f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 1, 0), reclaimComplete(true))
	assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
	assert.False(t, f.h.State.GetClient(clientID).ReclaimComplete())

	resp = f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 2, 0), reclaimComplete(false))
	assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
	assert.True(t, f.h.State.GetClient(clientID).ReclaimComplete())

	resp = f.run(t, types.NFS4_MINOR_VERSION_1, sequence(sid, 3, 0), reclaimComplete(false))
	assert.Equal(t, []uint32{types.NFS4_OK, types.NFS4ERR_COMPLETE_ALREADY}, statuses(resp))

	t.Run("WithoutSession", func(t *testing.T) {
		resp := f.run(t, types.NFS4_MINOR_VERSION_1, reclaimComplete(false))
		assert.Equal(t, uint32(types.NFS4ERR_OP_NOT_IN_SESSION), resp.Status)
	})
}
