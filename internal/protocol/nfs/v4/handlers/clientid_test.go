package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

func setClientID(id string, verf types.Verifier) types.Op {
	return op(types.OP_SETCLIENTID, &types.SetClientIDArgs{
		ID:       []byte(id),
		Verifier: verf,
		Callback: types.CallbackClient{Program: 0x40000000, NetID: "tcp", Addr: "10.0.0.7.3.1"},
	})
}

func confirmClientID(id uint64, verf types.Verifier) types.Op {
	return op(types.OP_SETCLIENTID_CONFIRM, &types.SetClientIDConfirmArgs{ClientID: id, Verifier: verf})
}

func renew(id uint64) types.Op {
	return op(types.OP_RENEW, &types.RenewArgs{ClientID: id})
}

// establishClient runs SETCLIENTID and SETCLIENTID_CONFIRM and returns the
// confirmed client ID.
func (f *fixture) establishClient(t *testing.T, id string) uint64 {
	t.Helper()
	resp := f.run(t, types.NFS4_MINOR_VERSION_0, setClientID(id, testVerifier(7)))
	require.Equal(t, uint32(types.NFS4_OK), resp.Status)
	res := resp.Results[0].Body.(*types.SetClientIDRes)

	resp = f.run(t, types.NFS4_MINOR_VERSION_0, confirmClientID(res.ClientID, res.Verifier))
	require.Equal(t, uint32(types.NFS4_OK), resp.Status)
	return res.ClientID
}

// ============================================================================
// SETCLIENTID, SETCLIENTID_CONFIRM
// ============================================================================

func TestSetClientID(t *testing.T) {
	t.Run("ConfirmFlow", func(t *testing.T) {
		f := newFixture(t)
		id := f.establishClient(t, "client-a")

		assert.NotZero(t, id)
		c := f.h.State.GetClient(id)
		require.NotNil(t, c)
		assert.True(t, c.Confirmed())
	})

	t.Run("WrongConfirmVerifier", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, setClientID("client-b", testVerifier(1)))
		require.Equal(t, uint32(types.NFS4_OK), resp.Status)
		res := resp.Results[0].Body.(*types.SetClientIDRes)

		bad := res.Verifier
		bad[0]++
		resp = f.run(t, types.NFS4_MINOR_VERSION_0, confirmClientID(res.ClientID, bad))
		assert.Equal(t, uint32(types.NFS4ERR_STALE_CLIENTID), resp.Status)
	})

	t.Run("UnknownClient", func(t *testing.T) {
		f := newFixture(t)
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, confirmClientID(0xdead, testVerifier(1)))
		assert.Equal(t, uint32(types.NFS4ERR_STALE_CLIENTID), resp.Status)
	})

	t.Run("InUseByOtherPrincipal", func(t *testing.T) {
		f := newFixture(t)
		f.establishClient(t, "shared")

		other := &Request{Creds: types.Credentials{Flavor: types.AUTH_SYS, UID: 1000, GID: 1000}}
		resp := f.runReq(t, other, types.NFS4_MINOR_VERSION_0, setClientID("shared", testVerifier(9)))

		require.Len(t, resp.Results, 1)
		assert.Equal(t, uint32(types.NFS4ERR_CLID_INUSE), resp.Status)
		inUse, ok := resp.Results[0].Body.(*types.ClientInUseRes)
		require.True(t, ok)
		assert.Equal(t, "tcp", inUse.NetID)
		assert.Equal(t, "10.0.0.7.3.1", inUse.Addr)
	})

	t.Run("RebootGetsNewClientID", func(t *testing.T) {
		f := newFixture(t)
		first := f.establishClient(t, "rebooting")

		resp := f.run(t, types.NFS4_MINOR_VERSION_0, setClientID("rebooting", testVerifier(8)))
		require.Equal(t, uint32(types.NFS4_OK), resp.Status)
		assert.NotEqual(t, first, resp.Results[0].Body.(*types.SetClientIDRes).ClientID)
	})
}

// ============================================================================
// RENEW, RELEASE_LOCKOWNER
// ============================================================================

func TestRenew(t *testing.T) {
	f := newFixture(t)
	id := f.establishClient(t, "renewer")

	t.Run("Confirmed", func(t *testing.T) {
		before := f.h.State.GetClient(id).LastRenew()
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, renew(id))
		assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
		assert.False(t, f.h.State.GetClient(id).LastRenew().Before(before))
	})

	t.Run("TwiceInOneRequest", func(t *testing.T) {
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, renew(id), renew(id), putRootFH())
		assert.Equal(t, uint32(types.NFS4_OK), resp.Status)

		resp = f.run(t, types.NFS4_MINOR_VERSION_0, renew(id))
		assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
	})

	t.Run("TwoClientsInOneRequest", func(t *testing.T) {
		other := f.establishClient(t, "renewer-2")
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, renew(id), renew(other), renew(id))
		assert.Equal(t, uint32(types.NFS4_OK), resp.Status)
	})

	t.Run("Unknown", func(t *testing.T) {
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, renew(0xbeef))
		assert.Equal(t, uint32(types.NFS4ERR_STALE_CLIENTID), resp.Status)
	})

	t.Run("Unconfirmed", func(t *testing.T) {
		resp := f.run(t, types.NFS4_MINOR_VERSION_0, setClientID("pending", testVerifier(3)))
		require.Equal(t, uint32(types.NFS4_OK), resp.Status)
		pending := resp.Results[0].Body.(*types.SetClientIDRes).ClientID

		resp = f.run(t, types.NFS4_MINOR_VERSION_0, renew(pending))
		assert.Equal(t, uint32(types.NFS4ERR_STALE_CLIENTID), resp.Status)
	})
}

func TestReleaseLockOwner(t *testing.T) {
	f := newFixture(t)
	id := f.establishClient(t, "locker")

	resp := f.run(t, types.NFS4_MINOR_VERSION_0,
		op(types.OP_RELEASE_LOCKOWNER, &types.ReleaseLockOwnerArgs{ClientID: id, Owner: []byte("owner")}))
	assert.Equal(t, uint32(types.NFS4_OK), resp.Status)

	resp = f.run(t, types.NFS4_MINOR_VERSION_0,
		op(types.OP_RELEASE_LOCKOWNER, &types.ReleaseLockOwnerArgs{ClientID: 42}))
	assert.Equal(t, uint32(types.NFS4ERR_STALE_CLIENTID), resp.Status)
}
