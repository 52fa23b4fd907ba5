package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/pkg/clientdb"
)

var (
	alice = types.Credentials{Flavor: types.AUTH_SYS, UID: 1000, GID: 1000}
	bob   = types.Credentials{Flavor: types.AUTH_SYS, UID: 2000, GID: 2000}
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m := NewManager(cfg)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Shutdown)
	return m
}

func verifier(b byte) types.Verifier {
	var v types.Verifier
	v[0] = b
	return v
}

func exchange(t *testing.T, m *Manager, owner string, v byte, cred types.Credentials) *ExchangeIDResult {
	t.Helper()
	res, err := m.ExchangeID(&types.ExchangeIDArgs{OwnerID: []byte(owner), Verifier: verifier(v)}, cred)
	require.NoError(t, err)
	return res
}

func createSession(t *testing.T, m *Manager, clientID uint64, seq uint32, cred types.Credentials) *CreateSessionResult {
	t.Helper()
	res, err := m.CreateSession(context.Background(), &types.CreateSessionArgs{
		ClientID:    clientID,
		Sequence:    seq,
		ForeChannel: types.ChannelAttrs{MaxRequests: 8, MaxOperations: 16, MaxRequestSize: 1 << 16, MaxResponseSize: 1 << 16},
	}, cred)
	require.NoError(t, err)
	require.False(t, res.Replay)
	res.Slot.Release()
	return res
}

// ============================================================================
// SETCLIENTID Tests
// ============================================================================

func TestSetClientID(t *testing.T) {
	ctx := context.Background()

	t.Run("ConfirmFlow", func(t *testing.T) {
		m := newTestManager(t, Config{})
		res, err := m.SetClientID(&types.SetClientIDArgs{ID: []byte("c1"), Verifier: verifier(1)}, alice)
		require.NoError(t, err)
		assert.False(t, m.GetClient(res.ClientID).Confirmed())

		assert.ErrorIs(t, m.ConfirmClientID(ctx, res.ClientID, verifier(9), alice), ErrStaleClientID)
		require.NoError(t, m.ConfirmClientID(ctx, res.ClientID, res.ConfirmVerifier, alice))
		assert.True(t, m.GetClient(res.ClientID).Confirmed())

		// Retransmitted confirm.
		require.NoError(t, m.ConfirmClientID(ctx, res.ClientID, res.ConfirmVerifier, alice))
	})

	t.Run("CallbackUpdateKeepsClientID", func(t *testing.T) {
		m := newTestManager(t, Config{})
		first, err := m.SetClientID(&types.SetClientIDArgs{ID: []byte("c1"), Verifier: verifier(1)}, alice)
		require.NoError(t, err)
		require.NoError(t, m.ConfirmClientID(ctx, first.ClientID, first.ConfirmVerifier, alice))

		again, err := m.SetClientID(&types.SetClientIDArgs{
			ID:       []byte("c1"),
			Verifier: verifier(1),
			Callback: types.CallbackClient{NetID: "tcp", Addr: "10.0.0.1.8.1"},
		}, alice)
		require.NoError(t, err)
		assert.Equal(t, first.ClientID, again.ClientID)
		assert.NotEqual(t, first.ConfirmVerifier, again.ConfirmVerifier)

		require.NoError(t, m.ConfirmClientID(ctx, again.ClientID, again.ConfirmVerifier, alice))
		assert.Equal(t, "10.0.0.1.8.1", m.GetClient(first.ClientID).Callback.Addr)
	})

	t.Run("RebootGetsNewClientID", func(t *testing.T) {
		m := newTestManager(t, Config{})
		first, err := m.SetClientID(&types.SetClientIDArgs{ID: []byte("c1"), Verifier: verifier(1)}, alice)
		require.NoError(t, err)
		require.NoError(t, m.ConfirmClientID(ctx, first.ClientID, first.ConfirmVerifier, alice))

		second, err := m.SetClientID(&types.SetClientIDArgs{ID: []byte("c1"), Verifier: verifier(2)}, alice)
		require.NoError(t, err)
		assert.NotEqual(t, first.ClientID, second.ClientID)

		require.NoError(t, m.ConfirmClientID(ctx, second.ClientID, second.ConfirmVerifier, alice))
		assert.Nil(t, m.GetClient(first.ClientID))
	})

	t.Run("OtherPrincipalIsInUse", func(t *testing.T) {
		m := newTestManager(t, Config{})
		first, err := m.SetClientID(&types.SetClientIDArgs{
			ID:       []byte("c1"),
			Verifier: verifier(1),
			Callback: types.CallbackClient{NetID: "tcp", Addr: "10.0.0.1.8.1"},
		}, alice)
		require.NoError(t, err)
		require.NoError(t, m.ConfirmClientID(ctx, first.ClientID, first.ConfirmVerifier, alice))

		res, err := m.SetClientID(&types.SetClientIDArgs{ID: []byte("c1"), Verifier: verifier(1)}, bob)
		assert.ErrorIs(t, err, ErrClientIDInUse)
		require.NotNil(t, res.InUse)
		assert.Equal(t, "10.0.0.1.8.1", res.InUse.Addr)
	})

	t.Run("RenewAndReleaseLockOwner", func(t *testing.T) {
		m := newTestManager(t, Config{})
		_, err := m.Renew(42)
		assert.ErrorIs(t, err, ErrStaleClientID)

		res, err := m.SetClientID(&types.SetClientIDArgs{ID: []byte("c1"), Verifier: verifier(1)}, alice)
		require.NoError(t, err)
		_, err = m.Renew(res.ClientID)
		assert.ErrorIs(t, err, ErrStaleClientID, "unconfirmed clients cannot renew")

		require.NoError(t, m.ConfirmClientID(ctx, res.ClientID, res.ConfirmVerifier, alice))
		c, err := m.Renew(res.ClientID)
		require.NoError(t, err)
		c.UpdateAndReleaseLease()

		assert.NoError(t, m.ReleaseLockOwner(res.ClientID, []byte("owner")))
		assert.ErrorIs(t, m.ReleaseLockOwner(7, nil), ErrStaleClientID)
	})
}

// ============================================================================
// EXCHANGE_ID Tests
// ============================================================================

func TestExchangeID(t *testing.T) {
	t.Run("NewClientStartsAtSequenceOne", func(t *testing.T) {
		m := newTestManager(t, Config{})
		res := exchange(t, m, "linux", 1, alice)
		assert.Equal(t, uint32(1), res.SequenceID)
		assert.Zero(t, res.Flags&types.EXCHGID4_FLAG_CONFIRMED_R)
		assert.NotZero(t, res.Flags&types.EXCHGID4_FLAG_USE_NON_PNFS)
	})

	t.Run("ConfirmedSameVerifierIsIdempotent", func(t *testing.T) {
		m := newTestManager(t, Config{})
		res := exchange(t, m, "linux", 1, alice)
		createSession(t, m, res.ClientID, res.SequenceID, alice)

		again := exchange(t, m, "linux", 1, alice)
		assert.Equal(t, res.ClientID, again.ClientID)
		assert.NotZero(t, again.Flags&types.EXCHGID4_FLAG_CONFIRMED_R)
		assert.Equal(t, uint32(2), again.SequenceID)
	})

	t.Run("RestartCreatesNewRecord", func(t *testing.T) {
		m := newTestManager(t, Config{})
		res := exchange(t, m, "linux", 1, alice)
		createSession(t, m, res.ClientID, res.SequenceID, alice)

		restarted := exchange(t, m, "linux", 2, alice)
		assert.NotEqual(t, res.ClientID, restarted.ClientID)
		assert.NotNil(t, m.GetClient(res.ClientID), "confirmed record stays until the new one is confirmed")

		createSession(t, m, restarted.ClientID, restarted.SequenceID, alice)
		assert.Nil(t, m.GetClient(res.ClientID))
		assert.Equal(t, 1, m.SessionCount())
	})

	t.Run("UnconfirmedIsReplaced", func(t *testing.T) {
		m := newTestManager(t, Config{})
		first := exchange(t, m, "linux", 1, alice)
		second := exchange(t, m, "linux", 2, alice)
		assert.NotEqual(t, first.ClientID, second.ClientID)
		assert.Nil(t, m.GetClient(first.ClientID))
	})

	t.Run("PrincipalCollisionOnLiveLease", func(t *testing.T) {
		m := newTestManager(t, Config{})
		res := exchange(t, m, "linux", 1, alice)
		createSession(t, m, res.ClientID, res.SequenceID, alice)

		_, err := m.ExchangeID(&types.ExchangeIDArgs{OwnerID: []byte("linux"), Verifier: verifier(1)}, bob)
		assert.ErrorIs(t, err, ErrClientIDInUse)
	})

	t.Run("UpdateCases", func(t *testing.T) {
		m := newTestManager(t, Config{})
		upd := uint32(types.EXCHGID4_FLAG_UPD_CONFIRMED_REC_A)

		_, err := m.ExchangeID(&types.ExchangeIDArgs{OwnerID: []byte("linux"), Verifier: verifier(1), Flags: upd}, alice)
		assert.ErrorIs(t, err, ErrNoConfirmed)

		res := exchange(t, m, "linux", 1, alice)
		createSession(t, m, res.ClientID, res.SequenceID, alice)

		tests := []struct {
			name string
			v    byte
			cred types.Credentials
			want error
		}{
			{"WrongVerifier", 2, alice, ErrNotSame},
			{"WrongPrincipal", 1, bob, ErrPrincipal},
			{"Update", 1, alice, ErrUpdateNotSupp},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := m.ExchangeID(&types.ExchangeIDArgs{OwnerID: []byte("linux"), Verifier: verifier(tt.v), Flags: upd}, tt.cred)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("UnknownFlagsAreInvalid", func(t *testing.T) {
		m := newTestManager(t, Config{})
		_, err := m.ExchangeID(&types.ExchangeIDArgs{OwnerID: []byte("linux"), Flags: 0x8}, alice)
		assert.ErrorIs(t, err, ErrBadFlags)
	})
}

// ============================================================================
// CREATE_SESSION Tests
// ============================================================================

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("StaleClientID", func(t *testing.T) {
		m := newTestManager(t, Config{})
		_, err := m.CreateSession(ctx, &types.CreateSessionArgs{ClientID: 99, Sequence: 1}, alice)
		assert.ErrorIs(t, err, ErrStaleClientID)
	})

	t.Run("NegotiatesChannel", func(t *testing.T) {
		m := newTestManager(t, Config{MaxSlots: 4})
		ex := exchange(t, m, "linux", 1, alice)
		res, err := m.CreateSession(ctx, &types.CreateSessionArgs{
			ClientID:    ex.ClientID,
			Sequence:    ex.SequenceID,
			ForeChannel: types.ChannelAttrs{MaxRequests: 100, MaxOperations: 100},
		}, alice)
		require.NoError(t, err)
		res.Slot.Release()

		assert.Equal(t, uint32(4), res.Res.ForeChannel.MaxRequests)
		assert.Equal(t, uint32(types.MaxCompoundOps), res.Res.ForeChannel.MaxOperations)
		assert.Equal(t, uint32(minMessageSize), res.Res.ForeChannel.MaxRequestSize)
		assert.True(t, m.GetClient(ex.ClientID).Confirmed())

		s := m.GetSession(res.Res.SessionID)
		require.NotNil(t, s)
		assert.Equal(t, uint32(4), s.Slots.MaxSlots())
	})

	t.Run("ReplayAndMisordered", func(t *testing.T) {
		m := newTestManager(t, Config{})
		ex := exchange(t, m, "linux", 1, alice)
		args := &types.CreateSessionArgs{ClientID: ex.ClientID, Sequence: ex.SequenceID}

		res, err := m.CreateSession(ctx, args, alice)
		require.NoError(t, err)
		resp := &types.Compound4Response{Results: []types.Result{{OpCode: types.OP_CREATE_SESSION, Body: res.Res}}}
		res.Slot.Store(resp)

		replay, err := m.CreateSession(ctx, args, alice)
		require.NoError(t, err)
		assert.True(t, replay.Replay)
		cached := replay.Slot.Replay()
		require.NotNil(t, cached)
		assert.Equal(t, res.Res.SessionID, cached.Results[0].Body.(*types.CreateSessionRes).SessionID)
		assert.Equal(t, 1, m.SessionCount())

		_, err = m.CreateSession(ctx, &types.CreateSessionArgs{ClientID: ex.ClientID, Sequence: ex.SequenceID + 5}, alice)
		assert.ErrorIs(t, err, ErrSeqMisordered)
	})

	t.Run("FailureDoesNotAdvanceSequence", func(t *testing.T) {
		m := newTestManager(t, Config{})
		ex := exchange(t, m, "linux", 1, alice)

		_, err := m.CreateSession(ctx, &types.CreateSessionArgs{ClientID: ex.ClientID, Sequence: ex.SequenceID, Flags: 0x80}, alice)
		assert.ErrorIs(t, err, ErrBadFlags)

		_, err = m.CreateSession(ctx, &types.CreateSessionArgs{ClientID: ex.ClientID, Sequence: ex.SequenceID}, bob)
		assert.ErrorIs(t, err, ErrClientIDInUse)

		createSession(t, m, ex.ClientID, ex.SequenceID, alice)
	})

	t.Run("SessionLimit", func(t *testing.T) {
		m := newTestManager(t, Config{MaxSessionsPerClient: 1})
		ex := exchange(t, m, "linux", 1, alice)
		createSession(t, m, ex.ClientID, 1, alice)

		_, err := m.CreateSession(ctx, &types.CreateSessionArgs{ClientID: ex.ClientID, Sequence: 2}, alice)
		assert.ErrorIs(t, err, ErrTooManySessions)
	})
}

// ============================================================================
// SEQUENCE / DESTROY Tests
// ============================================================================

func TestSequenceAndDestroy(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{})
	ex := exchange(t, m, "linux", 1, alice)
	cs := createSession(t, m, ex.ClientID, ex.SequenceID, alice)
	sid := cs.Res.SessionID

	t.Run("BadSession", func(t *testing.T) {
		_, err := m.Sequence(&types.SequenceArgs{SessionID: types.SessionID{1}, SequenceID: 1})
		assert.ErrorIs(t, err, ErrBadSession)
	})

	t.Run("BadSlot", func(t *testing.T) {
		_, err := m.Sequence(&types.SequenceArgs{SessionID: sid, SlotID: 100, SequenceID: 1})
		assert.ErrorIs(t, err, ErrBadSlot)
	})

	t.Run("NewRequestReservesLease", func(t *testing.T) {
		res, err := m.Sequence(&types.SequenceArgs{SessionID: sid, SequenceID: 1})
		require.NoError(t, err)
		assert.Equal(t, SeqNew, res.Validation)

		_, err = m.Sequence(&types.SequenceArgs{SessionID: sid, SequenceID: 1})
		assert.ErrorIs(t, err, ErrDelay)

		resp := pooledReply(types.NFS4_OK)
		res.Slot.Store(resp)
		resp.Free()
		res.Session.Client.UpdateAndReleaseLease()
	})

	t.Run("Retry", func(t *testing.T) {
		res, err := m.Sequence(&types.SequenceArgs{SessionID: sid, SequenceID: 1})
		require.NoError(t, err)
		assert.Equal(t, SeqRetry, res.Validation)
		res.Session.Client.UpdateAndReleaseLease()
	})

	t.Run("DestroyClientIDBusy", func(t *testing.T) {
		err := m.DestroyClientID(ctx, ex.ClientID)
		assert.ErrorIs(t, err, ErrClientIDBusy)
	})

	t.Run("DestroySession", func(t *testing.T) {
		require.NoError(t, m.DestroySession(sid))
		assert.ErrorIs(t, m.DestroySession(sid), ErrBadSession)
		assert.Zero(t, m.SessionCount())
	})

	t.Run("DestroyClientID", func(t *testing.T) {
		require.NoError(t, m.DestroyClientID(ctx, ex.ClientID))
		assert.ErrorIs(t, m.DestroyClientID(ctx, ex.ClientID), ErrStaleClientID)
		assert.Zero(t, m.ClientCount())
	})
}

// ============================================================================
// Lease Tests
// ============================================================================

func TestLeaseExpiry(t *testing.T) {
	m := newTestManager(t, Config{LeaseTime: 20 * time.Millisecond})
	ex := exchange(t, m, "linux", 1, alice)
	cs := createSession(t, m, ex.ClientID, ex.SequenceID, alice)

	seq, err := m.Sequence(&types.SequenceArgs{SessionID: cs.Res.SessionID, SequenceID: 1})
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, m.ExpireStale(context.Background()), "reserved lease cannot expire")

	seq.Slot.Release()
	seq.Session.Client.UpdateAndReleaseLease()
	assert.Zero(t, m.ExpireStale(context.Background()), "release restarts the lease")

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, m.ExpireStale(context.Background()))
	assert.Nil(t, m.GetSession(cs.Res.SessionID))
	assert.False(t, seq.Session.Client.ReserveLease())
}

// ============================================================================
// Grace and Persistence Tests
// ============================================================================

func TestGraceAndReclaim(t *testing.T) {
	ctx := context.Background()
	db, err := clientdb.Open(&clientdb.Config{
		Type:   clientdb.DatabaseTypeSQLite,
		SQLite: clientdb.SQLiteConfig{Path: filepath.Join(t.TempDir(), "clients.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// First run: one client confirms and is persisted.
	first := newTestManager(t, Config{Store: db})
	ex := exchange(t, first, "linux", 1, alice)
	createSession(t, first, ex.ClientID, ex.SequenceID, alice)
	recs, err := db.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// Second run: grace lasts until that client reports RECLAIM_COMPLETE.
	second := newTestManager(t, Config{Store: db, GracePeriod: time.Hour})
	assert.True(t, second.InGrace())
	assert.ErrorIs(t, second.CheckGrace(), ErrGrace)

	ex2 := exchange(t, second, "linux", 2, alice)
	createSession(t, second, ex2.ClientID, ex2.SequenceID, alice)
	require.NoError(t, second.ReclaimComplete(ctx, ex2.ClientID))
	assert.False(t, second.InGrace())
	assert.NoError(t, second.CheckGrace())

	assert.ErrorIs(t, second.ReclaimComplete(ctx, ex2.ClientID), ErrCompleteAlready)

	rec, err := db.GetClient(ctx, ex2.ClientID)
	require.NoError(t, err)
	assert.True(t, rec.ReclaimComplete)
}

func TestGracePeriodTimer(t *testing.T) {
	ended := make(chan struct{})
	g := NewGracePeriodState(10*time.Millisecond, func() { close(ended) })
	g.StartGrace(nil)
	assert.True(t, g.IsInGrace())

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("grace period did not end")
	}
	assert.False(t, g.IsInGrace())

	disabled := NewGracePeriodState(0, nil)
	disabled.StartGrace([]string{"x"})
	assert.False(t, disabled.IsInGrace())
}

func TestListings(t *testing.T) {
	m := newTestManager(t, Config{})
	ex := exchange(t, m, "linux", 1, alice)
	createSession(t, m, ex.ClientID, ex.SequenceID, alice)

	clients := m.ListClients()
	require.Len(t, clients, 1)
	assert.True(t, clients[0].Confirmed)
	assert.Equal(t, 1, clients[0].Sessions)

	sessions := m.ListSessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, uint32(8), sessions[0].Slots)
	assert.Equal(t, uint32(16), sessions[0].MaxOperations)
}

func TestEvictClient(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{})
	ex := exchange(t, m, "linux", 1, alice)
	createSession(t, m, ex.ClientID, ex.SequenceID, alice)

	// DESTROY_CLIENTID refuses while sessions remain; eviction does not.
	require.ErrorIs(t, m.DestroyClientID(ctx, ex.ClientID), ErrClientIDBusy)
	require.NoError(t, m.EvictClient(ctx, ex.ClientID))

	assert.Zero(t, m.ClientCount())
	assert.Zero(t, m.SessionCount())
	assert.ErrorIs(t, m.EvictClient(ctx, ex.ClientID), ErrStaleClientID)
}
