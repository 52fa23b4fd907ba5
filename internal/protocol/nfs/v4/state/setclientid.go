package state

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// SetClientIDResult is what SETCLIENTID returns. InUse is set together with
// ErrClientIDInUse and carries the callback address of the current owner.
type SetClientIDResult struct {
	ClientID        uint64
	ConfirmVerifier types.Verifier
	InUse           *types.CallbackClient
}

// SetClientID implements the SETCLIENTID cases of RFC 7530 Section 16.33:
//
//   - no record: create an unconfirmed one
//   - confirmed, other principal, live lease: CLID_INUSE
//   - confirmed, same verifier: new unconfirmed record reusing the client ID
//     (callback update)
//   - confirmed, different verifier: client rebooted, new unconfirmed record
//     with a fresh client ID
//   - unconfirmed only: replace it
func (m *Manager) SetClientID(args *types.SetClientIDArgs, cred types.Credentials) (*SetClientIDResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ownerKey(types.NFS4_MINOR_VERSION_0, args.ID)
	confirmed := m.confirmedByOwner[key]

	if confirmed != nil && !samePrincipal(confirmed.Principal, cred) {
		if confirmed.leaseValid(time.Now(), m.leaseDuration) {
			cb := confirmed.Callback
			return &SetClientIDResult{InUse: &cb}, ErrClientIDInUse
		}
		m.expireLocked(context.Background(), confirmed, "principal collision on expired lease")
		confirmed = nil
	}

	if old := m.unconfirmedByOwner[key]; old != nil {
		if confirmed == nil || old.ID != confirmed.ID {
			delete(m.clientsByID, old.ID)
		}
		delete(m.unconfirmedByOwner, key)
	}

	id := m.generateClientID()
	reason := "new client"
	switch {
	case confirmed != nil && confirmed.Verifier == args.Verifier:
		id = confirmed.ID
		reason = "callback update"
	case confirmed != nil:
		reason = "client reboot"
	}

	c := newClient(id, args.ID, args.Verifier, cred, types.NFS4_MINOR_VERSION_0)
	c.Callback = args.Callback
	c.ConfirmVerifier = generateConfirmVerifier()

	m.unconfirmedByOwner[key] = c
	if confirmed == nil || confirmed.ID != id {
		m.clientsByID[id] = c
	}

	logger.Debug("SETCLIENTID: unconfirmed record created",
		"client_id", fmt.Sprintf("%016x", id),
		"reason", reason)

	return &SetClientIDResult{ClientID: id, ConfirmVerifier: c.ConfirmVerifier}, nil
}

// ConfirmClientID implements SETCLIENTID_CONFIRM.
func (m *Manager) ConfirmClientID(ctx context.Context, clientID uint64, verifier types.Verifier, cred types.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.clientsByID[clientID]
	if c == nil || c.MinorVersion != types.NFS4_MINOR_VERSION_0 {
		return ErrStaleClientID
	}

	// A callback update shares its client ID with the confirmed record, so
	// the pending record is only reachable through the owner map.
	if c.Confirmed() {
		if pending := m.unconfirmedByOwner[ownerKey(c.MinorVersion, c.Owner)]; pending != nil && pending.ID == clientID {
			c = pending
		} else {
			if c.ConfirmVerifier != verifier {
				return ErrStaleClientID
			}
			c.renew()
			return nil
		}
	}

	if c.ConfirmVerifier != verifier {
		return ErrStaleClientID
	}
	if !samePrincipal(c.Principal, cred) {
		return ErrClientIDInUse
	}

	m.confirmLocked(ctx, c)

	logger.Info("SETCLIENTID_CONFIRM: client confirmed",
		"client_id", fmt.Sprintf("%016x", clientID))
	return nil
}

// Renew reserves the lease of a confirmed v4.0 client. The caller releases
// the reservation with UpdateAndReleaseLease once the request completes.
func (m *Manager) Renew(clientID uint64) (*Client, error) {
	c := m.GetClient(clientID)
	if c == nil || !c.Confirmed() {
		return nil, ErrStaleClientID
	}
	if !c.ReserveLease() {
		return nil, ErrExpired
	}
	return c, nil
}

// ReleaseLockOwner validates the client of a RELEASE_LOCKOWNER. This server
// keeps no byte-range lock state, so there is nothing else to release.
func (m *Manager) ReleaseLockOwner(clientID uint64, owner []byte) error {
	c := m.GetClient(clientID)
	if c == nil || !c.Confirmed() {
		return ErrStaleClientID
	}
	c.renew()
	logger.Debug("RELEASE_LOCKOWNER",
		"client_id", fmt.Sprintf("%016x", clientID),
		"owner_len", len(owner))
	return nil
}
