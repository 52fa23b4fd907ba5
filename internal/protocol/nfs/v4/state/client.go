// Package state tracks NFSv4 clients, their leases and NFSv4.1 sessions.
//
// A Manager owns every client record. Client IDs are handed out by
// SETCLIENTID (v4.0) or EXCHANGE_ID (v4.1); a record starts unconfirmed and
// is confirmed by SETCLIENTID_CONFIRM or the first CREATE_SESSION. Sessions
// carry a slot table whose slots cache complete COMPOUND replies, which is
// what gives retransmitted requests exactly-once semantics.
package state

import (
	"sync"
	"time"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// Client is the server-side record of one client ID.
//
// Identity fields are immutable once the record is published. The lease and
// confirmation state are guarded by the client's own mutex, so renewing a
// lease never contends on the manager lock.
type Client struct {
	ID              uint64
	Owner           []byte
	Verifier        types.Verifier
	Principal       types.Credentials
	MinorVersion    uint32
	Callback        types.CallbackClient
	ConfirmVerifier types.Verifier
	CreatedAt       time.Time

	// createSession replays CREATE_SESSION (v4.1 only).
	createSession *Slot

	mu              sync.Mutex
	confirmed       bool
	reservations    int
	lastRenew       time.Time
	expired         bool
	reclaimComplete bool
	callbackProgram uint32
}

func newClient(id uint64, owner []byte, verifier types.Verifier, cred types.Credentials, minor uint32) *Client {
	now := time.Now()
	c := &Client{
		ID:           id,
		Owner:        append([]byte(nil), owner...),
		Verifier:     verifier,
		Principal:    principalOf(cred),
		MinorVersion: minor,
		CreatedAt:    now,
		lastRenew:    now,
	}
	if minor > 0 {
		c.createSession = newSlotTable(1, 1).slots[0]
	}
	return c
}

// principalOf keeps the fields used to compare callers.
func principalOf(cred types.Credentials) types.Credentials {
	return types.Credentials{Flavor: cred.Flavor, UID: cred.UID, GID: cred.GID, Principal: cred.Principal}
}

func samePrincipal(a, b types.Credentials) bool {
	return a.Flavor == b.Flavor && a.UID == b.UID && a.Principal == b.Principal
}

// Confirmed reports whether the client ID has been confirmed.
func (c *Client) Confirmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed
}

// ReclaimComplete reports whether the client sent RECLAIM_COMPLETE.
func (c *Client) ReclaimComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reclaimComplete
}

// ReserveLease marks the lease as in use by a request. A reserved lease
// cannot expire. It fails once the client has been expired.
func (c *Client) ReserveLease() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expired {
		return false
	}
	c.reservations++
	return true
}

// UpdateAndReleaseLease drops one reservation and, when it was the last,
// restarts the lease period from now.
func (c *Client) UpdateAndReleaseLease() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reservations > 0 {
		c.reservations--
	}
	if c.reservations == 0 {
		c.lastRenew = time.Now()
	}
}

// LastRenew returns the time the lease was last renewed.
func (c *Client) LastRenew() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRenew
}

func (c *Client) renew() {
	c.mu.Lock()
	c.lastRenew = time.Now()
	c.mu.Unlock()
}

// leaseValid reports whether the lease is reserved or was renewed within d.
func (c *Client) leaseValid(now time.Time, d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.expired && (c.reservations > 0 || now.Sub(c.lastRenew) < d)
}

func (c *Client) markExpired() {
	c.mu.Lock()
	c.expired = true
	c.mu.Unlock()
	if c.createSession != nil {
		c.createSession.table.drain()
	}
}
