package state

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// ExchangeIDResult is what the EXCHANGE_ID handler encodes.
type ExchangeIDResult struct {
	ClientID   uint64
	SequenceID uint32
	Flags      uint32
}

// ExchangeID implements the EXCHANGE_ID record algorithm of RFC 8881
// Section 18.35.5.
//
// Without EXCHGID4_FLAG_UPD_CONFIRMED_REC_A:
//   - confirmed record, other principal: CLID_INUSE while its lease is
//     live, otherwise the old record is expired and a new one created
//   - confirmed record, same verifier: the confirmed record is returned
//   - confirmed record, new verifier: the client restarted; a new
//     unconfirmed record is created next to the confirmed one
//
// With the update flag:
//   - no confirmed record: NOENT
//   - verifier differs: NOT_SAME
//   - other principal: PERM
//   - otherwise NOTSUPP, since nothing updatable is tracked
//
// Any unconfirmed record of the owner is replaced by the new one.
func (m *Manager) ExchangeID(args *types.ExchangeIDArgs, cred types.Credentials) (*ExchangeIDResult, error) {
	if args.Flags&^types.EXCHGID4_FLAG_MASK_A != 0 {
		return nil, ErrBadFlags
	}
	update := args.Flags&types.EXCHGID4_FLAG_UPD_CONFIRMED_REC_A != 0

	m.mu.Lock()
	defer m.mu.Unlock()

	key := ownerKey(types.NFS4_MINOR_VERSION_1, args.OwnerID)
	conf := m.confirmedByOwner[key]

	switch {
	case conf != nil && !update:
		if !samePrincipal(conf.Principal, cred) {
			if conf.leaseValid(time.Now(), m.leaseDuration) {
				logger.Debug("EXCHANGE_ID: principal mismatch on live client",
					"client_id", fmt.Sprintf("%016x", conf.ID))
				return nil, ErrClientIDInUse
			}
			m.expireLocked(context.Background(), conf, "principal collision on expired lease")
		} else if conf.Verifier == args.Verifier {
			conf.renew()
			return m.exchangeResult(conf, true), nil
		} else {
			logger.Debug("EXCHANGE_ID: client restarted",
				"client_id", fmt.Sprintf("%016x", conf.ID))
		}

	case conf != nil:
		if conf.Verifier != args.Verifier {
			return nil, ErrNotSame
		}
		if !samePrincipal(conf.Principal, cred) {
			return nil, ErrPrincipal
		}
		return nil, ErrUpdateNotSupp

	case update:
		return nil, ErrNoConfirmed
	}

	if old := m.unconfirmedByOwner[key]; old != nil {
		delete(m.unconfirmedByOwner, key)
		delete(m.clientsByID, old.ID)
		old.markExpired()
	}

	c := newClient(m.generateClientID(), args.OwnerID, args.Verifier, cred, types.NFS4_MINOR_VERSION_1)
	m.unconfirmedByOwner[key] = c
	m.clientsByID[c.ID] = c

	logger.Info("EXCHANGE_ID: new v4.1 client",
		"client_id", fmt.Sprintf("%016x", c.ID))

	return m.exchangeResult(c, false), nil
}

func (m *Manager) exchangeResult(c *Client, confirmed bool) *ExchangeIDResult {
	flags := uint32(types.EXCHGID4_FLAG_USE_NON_PNFS | types.EXCHGID4_FLAG_SUPP_MOVED_REFER)
	if confirmed {
		flags |= types.EXCHGID4_FLAG_CONFIRMED_R
	}
	return &ExchangeIDResult{
		ClientID:   c.ID,
		SequenceID: c.createSession.SeqID() + 1,
		Flags:      flags,
	}
}
