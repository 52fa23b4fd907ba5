package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// Channel limits applied when negotiating CREATE_SESSION attributes.
const (
	maxRequestSize        = 1 << 20
	maxResponseSize       = 1 << 20
	maxResponseSizeCached = 64 << 10
	minMessageSize        = 8 << 10
	backChannelSlots      = 1
)

// Session is an NFSv4.1 session.
type Session struct {
	ID              types.SessionID
	ClientID        uint64
	Client          *Client
	ForeChannel     types.ChannelAttrs
	BackChannel     types.ChannelAttrs
	Flags           uint32
	CallbackProgram uint32
	CreatedAt       time.Time

	Slots *SlotTable
}

// Slot returns fore channel slot slotID.
func (s *Session) Slot(slotID uint32) (*Slot, error) {
	return s.Slots.Slot(slotID)
}

// CreateSessionResult is the outcome of CreateSession.
//
// Slot is the client's CREATE_SESSION replay slot. When Replay is set the
// request is a retransmission and the cached reply must be served from the
// slot; otherwise Res holds the new session and the slot is in use until the
// caller stores or releases it.
type CreateSessionResult struct {
	Slot   *Slot
	Replay bool
	Res    *types.CreateSessionRes
}

// CreateSession implements CREATE_SESSION (RFC 8881 Section 18.36).
//
// csa_sequence is checked against the client's replay slot first: the next
// sequence starts a new session, the current one with a cached reply is a
// replay, anything else is SEQ_MISORDERED. The first successful
// CREATE_SESSION confirms an EXCHANGE_ID record.
func (m *Manager) CreateSession(ctx context.Context, args *types.CreateSessionArgs, cred types.Credentials) (*CreateSessionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.clientsByID[args.ClientID]
	if c == nil || c.createSession == nil {
		return nil, ErrStaleClientID
	}

	slot := c.createSession
	v, err := slot.Begin(args.Sequence)
	if err != nil {
		if err == ErrRetryUncached {
			return nil, ErrSeqMisordered
		}
		return nil, err
	}
	if v == SeqRetry {
		return &CreateSessionResult{Slot: slot, Replay: true}, nil
	}

	if !samePrincipal(c.Principal, cred) {
		slot.Abort()
		return nil, ErrClientIDInUse
	}
	if args.Flags&^(types.CREATE_SESSION4_FLAG_PERSIST|types.CREATE_SESSION4_FLAG_CONN_BACK_CHAN|types.CREATE_SESSION4_FLAG_CONN_RDMA) != 0 {
		slot.Abort()
		return nil, ErrBadFlags
	}
	if len(m.sessionsByClient[c.ID]) >= m.maxSessionsPerClient {
		slot.Abort()
		return nil, ErrTooManySessions
	}

	fore := m.negotiateFore(args.ForeChannel)
	back := negotiateBack(args.BackChannel)

	s := &Session{
		ID:              types.SessionID(uuid.New()),
		ClientID:        c.ID,
		Client:          c,
		ForeChannel:     fore,
		BackChannel:     back,
		CallbackProgram: args.CallbackProgram,
		CreatedAt:       time.Now(),
		Slots:           newSlotTable(fore.MaxRequests, m.maxSlots),
	}
	m.sessionsByID[s.ID] = s
	m.sessionsByClient[c.ID] = append(m.sessionsByClient[c.ID], s)

	c.mu.Lock()
	c.callbackProgram = args.CallbackProgram
	confirmed := c.confirmed
	c.mu.Unlock()

	if !confirmed {
		m.confirmLocked(ctx, c)
	} else {
		c.renew()
	}

	logger.Info("CREATE_SESSION: session created",
		"session_id", s.ID.String(),
		"client_id", fmt.Sprintf("%016x", c.ID),
		"slots", fore.MaxRequests,
		"max_ops", fore.MaxOperations)

	return &CreateSessionResult{
		Slot: slot,
		Res: &types.CreateSessionRes{
			SessionID:   s.ID,
			Sequence:    args.Sequence,
			ForeChannel: fore,
			BackChannel: back,
		},
	}, nil
}

func (m *Manager) negotiateFore(req types.ChannelAttrs) types.ChannelAttrs {
	ops := req.MaxOperations
	if ops == 0 || ops > types.MaxCompoundOps {
		ops = types.MaxCompoundOps
	}
	return types.ChannelAttrs{
		MaxRequestSize:        clampUint32(req.MaxRequestSize, minMessageSize, maxRequestSize),
		MaxResponseSize:       clampUint32(req.MaxResponseSize, minMessageSize, maxResponseSize),
		MaxResponseSizeCached: min(req.MaxResponseSizeCached, maxResponseSizeCached),
		MaxOperations:         ops,
		MaxRequests:           clampUint32(req.MaxRequests, MinSlots, m.maxSlots),
	}
}

func negotiateBack(req types.ChannelAttrs) types.ChannelAttrs {
	return types.ChannelAttrs{
		MaxRequestSize:        clampUint32(req.MaxRequestSize, minMessageSize, maxRequestSize),
		MaxResponseSize:       clampUint32(req.MaxResponseSize, minMessageSize, maxResponseSize),
		MaxResponseSizeCached: min(req.MaxResponseSizeCached, maxResponseSizeCached),
		MaxOperations:         clampUint32(req.MaxOperations, 1, types.MaxCompoundOps),
		MaxRequests:           backChannelSlots,
	}
}

// GetSession returns the session with the given ID, or nil.
func (m *Manager) GetSession(id types.SessionID) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionsByID[id]
}

// DestroySession implements DESTROY_SESSION.
func (m *Manager) DestroySession(id types.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessionsByID[id]
	if s == nil {
		return ErrBadSession
	}
	delete(m.sessionsByID, id)

	list := m.sessionsByClient[s.ClientID]
	for i, cand := range list {
		if cand == s {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(m.sessionsByClient, s.ClientID)
	} else {
		m.sessionsByClient[s.ClientID] = list
	}
	s.Slots.drain()

	logger.Info("DESTROY_SESSION: session destroyed",
		"session_id", id.String(),
		"client_id", fmt.Sprintf("%016x", s.ClientID))
	return nil
}

// DestroyClientID implements DESTROY_CLIENTID. A client with sessions left
// is refused with CLIENTID_BUSY.
func (m *Manager) DestroyClientID(ctx context.Context, clientID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.clientsByID[clientID]
	if c == nil {
		return ErrStaleClientID
	}
	if n := len(m.sessionsByClient[clientID]); n > 0 {
		return &NFS4StateError{
			Status:  types.NFS4ERR_CLIENTID_BUSY,
			Message: fmt.Sprintf("client %016x has %d sessions", clientID, n),
		}
	}

	m.expireLocked(ctx, c, "DESTROY_CLIENTID")
	return nil
}

// SequenceResult is the outcome of Sequence.
type SequenceResult struct {
	Session    *Session
	Slot       *Slot
	Validation SequenceValidation
}

// Sequence implements the session and slot checks of SEQUENCE and reserves
// the client lease. On success the caller owns one lease reservation and,
// for a new request, the in-use slot.
func (m *Manager) Sequence(args *types.SequenceArgs) (*SequenceResult, error) {
	s := m.GetSession(args.SessionID)
	if s == nil {
		return nil, ErrBadSession
	}

	slot, err := s.Slot(args.SlotID)
	if err != nil {
		return nil, err
	}
	v, err := slot.Begin(args.SequenceID)
	if err != nil {
		return nil, err
	}

	if !s.Client.ReserveLease() {
		if v == SeqNew {
			slot.Abort()
		}
		return nil, ErrBadSession
	}
	return &SequenceResult{Session: s, Slot: slot, Validation: v}, nil
}
