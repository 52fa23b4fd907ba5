package state

import (
	"sync"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

const (
	// DefaultMaxSlots bounds the fore channel slot count of a session. Each
	// slot may hold one cached reply.
	DefaultMaxSlots uint32 = 64

	// MinSlots is the minimum number of slots per session.
	MinSlots uint32 = 1
)

// SequenceValidation is the outcome of checking a slot sequence ID.
type SequenceValidation int

const (
	// SeqNew is a new request (seqid == last + 1).
	SeqNew SequenceValidation = iota

	// SeqRetry is a retransmission of the last request with a cached reply.
	SeqRetry

	// SeqMisordered covers every rejected seqid.
	SeqMisordered
)

func (v SequenceValidation) String() string {
	switch v {
	case SeqNew:
		return "new"
	case SeqRetry:
		return "retry"
	default:
		return "misordered"
	}
}

// Slot is one entry of a slot table.
//
// A slot remembers the last sequence ID it accepted and the reply computed
// for it. The reply is always a private clone: Store clones on the way in
// and Replay clones on the way out, so the cache never shares buffers with
// a response that a caller is about to free.
type Slot struct {
	table *SlotTable
	id    uint32

	seqID   uint32
	prevSeq uint32
	inUse   bool
	cached  *types.Compound4Response
}

// ID returns the slot index.
func (s *Slot) ID() uint32 { return s.id }

// SeqID returns the last accepted sequence ID.
func (s *Slot) SeqID() uint32 {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	return s.seqID
}

// Begin validates seqID against the slot.
//
// A new request marks the slot in use and advances its sequence ID; the
// caller must eventually call Store, Release or Abort. A retry leaves the
// slot untouched. Everything else is an error carrying the status to
// report.
func (s *Slot) Begin(seqID uint32) (SequenceValidation, error) {
	t := s.table
	t.mu.Lock()
	defer t.mu.Unlock()

	// uint32 wrap is intended: 0xFFFFFFFF is followed by 0.
	switch seqID {
	case s.seqID + 1:
		if s.inUse {
			return SeqMisordered, ErrDelay
		}
		s.prevSeq = s.seqID
		s.seqID = seqID
		s.inUse = true
		if s.id > t.highestSlotID {
			t.highestSlotID = s.id
		}
		return SeqNew, nil

	case s.seqID:
		if s.inUse {
			return SeqMisordered, ErrDelay
		}
		if s.cached == nil {
			return SeqMisordered, ErrRetryUncached
		}
		return SeqRetry, nil

	default:
		return SeqMisordered, ErrSeqMisordered
	}
}

// Replay returns a copy of the cached reply, or nil when nothing is cached.
func (s *Slot) Replay() *types.Compound4Response {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	return s.cached.Clone()
}

// Store caches a copy of resp, freeing the previous occupant, and releases
// the slot. Once the table has been drained nothing is cached any more.
func (s *Slot) Store(resp *types.Compound4Response) {
	c := resp.Clone()

	s.table.mu.Lock()
	s.inUse = false
	if s.table.closed {
		s.table.mu.Unlock()
		c.Free()
		return
	}
	old := s.cached
	s.cached = c
	s.table.mu.Unlock()

	old.Free()
}

// Release marks the slot idle without touching the cache.
func (s *Slot) Release() {
	s.table.mu.Lock()
	s.inUse = false
	s.table.mu.Unlock()
}

// Abort undoes a SeqNew Begin: the sequence ID goes back to its previous
// value and the slot becomes idle.
func (s *Slot) Abort() {
	s.table.mu.Lock()
	if s.inUse {
		s.seqID = s.prevSeq
		s.inUse = false
	}
	s.table.mu.Unlock()
}

// SlotTable is a session's fore channel slot table. One mutex guards all of
// its slots.
type SlotTable struct {
	mu sync.Mutex

	slots               []*Slot
	highestSlotID       uint32
	targetHighestSlotID uint32
	closed              bool
}

// NewSlotTable creates a table with numSlots slots, clamped to
// [MinSlots, DefaultMaxSlots].
func NewSlotTable(numSlots uint32) *SlotTable {
	return newSlotTable(numSlots, DefaultMaxSlots)
}

func newSlotTable(numSlots, max uint32) *SlotTable {
	if max < MinSlots {
		max = MinSlots
	}
	numSlots = clampUint32(numSlots, MinSlots, max)

	t := &SlotTable{
		slots:               make([]*Slot, numSlots),
		targetHighestSlotID: numSlots - 1,
	}
	for i := range t.slots {
		t.slots[i] = &Slot{table: t, id: uint32(i)}
	}
	return t
}

// Slot returns slot slotID, or ErrBadSlot when it is out of range.
func (t *SlotTable) Slot(slotID uint32) (*Slot, error) {
	if slotID >= uint32(len(t.slots)) {
		return nil, ErrBadSlot
	}
	return t.slots[slotID], nil
}

// MaxSlots returns the number of slots. Immutable after creation.
func (t *SlotTable) MaxSlots() uint32 {
	return uint32(len(t.slots))
}

// HighestSlotID returns the highest slot ID used so far.
func (t *SlotTable) HighestSlotID() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.highestSlotID
}

// TargetHighestSlotID returns the slot ID the server wants the client to
// stay below.
func (t *SlotTable) TargetHighestSlotID() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.targetHighestSlotID
}

// SlotsInUse counts the slots currently processing a request.
func (t *SlotTable) SlotsInUse() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, s := range t.slots {
		if s.inUse {
			n++
		}
	}
	return n
}

// CachedReplies counts the slots holding a cached reply.
func (t *SlotTable) CachedReplies() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, s := range t.slots {
		if s.cached != nil {
			n++
		}
	}
	return n
}

// drain frees every cached reply and stops further caching. Used when the
// owning session or client goes away.
func (t *SlotTable) drain() {
	t.mu.Lock()
	t.closed = true
	var old []*types.Compound4Response
	for _, s := range t.slots {
		if s.cached != nil {
			old = append(old, s.cached)
			s.cached = nil
		}
	}
	t.mu.Unlock()

	for _, r := range old {
		r.Free()
	}
}

func clampUint32(v, min, max uint32) uint32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
