package handlers

import (
	"sync/atomic"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// opSlots covers every defined opcode plus one bucket for OP_ILLEGAL.
const opSlots = types.OP_LAST_V41 + 2

type opCounter struct {
	calls  atomic.Uint64
	errors atomic.Uint64
}

// OpStats counts executed operations per minor version and opcode. It is
// always on, independent of Prometheus, and backs the admin API.
type OpStats struct {
	counters [types.NFS4_MINOR_VERSION_1 + 1][opSlots]opCounter
}

// OpStat is one row of an OpStats snapshot.
type OpStat struct {
	Minor  uint32 `json:"minor"`
	Op     string `json:"op"`
	Calls  uint64 `json:"calls"`
	Errors uint64 `json:"errors"`
}

func newOpStats() *OpStats {
	return &OpStats{}
}

func opSlot(opcode uint32) int {
	if opcode > types.OP_LAST_V41 {
		return opSlots - 1
	}
	return int(opcode)
}

func (s *OpStats) record(minor, opcode, status uint32) {
	if minor > types.NFS4_MINOR_VERSION_1 {
		return
	}
	c := &s.counters[minor][opSlot(opcode)]
	c.calls.Add(1)
	if status != types.NFS4_OK {
		c.errors.Add(1)
	}
}

// Snapshot returns the non-zero counters ordered by minor version, then
// opcode.
func (s *OpStats) Snapshot() []OpStat {
	var out []OpStat
	for minor := range s.counters {
		for slot := range s.counters[minor] {
			c := &s.counters[minor][slot]
			calls := c.calls.Load()
			if calls == 0 {
				continue
			}
			opcode := uint32(slot)
			if slot == opSlots-1 {
				opcode = types.OP_ILLEGAL
			}
			out = append(out, OpStat{
				Minor:  uint32(minor),
				Op:     types.OpName(opcode),
				Calls:  calls,
				Errors: c.errors.Load(),
			})
		}
	}
	return out
}
