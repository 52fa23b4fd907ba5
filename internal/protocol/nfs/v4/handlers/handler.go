// Package handlers implements the NFSv4 COMPOUND engine and the bodies of
// the operations this server supports.
//
// ProcessCompound validates the request envelope, then runs the operations
// in order against one CompoundContext, stopping at the first failure. The
// dispatch tables (optable.go) differ between minor versions 0 and 1. For
// NFSv4.1, SEQUENCE and CREATE_SESSION bind the request to a session slot
// whose replay cache gives exactly-once execution.
package handlers

import (
	"fmt"
	"time"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/pseudofs"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/state"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/pkg/export"
)

// Request carries the inputs of a call that are not part of COMPOUND4args.
type Request struct {
	Creds      types.Credentials
	ClientAddr string

	// Export is the export the transport associated with the call, if any.
	// A request arriving for an export without NFSv4 access is refused
	// before any operation runs.
	Export *export.Export
}

// Config configures a Handler.
type Config struct {
	Exports  *export.Table
	PseudoFS *pseudofs.FS
	State    *state.Manager

	// MinMinorVersion and MaxMinorVersion bound the accepted minor versions.
	MinMinorVersion uint32
	MaxMinorVersion uint32

	// Metrics is optional.
	Metrics *Metrics
}

// Handler executes COMPOUND requests. It is safe for concurrent use; each
// request gets its own CompoundContext.
type Handler struct {
	Exports  *export.Table
	PseudoFS *pseudofs.FS
	State    *state.Manager

	minMinor uint32
	maxMinor uint32

	metrics *Metrics
	stats   *OpStats

	// started is reported as the modify time of pseudo-fs directories.
	started time.Time
}

// NewHandler validates cfg and builds a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	switch {
	case cfg.Exports == nil:
		return nil, fmt.Errorf("handlers: export table is required")
	case cfg.State == nil:
		return nil, fmt.Errorf("handlers: state manager is required")
	case cfg.MinMinorVersion > cfg.MaxMinorVersion:
		return nil, fmt.Errorf("handlers: min minor version %d above max %d", cfg.MinMinorVersion, cfg.MaxMinorVersion)
	case cfg.MaxMinorVersion > types.NFS4_MINOR_VERSION_1:
		return nil, fmt.Errorf("handlers: minor version %d is not implemented", cfg.MaxMinorVersion)
	}

	pfs := cfg.PseudoFS
	if pfs == nil {
		pfs = pseudofs.New(cfg.Exports.All())
	}

	return &Handler{
		Exports:  cfg.Exports,
		PseudoFS: pfs,
		State:    cfg.State,
		minMinor: cfg.MinMinorVersion,
		maxMinor: cfg.MaxMinorVersion,
		metrics:  cfg.Metrics,
		stats:    newOpStats(),
		started:  time.Now(),
	}, nil
}

// Stats returns the per-operation counters.
func (h *Handler) Stats() *OpStats {
	return h.stats
}

// statusResult builds a result carrying only status. The engine stamps
// the opcode.
func statusResult(status uint32) types.Result {
	return types.Result{Status: status}
}

// stateResult maps an error from the state manager to a result.
func stateResult(err error) types.Result {
	return statusResult(state.StatusOf(err))
}

// badArgs is returned when an operation arrives without its decoded
// arguments. The codec never produces that; it guards direct callers.
func badArgs() types.Result {
	return statusResult(types.NFS4ERR_BADXDR)
}
