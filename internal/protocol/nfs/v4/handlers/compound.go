package handlers

import (
	"context"
	"time"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/internal/telemetry"
)

// ProcessCompound executes one COMPOUND request.
//
// The envelope is checked first, in this order: minor version, empty
// request, NFSv4 access of the export the call arrived for, the 30
// operation ceiling and, for 4.1, a non-solitary EXCHANGE_ID. None of
// these paths runs a handler.
//
// Operations then run in order and execution stops at the first failure,
// whose result is the last one reported. For 4.1 the first operation must
// be SEQUENCE unless it is one of the session management operations, and a
// retransmission detected by SEQUENCE or CREATE_SESSION is answered from
// the slot's replay cache without executing anything else.
//
// The caller owns the returned response and must Free it.
func (h *Handler) ProcessCompound(ctx context.Context, args *types.Compound4Args, req *Request) *types.Compound4Response {
	if req == nil {
		req = &Request{}
	}
	start := time.Now()
	minor := args.MinorVersion
	resp := &types.Compound4Response{Tag: append([]byte(nil), args.Tag...)}

	ctx, span := telemetry.StartCompoundSpan(ctx, minor, len(args.Ops), req.ClientAddr)
	defer span.End()

	lc := logger.NewLogContext(req.ClientAddr).
		WithAuth(req.Creds.UID, req.Creds.GID, req.Creds.Flavor).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	if status, results := h.checkEnvelope(args, req); status != types.NFS4_OK {
		resp.Status = status
		resp.Results = results
		logger.DebugCtx(ctx, "NFSv4 COMPOUND rejected",
			"minor", minor,
			"ops", len(args.Ops),
			"status", types.StatusName(status))
		h.metrics.RecordEnvelopeReject(status)
		h.metrics.ObserveCompound(minor, status, time.Since(start))
		telemetry.SetAttributes(ctx, telemetry.NFSStatus(int(status)))
		return resp
	}
	if len(args.Ops) == 0 {
		h.metrics.ObserveCompound(minor, types.NFS4_OK, time.Since(start))
		return resp
	}

	c := newCompoundContext(ctx, h.Exports, req, minor, resp.Tag)
	defer c.release()

	resp.Results = make([]types.Result, 0, len(args.Ops))
	replayed := false

	for i, op := range args.Ops {
		c.OpPos = i

		if minor == types.NFS4_MINOR_VERSION_1 && c.Session != nil &&
			uint32(i) >= c.Session.ForeChannel.MaxOperations {
			resp.Results = append(resp.Results, types.NewStatus(op.OpCode, types.NFS4ERR_TOO_MANY_OPS))
			h.recordOp(c, op.OpCode, types.OpName(op.OpCode), types.NFS4ERR_TOO_MANY_OPS, 0)
			break
		}

		desc := lookupOp(minor, op.OpCode)

		var res types.Result
		opStart := time.Now()
		if minor == types.NFS4_MINOR_VERSION_1 && i == 0 && desc.OpCode != types.OP_ILLEGAL &&
			desc.OpCode != types.OP_SEQUENCE && !desc.sessionExempt {
			res = types.Result{Status: types.NFS4ERR_OP_NOT_IN_SESSION}
		} else {
			res = h.invoke(c, desc, op.Args)
		}
		res.OpCode = desc.OpCode
		resp.Results = append(resp.Results, res)
		h.recordOp(c, desc.OpCode, desc.Name, res.Status, time.Since(opStart))

		if i == 0 && c.Session != nil {
			c.ctx = logger.WithContext(c.ctx, logger.FromContext(c.ctx).WithSession(c.Session.ID.String()))
		}

		if res.Status != types.NFS4_OK {
			logger.DebugCtx(c.ctx, "NFSv4 COMPOUND op failed, stopping",
				"op_index", i,
				"op_name", desc.Name,
				"status", types.StatusName(res.Status))
			break
		}

		if c.ReplySlot != nil && c.UseReplayCache {
			replayed = true
			resp.Free()
			resp = h.replay(c, desc.OpCode)
			break
		}
	}

	if c.LeaseClient != nil {
		c.LeaseClient.UpdateAndReleaseLease()
	}

	if !replayed {
		resp.Status = resp.LastStatus()
		if c.ReplySlot != nil {
			c.ReplySlot.Store(resp)
		}
	}

	h.metrics.ObserveCompound(minor, resp.Status, time.Since(start))
	telemetry.SetAttributes(ctx, telemetry.NFSStatus(int(resp.Status)))
	return resp
}

// checkEnvelope validates the request before any operation runs. A
// non-OK status comes with the results to report, if any.
func (h *Handler) checkEnvelope(args *types.Compound4Args, req *Request) (uint32, []types.Result) {
	minor := args.MinorVersion
	if minor < h.minMinor || minor > h.maxMinor {
		return types.NFS4ERR_MINOR_VERS_MISMATCH, nil
	}
	if len(args.Ops) == 0 {
		return types.NFS4_OK, nil
	}

	if req.Export != nil && !req.Export.NFSv4 {
		results := make([]types.Result, 1)
		results[0] = types.NewStatus(args.Ops[0].OpCode, types.NFS4ERR_PERM)
		return types.NFS4ERR_PERM, results
	}

	if len(args.Ops) > types.MaxCompoundOps {
		return types.NFS4ERR_RESOURCE, nil
	}

	if minor == types.NFS4_MINOR_VERSION_1 && len(args.Ops) > 1 &&
		args.Ops[0].OpCode == types.OP_EXCHANGE_ID {
		return types.NFS4ERR_NOT_ONLY_OP, []types.Result{
			types.NewStatus(types.OP_EXCHANGE_ID, types.NFS4ERR_NOT_ONLY_OP),
		}
	}
	return types.NFS4_OK, nil
}

// invoke runs one handler inside its own span, with the operation name
// added to the log context.
func (h *Handler) invoke(c *CompoundContext, desc *opDescriptor, args any) types.Result {
	parent := c.ctx
	opCtx, span := telemetry.StartOpSpan(parent, desc.Name, c.OpPos)
	defer span.End()

	c.ctx = logger.WithContext(opCtx, logger.FromContext(parent).WithOp(desc.Name))
	res := desc.Handle(h, c, args)
	c.ctx = parent
	span.SetAttributes(telemetry.NFSStatus(int(res.Status)))
	return res
}

// replay builds the answer to a retransmitted request from the reply slot.
func (h *Handler) replay(c *CompoundContext, opcode uint32) *types.Compound4Response {
	cached := c.ReplySlot.Replay()
	if cached == nil {
		// The session went away between the slot check and now.
		return &types.Compound4Response{
			Status:  types.NFS4ERR_RETRY_UNCACHED_REP,
			Tag:     append([]byte(nil), c.Tag...),
			Results: []types.Result{types.NewStatus(opcode, types.NFS4ERR_RETRY_UNCACHED_REP)},
		}
	}

	h.metrics.RecordReplay(types.OpName(opcode))
	logger.DebugCtx(c.ctx, "NFSv4.1 reply served from replay cache",
		"op_name", types.OpName(opcode),
		"slot", c.ReplySlot.ID(),
		"status", types.StatusName(cached.Status))
	return cached
}

func (h *Handler) recordOp(c *CompoundContext, opcode uint32, name string, status uint32, d time.Duration) {
	logger.DebugCtx(c.ctx, "NFSv4 COMPOUND op dispatched",
		"op_index", c.OpPos,
		"opcode", opcode,
		"op_name", name,
		"status", types.StatusName(status))
	h.stats.record(c.MinorVersion, opcode, status)
	h.metrics.ObserveOp(c.MinorVersion, name, status, d)
}
