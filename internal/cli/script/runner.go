package script

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/attrs"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/codec"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/handlers"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// defaultOwner is the client owner used when a script does not name one.
const defaultOwner = "nfs4d-script"

// Outcome is the result of one compound.
type Outcome struct {
	Tag     string
	Minor   uint32
	Status  uint32
	Request []byte
	Reply   []byte
	Ops     []OpOutcome
}

// OpOutcome is the result of one executed operation.
type OpOutcome struct {
	Index  int
	Op     string
	Status uint32
	Detail string
}

// Runner executes compounds against an engine, carrying client and
// session state between them. It is not safe for concurrent use.
type Runner struct {
	engine *handlers.Handler
	req    *handlers.Request

	clientID uint64
	confirm  types.Verifier
	csSeq    uint32
	session  types.SessionID
	slotSeqs map[uint32]uint32
	lastFH   []byte
}

// NewRunner creates a runner that sends every compound as creds.
func NewRunner(engine *handlers.Handler, creds types.Credentials) *Runner {
	return &Runner{
		engine:   engine,
		req:      &handlers.Request{Creds: creds, ClientAddr: "script"},
		slotSeqs: make(map[uint32]uint32),
	}
}

// Run executes every compound of s in order. A compound that fails is not
// an error; only a script that cannot be encoded is.
func (r *Runner) Run(ctx context.Context, s *Script) ([]*Outcome, error) {
	out := make([]*Outcome, 0, len(s.Compounds))
	for i, c := range s.Compounds {
		args, err := r.build(c)
		if err != nil {
			return out, fmt.Errorf("compound %d: %w", i, err)
		}
		wire, err := codec.EncodeCompound(args)
		if err != nil {
			return out, fmt.Errorf("compound %d: %w", i, err)
		}
		o, err := r.Execute(ctx, wire)
		if err != nil {
			return out, fmt.Errorf("compound %d: %w", i, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Execute decodes one wire COMPOUND4args, runs it and returns the outcome.
// Arguments that fail to decode are returned as codec.ErrGarbageArgs.
func (r *Runner) Execute(ctx context.Context, wire []byte) (*Outcome, error) {
	args, err := codec.DecodeCompound(wire)
	if err != nil {
		return nil, err
	}

	resp := r.engine.ProcessCompound(ctx, args, r.req)
	defer resp.Free()

	o := &Outcome{
		Tag:     string(args.Tag),
		Minor:   args.MinorVersion,
		Status:  resp.Status,
		Request: wire,
		Reply:   codec.EncodeResponse(resp),
		Ops:     make([]OpOutcome, 0, len(resp.Results)),
	}
	for i := range resp.Results {
		res := &resp.Results[i]
		o.Ops = append(o.Ops, OpOutcome{
			Index:  i,
			Op:     types.OpName(res.OpCode),
			Status: res.Status,
			Detail: r.observe(res),
		})
	}
	return o, nil
}

// observe records the client state a result carries and describes it.
func (r *Runner) observe(res *types.Result) string {
	if res.Status != types.NFS4_OK {
		if b, ok := res.Body.(*types.ClientInUseRes); ok {
			return fmt.Sprintf("in use by %s %s", b.NetID, b.Addr)
		}
		return ""
	}

	switch b := res.Body.(type) {
	case *types.GetFHRes:
		r.lastFH = append([]byte(nil), b.Handle...)
		return hex.EncodeToString(b.Handle)
	case *types.ReadlinkRes:
		return string(b.Link)
	case *types.GetAttrRes:
		return fmt.Sprintf("attrs=%v (%d bytes)", attrs.Bits(b.Mask), len(b.Vals))
	case *types.SecInfoRes:
		return fmt.Sprintf("flavors=%v", b.Flavors())
	case *types.ChangeInfoRes:
		return fmt.Sprintf("change %d -> %d", b.CInfo.Before, b.CInfo.After)
	case *types.RenameRes:
		return fmt.Sprintf("source %d -> %d, target %d -> %d",
			b.Source.Before, b.Source.After, b.Target.Before, b.Target.After)
	case *types.CommitRes:
		return "verifier=" + hex.EncodeToString(b.Verifier[:])
	case *types.SetClientIDRes:
		r.clientID = b.ClientID
		r.confirm = b.Verifier
		return fmt.Sprintf("clientid=%016x", b.ClientID)
	case *types.ExchangeIDRes:
		r.clientID = b.ClientID
		r.csSeq = b.SequenceID
		return fmt.Sprintf("clientid=%016x seq=%d flags=%#x", b.ClientID, b.SequenceID, b.Flags)
	case *types.CreateSessionRes:
		r.session = b.SessionID
		r.csSeq = b.Sequence + 1
		clear(r.slotSeqs)
		return fmt.Sprintf("session=%s slots=%d", b.SessionID, b.ForeChannel.MaxRequests)
	case *types.SequenceRes:
		r.slotSeqs[b.SlotID] = b.SequenceID
		return fmt.Sprintf("slot=%d seq=%d", b.SlotID, b.SequenceID)
	}
	return ""
}

// build turns a scripted compound into arguments using the carried state.
func (r *Runner) build(c Compound) (*types.Compound4Args, error) {
	args := &types.Compound4Args{MinorVersion: c.Minor}
	if c.Tag != "" {
		args.Tag = []byte(c.Tag)
	}

	for i, step := range c.Ops {
		opcode, err := step.OpCode()
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		a, err := r.opArgs(opcode, step)
		if err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, types.OpName(opcode), err)
		}
		args.Ops = append(args.Ops, types.Op{OpCode: opcode, Args: a})
	}
	return args, nil
}

func (r *Runner) opArgs(opcode uint32, step Op) (any, error) {
	switch opcode {
	case types.OP_PUTFH:
		fh, err := r.handle(step.FH)
		if err != nil {
			return nil, err
		}
		return &types.PutFHArgs{Handle: fh}, nil
	case types.OP_LOOKUP:
		return &types.LookupArgs{Name: step.Name}, nil
	case types.OP_SECINFO:
		return &types.SecInfoArgs{Name: step.Name}, nil
	case types.OP_REMOVE:
		return &types.RemoveArgs{Target: step.Name}, nil
	case types.OP_LINK:
		return &types.LinkArgs{NewName: step.Name}, nil
	case types.OP_RENAME:
		return &types.RenameArgs{OldName: step.Name, NewName: step.NewName}, nil
	case types.OP_GETATTR:
		mask, err := attrMask(step.Attrs)
		if err != nil {
			return nil, err
		}
		return &types.GetAttrArgs{Request: mask}, nil
	case types.OP_COMMIT:
		return &types.CommitArgs{Offset: step.Offset, Count: step.Count}, nil
	case types.OP_SETCLIENTID:
		owner := ownerOf(step)
		return &types.SetClientIDArgs{
			Verifier: verifierOf(owner),
			ID:       []byte(owner),
			Callback: types.CallbackClient{Program: 0x40000000, NetID: "tcp", Addr: "127.0.0.1.0.0"},
		}, nil
	case types.OP_SETCLIENTID_CONFIRM:
		return &types.SetClientIDConfirmArgs{ClientID: r.clientID, Verifier: r.confirm}, nil
	case types.OP_RENEW:
		return &types.RenewArgs{ClientID: r.clientID}, nil
	case types.OP_RELEASE_LOCKOWNER:
		return &types.ReleaseLockOwnerArgs{ClientID: r.clientID, Owner: []byte(ownerOf(step))}, nil
	case types.OP_EXCHANGE_ID:
		owner := ownerOf(step)
		return &types.ExchangeIDArgs{
			Verifier:     verifierOf(owner),
			OwnerID:      []byte(owner),
			Flags:        types.EXCHGID4_FLAG_USE_NON_PNFS,
			StateProtect: types.SP4_NONE,
			ImplID:       []types.ImplID{{Domain: "nfs4d.local", Name: "nfs4d exec"}},
		}, nil
	case types.OP_CREATE_SESSION:
		return &types.CreateSessionArgs{
			ClientID: r.clientID,
			Sequence: r.csSeq,
			ForeChannel: types.ChannelAttrs{
				MaxRequestSize:        1 << 20,
				MaxResponseSize:       1 << 20,
				MaxResponseSizeCached: 64 << 10,
				MaxOperations:         types.MaxCompoundOps,
				MaxRequests:           8,
			},
			BackChannel: types.ChannelAttrs{
				MaxRequestSize:  4096,
				MaxResponseSize: 4096,
				MaxOperations:   2,
				MaxRequests:     1,
			},
			CallbackProgram: 0x40000000,
			SecParms:        []types.CallbackSecParms{{Flavor: types.AUTH_NONE}},
		}, nil
	case types.OP_DESTROY_SESSION:
		return &types.DestroySessionArgs{SessionID: r.session}, nil
	case types.OP_SEQUENCE:
		return &types.SequenceArgs{
			SessionID:     r.session,
			SequenceID:    r.slotSeqs[step.Slot] + 1,
			SlotID:        step.Slot,
			HighestSlotID: step.Slot,
			CacheThis:     step.CacheThis,
		}, nil
	case types.OP_DESTROY_CLIENTID:
		return &types.DestroyClientIDArgs{ClientID: r.clientID}, nil
	case types.OP_RECLAIM_COMPLETE:
		return &types.ReclaimCompleteArgs{OneFS: step.OneFS}, nil
	}
	return nil, nil
}

func (r *Runner) handle(fh string) ([]byte, error) {
	if fh == LastHandle || fh == "" {
		if r.lastFH == nil {
			return nil, fmt.Errorf("no GETFH result to reuse")
		}
		return r.lastFH, nil
	}
	b, err := hex.DecodeString(fh)
	if err != nil {
		return nil, fmt.Errorf("invalid filehandle %q: %w", fh, err)
	}
	return b, nil
}

func attrMask(names []string) ([]uint32, error) {
	if len(names) == 0 {
		return attrs.SupportedAttrs(), nil
	}
	var mask []uint32
	for _, name := range names {
		bit, ok := attrs.ByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q", name)
		}
		attrs.SetBit(&mask, bit)
	}
	return mask, nil
}

func ownerOf(step Op) string {
	if step.Owner != "" {
		return step.Owner
	}
	return defaultOwner
}

// verifierOf derives a stable boot verifier from the owner so repeated
// runs look like the same client instance.
func verifierOf(owner string) types.Verifier {
	var v types.Verifier
	sum := sha256.Sum256([]byte(owner))
	copy(v[:], sum[:])
	return v
}
