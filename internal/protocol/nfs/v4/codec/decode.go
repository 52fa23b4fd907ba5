// Package codec translates COMPOUND4args and COMPOUND4res between their
// XDR wire form and the types package.
//
// Fixed-shape argument structs go through github.com/rasky/go-xdr.
// Everything with a length bound or a union arm is read with the internal
// xdr helpers so oversized items are rejected before allocation.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	internalxdr "github.com/marmos91/nfs4d/internal/protocol/xdr"
)

// ErrGarbageArgs is returned for a request that cannot be decoded. The
// caller drops such a request without producing a COMPOUND reply.
var ErrGarbageArgs = errors.New("nfs4 codec: garbage arguments")

const (
	// maxHandleLen lets oversized filehandles through to PUTFH, which
	// answers NFS4ERR_BADHANDLE for anything above NFS4_FHSIZE.
	maxHandleLen = 4 * types.NFS4_FHSIZE

	// maxComponentLen lets long names through to the handlers, which answer
	// NFS4ERR_NAMETOOLONG above MaxNameLen.
	maxComponentLen = 4096

	maxBitmapWords  = 8
	maxMachineName  = 255
	maxAuthSysGIDs  = 16
	maxArrayEntries = 64
)

// Undecoded is the opcode given to the operations that follow one whose
// arguments this server does not parse. The engine never reaches them: the
// undecoded operation answers NFS4ERR_NOTSUPP or NFS4ERR_OP_ILLEGAL first.
const Undecoded = types.OP_ILLEGAL

// argDecoder reads the arguments of one operation.
type argDecoder func(r io.Reader) (any, error)

// Operations whose arguments are decoded. An opcode with a nil entry has
// no arguments.
var argDecoders = map[uint32]argDecoder{
	types.OP_GETFH:     nil,
	types.OP_LOOKUPP:   nil,
	types.OP_PUTPUBFH:  nil,
	types.OP_PUTROOTFH: nil,
	types.OP_READLINK:  nil,
	types.OP_RESTOREFH: nil,
	types.OP_SAVEFH:    nil,
	types.OP_ILLEGAL:   nil,

	types.OP_PUTFH:               decodePutFH,
	types.OP_LOOKUP:              decodeLookup,
	types.OP_GETATTR:             decodeGetAttr,
	types.OP_COMMIT:              fixed[types.CommitArgs],
	types.OP_REMOVE:              decodeRemove,
	types.OP_LINK:                decodeLink,
	types.OP_RENAME:              decodeRename,
	types.OP_SECINFO:             decodeSecInfo,
	types.OP_SETCLIENTID:         decodeSetClientID,
	types.OP_SETCLIENTID_CONFIRM: fixed[types.SetClientIDConfirmArgs],
	types.OP_RENEW:               fixed[types.RenewArgs],
	types.OP_RELEASE_LOCKOWNER:   decodeReleaseLockOwner,
	types.OP_EXCHANGE_ID:         decodeExchangeID,
	types.OP_CREATE_SESSION:      decodeCreateSession,
	types.OP_DESTROY_SESSION:     fixed[types.DestroySessionArgs],
	types.OP_SEQUENCE:            fixed[types.SequenceArgs],
	types.OP_DESTROY_CLIENTID:    fixed[types.DestroyClientIDArgs],
	types.OP_RECLAIM_COMPLETE:    fixed[types.ReclaimCompleteArgs],
}

// DecodeCompound parses a COMPOUND4args from data.
//
// At most MaxCompoundOps+1 operations are read: a longer request is
// rejected by the engine before any operation runs, so the rest of it is
// never looked at. Decoding also stops at the first operation whose
// arguments are not parsed here; it is kept with nil Args and the
// remaining declared operations are filled in as Undecoded.
func DecodeCompound(data []byte) (*types.Compound4Args, error) {
	r := bytes.NewReader(data)

	tag, err := internalxdr.DecodeOpaque(r, types.MaxTagLen)
	if err != nil {
		return nil, garbage("tag", err)
	}
	if len(tag) == 0 {
		tag = nil
	}
	minor, err := internalxdr.DecodeUint32(r)
	if err != nil {
		return nil, garbage("minorversion", err)
	}
	count, err := internalxdr.DecodeUint32(r)
	if err != nil {
		return nil, garbage("argarray length", err)
	}

	want := min(count, types.MaxCompoundOps+1)
	args := &types.Compound4Args{
		Tag:          tag,
		MinorVersion: minor,
		Ops:          make([]types.Op, 0, want),
	}

	for i := uint32(0); i < want; i++ {
		opcode, err := internalxdr.DecodeUint32(r)
		if err != nil {
			return nil, garbage(fmt.Sprintf("opcode %d", i), err)
		}

		dec, known := argDecoders[opcode]
		if !known {
			args.Ops = append(args.Ops, types.Op{OpCode: opcode})
			for j := i + 1; j < want; j++ {
				args.Ops = append(args.Ops, types.Op{OpCode: Undecoded})
			}
			break
		}

		op := types.Op{OpCode: opcode}
		if dec != nil {
			if op.Args, err = dec(r); err != nil {
				return nil, garbage(fmt.Sprintf("op %d (%s)", i, types.OpName(opcode)), err)
			}
		}
		args.Ops = append(args.Ops, op)
	}

	return args, nil
}

func garbage(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrGarbageArgs, what, err)
}

// fixed decodes an argument struct that has no bounded or union fields.
func fixed[T any](r io.Reader) (any, error) {
	v := new(T)
	if _, err := xdr.Unmarshal(r, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ============================================================================
// Filehandle and namespace operations
// ============================================================================

func decodePutFH(r io.Reader) (any, error) {
	fh, err := internalxdr.DecodeOpaque(r, maxHandleLen)
	if err != nil {
		return nil, err
	}
	return &types.PutFHArgs{Handle: fh}, nil
}

func decodeComponent(r io.Reader) (string, error) {
	return internalxdr.DecodeString(r, maxComponentLen)
}

func decodeLookup(r io.Reader) (any, error) {
	name, err := decodeComponent(r)
	if err != nil {
		return nil, err
	}
	return &types.LookupArgs{Name: name}, nil
}

func decodeGetAttr(r io.Reader) (any, error) {
	req, err := internalxdr.DecodeBitmap(r, maxBitmapWords)
	if err != nil {
		return nil, err
	}
	return &types.GetAttrArgs{Request: req}, nil
}

func decodeRemove(r io.Reader) (any, error) {
	name, err := decodeComponent(r)
	if err != nil {
		return nil, err
	}
	return &types.RemoveArgs{Target: name}, nil
}

func decodeLink(r io.Reader) (any, error) {
	name, err := decodeComponent(r)
	if err != nil {
		return nil, err
	}
	return &types.LinkArgs{NewName: name}, nil
}

func decodeRename(r io.Reader) (any, error) {
	oldName, err := decodeComponent(r)
	if err != nil {
		return nil, fmt.Errorf("oldname: %w", err)
	}
	newName, err := decodeComponent(r)
	if err != nil {
		return nil, fmt.Errorf("newname: %w", err)
	}
	return &types.RenameArgs{OldName: oldName, NewName: newName}, nil
}

func decodeSecInfo(r io.Reader) (any, error) {
	name, err := decodeComponent(r)
	if err != nil {
		return nil, err
	}
	return &types.SecInfoArgs{Name: name}, nil
}

// ============================================================================
// NFSv4.0 client id operations
// ============================================================================

func decodeSetClientID(r io.Reader) (any, error) {
	a := &types.SetClientIDArgs{}
	if err := internalxdr.DecodeFixedOpaque(r, a.Verifier[:]); err != nil {
		return nil, err
	}
	var err error
	if a.ID, err = internalxdr.DecodeOpaque(r, types.NFS4_OPAQUE_LIMIT); err != nil {
		return nil, fmt.Errorf("client id: %w", err)
	}
	if a.Callback.Program, err = internalxdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if a.Callback.NetID, err = internalxdr.DecodeString(r, types.NFS4_OPAQUE_LIMIT); err != nil {
		return nil, fmt.Errorf("callback netid: %w", err)
	}
	if a.Callback.Addr, err = internalxdr.DecodeString(r, types.NFS4_OPAQUE_LIMIT); err != nil {
		return nil, fmt.Errorf("callback addr: %w", err)
	}
	if a.CallbackIdent, err = internalxdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeReleaseLockOwner(r io.Reader) (any, error) {
	a := &types.ReleaseLockOwnerArgs{}
	var err error
	if a.ClientID, err = internalxdr.DecodeUint64(r); err != nil {
		return nil, err
	}
	if a.Owner, err = internalxdr.DecodeOpaque(r, types.NFS4_OPAQUE_LIMIT); err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	return a, nil
}

// ============================================================================
// NFSv4.1 session operations
// ============================================================================

func decodeExchangeID(r io.Reader) (any, error) {
	a := &types.ExchangeIDArgs{}
	if err := internalxdr.DecodeFixedOpaque(r, a.Verifier[:]); err != nil {
		return nil, err
	}
	var err error
	if a.OwnerID, err = internalxdr.DecodeOpaque(r, types.NFS4_OPAQUE_LIMIT); err != nil {
		return nil, fmt.Errorf("owner id: %w", err)
	}
	if a.Flags, err = internalxdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if a.StateProtect, err = internalxdr.DecodeDiscriminant(r); err != nil {
		return nil, err
	}
	if err := skipStateProtect(r, a.StateProtect); err != nil {
		return nil, fmt.Errorf("state protection: %w", err)
	}

	n, err := internalxdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	if n > 1 {
		return nil, fmt.Errorf("%d implementation ids: %w", n, internalxdr.ErrTooLong)
	}
	for ; n > 0; n-- {
		var id types.ImplID
		if id.Domain, err = internalxdr.DecodeString(r, types.NFS4_OPAQUE_LIMIT); err != nil {
			return nil, err
		}
		if id.Name, err = internalxdr.DecodeString(r, types.NFS4_OPAQUE_LIMIT); err != nil {
			return nil, err
		}
		secs, err := internalxdr.DecodeUint64(r)
		if err != nil {
			return nil, err
		}
		if _, err := internalxdr.DecodeUint32(r); err != nil {
			return nil, err
		}
		id.Date = int64(secs)
		a.ImplID = append(a.ImplID, id)
	}
	return a, nil
}

// skipStateProtect consumes the body of a state_protect4_a arm. Only the
// arm is kept: the server answers SP4_NONE whatever the client asks for.
func skipStateProtect(r io.Reader, how uint32) error {
	switch how {
	case types.SP4_NONE:
		return nil
	case types.SP4_MACH_CRED:
		return skipBitmaps(r, 2)
	case types.SP4_SSV:
		if err := skipBitmaps(r, 2); err != nil {
			return err
		}
		for range 2 {
			if err := skipOpaqueArray(r); err != nil {
				return err
			}
		}
		// ssp_window, ssp_num_gss_handles
		for range 2 {
			if _, err := internalxdr.DecodeUint32(r); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown arm %d", how)
	}
}

func skipBitmaps(r io.Reader, n int) error {
	for range n {
		if _, err := internalxdr.DecodeBitmap(r, maxBitmapWords); err != nil {
			return err
		}
	}
	return nil
}

func skipOpaqueArray(r io.Reader) error {
	n, err := internalxdr.DecodeUint32(r)
	if err != nil {
		return err
	}
	if n > maxArrayEntries {
		return fmt.Errorf("array of %d entries: %w", n, internalxdr.ErrTooLong)
	}
	for range n {
		if _, err := internalxdr.DecodeOpaque(r, types.NFS4_OPAQUE_LIMIT); err != nil {
			return err
		}
	}
	return nil
}

func decodeChannelAttrs(r io.Reader) (types.ChannelAttrs, error) {
	var c types.ChannelAttrs
	for _, f := range []*uint32{
		&c.HeaderPadSize,
		&c.MaxRequestSize,
		&c.MaxResponseSize,
		&c.MaxResponseSizeCached,
		&c.MaxOperations,
		&c.MaxRequests,
	} {
		v, err := internalxdr.DecodeUint32(r)
		if err != nil {
			return c, err
		}
		*f = v
	}

	ird, err := internalxdr.DecodeBitmap(r, 1)
	if err != nil {
		return c, fmt.Errorf("rdma ird: %w", err)
	}
	if len(ird) > 0 {
		c.RdmaIrd = ird
	}
	return c, nil
}

func decodeCreateSession(r io.Reader) (any, error) {
	a := &types.CreateSessionArgs{}
	var err error
	if a.ClientID, err = internalxdr.DecodeUint64(r); err != nil {
		return nil, err
	}
	if a.Sequence, err = internalxdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if a.Flags, err = internalxdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if a.ForeChannel, err = decodeChannelAttrs(r); err != nil {
		return nil, fmt.Errorf("fore channel: %w", err)
	}
	if a.BackChannel, err = decodeChannelAttrs(r); err != nil {
		return nil, fmt.Errorf("back channel: %w", err)
	}
	if a.CallbackProgram, err = internalxdr.DecodeUint32(r); err != nil {
		return nil, err
	}

	n, err := internalxdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	if n > maxArrayEntries {
		return nil, fmt.Errorf("%d callback flavors: %w", n, internalxdr.ErrTooLong)
	}
	for range n {
		p, err := decodeCallbackSecParms(r)
		if err != nil {
			return nil, fmt.Errorf("callback security: %w", err)
		}
		a.SecParms = append(a.SecParms, p)
	}
	return a, nil
}

func decodeCallbackSecParms(r io.Reader) (types.CallbackSecParms, error) {
	var p types.CallbackSecParms
	var err error
	if p.Flavor, err = internalxdr.DecodeDiscriminant(r); err != nil {
		return p, err
	}

	switch p.Flavor {
	case types.AUTH_NONE:
	case types.AUTH_SYS:
		if _, err = internalxdr.DecodeUint32(r); err != nil { // stamp
			return p, err
		}
		if _, err = internalxdr.DecodeString(r, maxMachineName); err != nil {
			return p, err
		}
		if p.UID, err = internalxdr.DecodeUint32(r); err != nil {
			return p, err
		}
		if p.GID, err = internalxdr.DecodeUint32(r); err != nil {
			return p, err
		}
		if _, err = internalxdr.DecodeBitmap(r, maxAuthSysGIDs); err != nil {
			return p, fmt.Errorf("gids: %w", err)
		}
	case types.RPCSEC_GSS:
		if _, err = internalxdr.DecodeUint32(r); err != nil { // service
			return p, err
		}
		for range 2 {
			if _, err = internalxdr.DecodeOpaque(r, types.NFS4_OPAQUE_LIMIT); err != nil {
				return p, err
			}
		}
	default:
		return p, fmt.Errorf("unknown flavor %d", p.Flavor)
	}
	return p, nil
}
