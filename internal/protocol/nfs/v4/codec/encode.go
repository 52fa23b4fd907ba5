package codec

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	internalxdr "github.com/marmos91/nfs4d/internal/protocol/xdr"
)

// EncodeResponse returns the wire form of a COMPOUND4res. The response is
// not freed.
func EncodeResponse(resp *types.Compound4Response) []byte {
	var buf bytes.Buffer
	internalxdr.WriteUint32(&buf, resp.Status)
	internalxdr.WriteOpaque(&buf, resp.Tag)
	internalxdr.WriteUint32(&buf, uint32(len(resp.Results)))
	for _, res := range resp.Results {
		res.Encode(&buf)
	}
	return buf.Bytes()
}

// EncodeCompound returns the wire form of a COMPOUND4args. It is the
// inverse of DecodeCompound for every operation decoded there; an
// operation with arguments of any other type is an error.
func EncodeCompound(args *types.Compound4Args) ([]byte, error) {
	var buf bytes.Buffer
	internalxdr.WriteOpaque(&buf, args.Tag)
	internalxdr.WriteUint32(&buf, args.MinorVersion)
	internalxdr.WriteUint32(&buf, uint32(len(args.Ops)))

	for i, op := range args.Ops {
		internalxdr.WriteUint32(&buf, op.OpCode)
		if err := encodeArgs(&buf, op); err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, types.OpName(op.OpCode), err)
		}
	}
	return buf.Bytes(), nil
}

func encodeArgs(buf *bytes.Buffer, op types.Op) error {
	switch a := op.Args.(type) {
	case nil:
		if dec, known := argDecoders[op.OpCode]; known && dec != nil {
			return fmt.Errorf("missing arguments")
		}
	case *types.PutFHArgs:
		internalxdr.WriteOpaque(buf, a.Handle)
	case *types.LookupArgs:
		internalxdr.WriteString(buf, a.Name)
	case *types.GetAttrArgs:
		internalxdr.WriteBitmap(buf, a.Request)
	case *types.RemoveArgs:
		internalxdr.WriteString(buf, a.Target)
	case *types.LinkArgs:
		internalxdr.WriteString(buf, a.NewName)
	case *types.RenameArgs:
		internalxdr.WriteString(buf, a.OldName)
		internalxdr.WriteString(buf, a.NewName)
	case *types.SecInfoArgs:
		internalxdr.WriteString(buf, a.Name)
	case *types.SetClientIDArgs:
		internalxdr.WriteFixedOpaque(buf, a.Verifier[:])
		internalxdr.WriteOpaque(buf, a.ID)
		internalxdr.WriteUint32(buf, a.Callback.Program)
		internalxdr.WriteString(buf, a.Callback.NetID)
		internalxdr.WriteString(buf, a.Callback.Addr)
		internalxdr.WriteUint32(buf, a.CallbackIdent)
	case *types.ReleaseLockOwnerArgs:
		internalxdr.WriteUint64(buf, a.ClientID)
		internalxdr.WriteOpaque(buf, a.Owner)
	case *types.ExchangeIDArgs:
		if a.StateProtect != types.SP4_NONE {
			return fmt.Errorf("state protection %d not encodable", a.StateProtect)
		}
		internalxdr.WriteFixedOpaque(buf, a.Verifier[:])
		internalxdr.WriteOpaque(buf, a.OwnerID)
		internalxdr.WriteUint32(buf, a.Flags)
		internalxdr.WriteDiscriminant(buf, types.SP4_NONE)
		internalxdr.WriteUint32(buf, uint32(len(a.ImplID)))
		for _, id := range a.ImplID {
			internalxdr.WriteString(buf, id.Domain)
			internalxdr.WriteString(buf, id.Name)
			internalxdr.WriteUint64(buf, uint64(id.Date))
			internalxdr.WriteUint32(buf, 0)
		}
	case *types.CreateSessionArgs:
		internalxdr.WriteUint64(buf, a.ClientID)
		internalxdr.WriteUint32(buf, a.Sequence)
		internalxdr.WriteUint32(buf, a.Flags)
		encodeChannelAttrs(buf, a.ForeChannel)
		encodeChannelAttrs(buf, a.BackChannel)
		internalxdr.WriteUint32(buf, a.CallbackProgram)
		internalxdr.WriteUint32(buf, uint32(len(a.SecParms)))
		for _, p := range a.SecParms {
			if err := encodeCallbackSecParms(buf, p); err != nil {
				return err
			}
		}
	case *types.CommitArgs, *types.SetClientIDConfirmArgs, *types.RenewArgs,
		*types.DestroySessionArgs, *types.SequenceArgs, *types.DestroyClientIDArgs,
		*types.ReclaimCompleteArgs:
		if _, err := xdr.Marshal(buf, a); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported argument type %T", op.Args)
	}
	return nil
}

func encodeChannelAttrs(buf *bytes.Buffer, c types.ChannelAttrs) {
	internalxdr.WriteUint32(buf, c.HeaderPadSize)
	internalxdr.WriteUint32(buf, c.MaxRequestSize)
	internalxdr.WriteUint32(buf, c.MaxResponseSize)
	internalxdr.WriteUint32(buf, c.MaxResponseSizeCached)
	internalxdr.WriteUint32(buf, c.MaxOperations)
	internalxdr.WriteUint32(buf, c.MaxRequests)
	internalxdr.WriteBitmap(buf, c.RdmaIrd)
}

func encodeCallbackSecParms(buf *bytes.Buffer, p types.CallbackSecParms) error {
	internalxdr.WriteDiscriminant(buf, p.Flavor)
	switch p.Flavor {
	case types.AUTH_NONE:
	case types.AUTH_SYS:
		internalxdr.WriteUint32(buf, 0)
		internalxdr.WriteString(buf, "")
		internalxdr.WriteUint32(buf, p.UID)
		internalxdr.WriteUint32(buf, p.GID)
		internalxdr.WriteUint32(buf, 0)
	default:
		return fmt.Errorf("callback flavor %d not encodable", p.Flavor)
	}
	return nil
}
