package types

import (
	"bytes"
	"encoding/binary"

	"github.com/marmos91/nfs4d/internal/protocol/xdr"
	"github.com/marmos91/nfs4d/pkg/bufpool"
)

// ResultBody is the op-specific part of a result.
//
// Bodies that carry variable-length data take it from bufpool. Release
// returns those buffers and Clone deep-copies them into fresh ones, so a
// body and its clone never share storage.
type ResultBody interface {
	Encode(buf *bytes.Buffer)
	Clone() ResultBody
	Release()
}

// Result is one nfs_resop4. Body is nil for operations whose success reply
// carries nothing beyond the status, and for failed operations.
type Result struct {
	OpCode uint32
	Status uint32
	Body   ResultBody
}

// NewStatus builds a result that carries only a status.
func NewStatus(opcode, status uint32) Result {
	return Result{OpCode: opcode, Status: status}
}

// Free returns the body's pooled buffers and drops the body.
func (r *Result) Free() {
	if r.Body != nil {
		r.Body.Release()
		r.Body = nil
	}
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	c := r
	if r.Body != nil {
		c.Body = r.Body.Clone()
	}
	return c
}

// Encode appends the wire form of r.
func (r Result) Encode(buf *bytes.Buffer) {
	xdr.WriteUint32(buf, r.OpCode)
	xdr.WriteUint32(buf, r.Status)
	if r.Body != nil {
		r.Body.Encode(buf)
	}
}

// ============================================================================
// Bodies owning pooled buffers
// ============================================================================

// GetFHRes carries a copy of the current filehandle.
type GetFHRes struct {
	Handle []byte
}

func (b *GetFHRes) Encode(buf *bytes.Buffer) { xdr.WriteOpaque(buf, b.Handle) }
func (b *GetFHRes) Clone() ResultBody        { return &GetFHRes{Handle: bufpool.Clone(b.Handle)} }
func (b *GetFHRes) Release() {
	bufpool.Put(b.Handle)
	b.Handle = nil
}

// ReadlinkRes carries a symlink target. An empty target owns no buffer.
type ReadlinkRes struct {
	Link []byte
}

func (b *ReadlinkRes) Encode(buf *bytes.Buffer) { xdr.WriteOpaque(buf, b.Link) }
func (b *ReadlinkRes) Clone() ResultBody        { return &ReadlinkRes{Link: bufpool.Clone(b.Link)} }
func (b *ReadlinkRes) Release() {
	if len(b.Link) > 0 {
		bufpool.Put(b.Link)
	}
	b.Link = nil
}

// GetAttrRes carries an fattr4: the mask of returned attributes and their
// packed values.
type GetAttrRes struct {
	Mask []uint32
	Vals []byte
}

func (b *GetAttrRes) Encode(buf *bytes.Buffer) {
	xdr.WriteBitmap(buf, b.Mask)
	xdr.WriteOpaque(buf, b.Vals)
}

func (b *GetAttrRes) Clone() ResultBody {
	return &GetAttrRes{
		Mask: append([]uint32(nil), b.Mask...),
		Vals: bufpool.Clone(b.Vals),
	}
}

func (b *GetAttrRes) Release() {
	bufpool.Put(b.Vals)
	b.Vals = nil
}

// ExchangeIDRes is EXCHANGE_ID4resok. The server owner major id and the
// scope are pooled.
type ExchangeIDRes struct {
	ClientID     uint64
	SequenceID   uint32
	Flags        uint32
	StateProtect uint32
	OwnerMinor   uint64
	OwnerMajor   []byte
	Scope        []byte
}

func (b *ExchangeIDRes) Encode(buf *bytes.Buffer) {
	xdr.WriteUint64(buf, b.ClientID)
	xdr.WriteUint32(buf, b.SequenceID)
	xdr.WriteUint32(buf, b.Flags)
	xdr.WriteDiscriminant(buf, b.StateProtect)
	xdr.WriteUint64(buf, b.OwnerMinor)
	xdr.WriteOpaque(buf, b.OwnerMajor)
	xdr.WriteOpaque(buf, b.Scope)
	xdr.WriteUint32(buf, 0) // eir_server_impl_id<1>
}

func (b *ExchangeIDRes) Clone() ResultBody {
	c := *b
	c.OwnerMajor = bufpool.Clone(b.OwnerMajor)
	c.Scope = bufpool.Clone(b.Scope)
	return &c
}

func (b *ExchangeIDRes) Release() {
	bufpool.Put(b.OwnerMajor)
	bufpool.Put(b.Scope)
	b.OwnerMajor, b.Scope = nil, nil
}

// SecInfoRes carries the accepted security flavors, packed big-endian into
// a pooled buffer.
type SecInfoRes struct {
	packed []byte
}

// NewSecInfoRes packs flavors into a pooled buffer.
func NewSecInfoRes(flavors ...uint32) *SecInfoRes {
	if len(flavors) == 0 {
		return &SecInfoRes{}
	}
	packed := bufpool.Get(4 * len(flavors))
	for i, f := range flavors {
		binary.BigEndian.PutUint32(packed[4*i:], f)
	}
	return &SecInfoRes{packed: packed}
}

// Flavors unpacks the flavor list.
func (b *SecInfoRes) Flavors() []uint32 {
	out := make([]uint32, len(b.packed)/4)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(b.packed[4*i:])
	}
	return out
}

func (b *SecInfoRes) Encode(buf *bytes.Buffer) {
	flavors := b.Flavors()
	xdr.WriteUint32(buf, uint32(len(flavors)))
	for _, f := range flavors {
		xdr.WriteUint32(buf, f)
	}
}

func (b *SecInfoRes) Clone() ResultBody { return &SecInfoRes{packed: bufpool.Clone(b.packed)} }
func (b *SecInfoRes) Release() {
	bufpool.Put(b.packed)
	b.packed = nil
}

// ============================================================================
// Plain bodies
// ============================================================================

// ChangeInfo is change_info4.
type ChangeInfo struct {
	Atomic bool
	Before uint64
	After  uint64
}

func (c ChangeInfo) encode(buf *bytes.Buffer) {
	xdr.WriteBool(buf, c.Atomic)
	xdr.WriteUint64(buf, c.Before)
	xdr.WriteUint64(buf, c.After)
}

// ChangeInfoRes is the success body of REMOVE and LINK.
type ChangeInfoRes struct {
	CInfo ChangeInfo
}

func (b *ChangeInfoRes) Encode(buf *bytes.Buffer) { b.CInfo.encode(buf) }
func (b *ChangeInfoRes) Clone() ResultBody        { c := *b; return &c }
func (b *ChangeInfoRes) Release()                 {}

// RenameRes is RENAME4resok.
type RenameRes struct {
	Source ChangeInfo
	Target ChangeInfo
}

func (b *RenameRes) Encode(buf *bytes.Buffer) {
	b.Source.encode(buf)
	b.Target.encode(buf)
}
func (b *RenameRes) Clone() ResultBody { c := *b; return &c }
func (b *RenameRes) Release()          {}

// CommitRes is COMMIT4resok.
type CommitRes struct {
	Verifier Verifier
}

func (b *CommitRes) Encode(buf *bytes.Buffer) { buf.Write(b.Verifier[:]) }
func (b *CommitRes) Clone() ResultBody        { c := *b; return &c }
func (b *CommitRes) Release()                 {}

// SetClientIDRes is SETCLIENTID4resok.
type SetClientIDRes struct {
	ClientID uint64
	Verifier Verifier
}

func (b *SetClientIDRes) Encode(buf *bytes.Buffer) {
	xdr.WriteUint64(buf, b.ClientID)
	buf.Write(b.Verifier[:])
}
func (b *SetClientIDRes) Clone() ResultBody { c := *b; return &c }
func (b *SetClientIDRes) Release()          {}

// ClientInUseRes is the clientaddr4 returned with NFS4ERR_CLID_INUSE.
type ClientInUseRes struct {
	NetID string
	Addr  string
}

func (b *ClientInUseRes) Encode(buf *bytes.Buffer) {
	xdr.WriteString(buf, b.NetID)
	xdr.WriteString(buf, b.Addr)
}
func (b *ClientInUseRes) Clone() ResultBody { c := *b; return &c }
func (b *ClientInUseRes) Release()          {}

// CreateSessionRes is CREATE_SESSION4resok.
type CreateSessionRes struct {
	SessionID   SessionID
	Sequence    uint32
	Flags       uint32
	ForeChannel ChannelAttrs
	BackChannel ChannelAttrs
}

func (b *CreateSessionRes) Encode(buf *bytes.Buffer) {
	buf.Write(b.SessionID[:])
	xdr.WriteUint32(buf, b.Sequence)
	xdr.WriteUint32(buf, b.Flags)
	EncodeChannelAttrs(buf, b.ForeChannel)
	EncodeChannelAttrs(buf, b.BackChannel)
}

func (b *CreateSessionRes) Clone() ResultBody {
	c := *b
	c.ForeChannel.RdmaIrd = append([]uint32(nil), b.ForeChannel.RdmaIrd...)
	c.BackChannel.RdmaIrd = append([]uint32(nil), b.BackChannel.RdmaIrd...)
	return &c
}
func (b *CreateSessionRes) Release() {}

// SequenceRes is SEQUENCE4resok.
type SequenceRes struct {
	SessionID           SessionID
	SequenceID          uint32
	SlotID              uint32
	HighestSlotID       uint32
	TargetHighestSlotID uint32
	StatusFlags         uint32
}

func (b *SequenceRes) Encode(buf *bytes.Buffer) {
	buf.Write(b.SessionID[:])
	xdr.WriteUint32(buf, b.SequenceID)
	xdr.WriteUint32(buf, b.SlotID)
	xdr.WriteUint32(buf, b.HighestSlotID)
	xdr.WriteUint32(buf, b.TargetHighestSlotID)
	xdr.WriteUint32(buf, b.StatusFlags)
}
func (b *SequenceRes) Clone() ResultBody { c := *b; return &c }
func (b *SequenceRes) Release()          {}

// EncodeChannelAttrs appends channel_attrs4.
func EncodeChannelAttrs(buf *bytes.Buffer, c ChannelAttrs) {
	xdr.WriteUint32(buf, c.HeaderPadSize)
	xdr.WriteUint32(buf, c.MaxRequestSize)
	xdr.WriteUint32(buf, c.MaxResponseSize)
	xdr.WriteUint32(buf, c.MaxResponseSizeCached)
	xdr.WriteUint32(buf, c.MaxOperations)
	xdr.WriteUint32(buf, c.MaxRequests)
	xdr.WriteUint32(buf, uint32(len(c.RdmaIrd)))
	for _, v := range c.RdmaIrd {
		xdr.WriteUint32(buf, v)
	}
}
