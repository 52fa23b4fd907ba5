package handlers

import (
	"context"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/pseudofs"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/state"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/marmos91/nfs4d/pkg/export"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

// fhBuffer is a filehandle slot with the NFSv4 128-byte ceiling.
type fhBuffer struct {
	buf [types.NFS4_FHSIZE]byte
	n   int
}

// set copies fh into the slot. It reports false, leaving the slot
// untouched, when fh does not fit.
func (b *fhBuffer) set(fh []byte) bool {
	if len(fh) > len(b.buf) {
		return false
	}
	b.n = copy(b.buf[:], fh)
	return true
}

func (b *fhBuffer) bytes() []byte { return b.buf[:b.n] }
func (b *fhBuffer) empty() bool   { return b.n == 0 }
func (b *fhBuffer) reset()        { b.n = 0 }

// position is what the current or saved filehandle designates.
//
// Exactly one of node and entry is set for a resolved handle. Handles in
// the extended attribute namespace carry neither: they only remember the
// export so later operations can answer NFS4ERR_NOTSUPP.
type position struct {
	fh    fhBuffer
	typ   objstore.FileType
	node  *pseudofs.Node
	entry *objstore.Entry
	exp   *export.Export
	xattr bool
}

func (p *position) valid() bool  { return !p.fh.empty() }
func (p *position) pseudo() bool { return p.node != nil }
func (p *position) isDir() bool  { return p.typ == objstore.TypeDirectory }

// sameObject reports whether p and o designate the same object.
func (p *position) sameObject(o *position) bool {
	switch {
	case p.entry != nil || o.entry != nil:
		return p.entry == o.entry
	case p.node != nil || o.node != nil:
		return p.node == o.node
	default:
		return p.exp == o.exp && string(p.fh.bytes()) == string(o.fh.bytes())
	}
}

// CompoundContext is the mutable state shared by the operations of one
// COMPOUND request. It is never shared between goroutines.
type CompoundContext struct {
	ctx context.Context

	// Exports is borrowed from the handler for the duration of the request.
	Exports *export.Table

	Creds        types.Credentials
	ClientAddr   string
	MinorVersion uint32
	Tag          []byte

	cur   position
	saved position

	// Filehandles established by PUTROOTFH, PUTPUBFH and junction crossings.
	RootFH      fhBuffer
	PublicFH    fhBuffer
	MountedOnFH fhBuffer

	// OpPos is the index of the operation being executed.
	OpPos int

	// Session is bound by SEQUENCE.
	Session *state.Session

	// ReplySlot is the slot the reply of this request is cached in. Set by
	// SEQUENCE, and by CREATE_SESSION when it is the first operation.
	ReplySlot *state.Slot

	// UseReplayCache asks the engine to answer from ReplySlot instead of
	// executing the request.
	UseReplayCache bool

	// LeaseClient holds a lease reservation taken during this request. The
	// engine updates and releases it once the request is finished.
	LeaseClient *state.Client
}

func newCompoundContext(ctx context.Context, exports *export.Table, req *Request, minor uint32, tag []byte) *CompoundContext {
	c := &CompoundContext{
		ctx:          ctx,
		Exports:      exports,
		MinorVersion: minor,
		Tag:          tag,
	}
	if req != nil {
		c.Creds = req.Creds
		c.ClientAddr = req.ClientAddr
	}
	return c
}

// Context returns the request context. It carries logging and tracing
// values only; nothing in the engine waits on it.
func (c *CompoundContext) Context() context.Context {
	return c.ctx
}

// Export returns the export the current filehandle belongs to, or nil while
// the current filehandle is in the pseudo filesystem.
func (c *CompoundContext) Export() *export.Export {
	return c.cur.exp
}

// CurrentFH returns the current filehandle. Empty when none is set.
func (c *CompoundContext) CurrentFH() []byte {
	return c.cur.fh.bytes()
}

// SavedFH returns the saved filehandle. Empty when none is set.
func (c *CompoundContext) SavedFH() []byte {
	return c.saved.fh.bytes()
}

// setCurrent makes p the current position. The reference held by p.entry
// moves into the context; the displaced entry is released first.
func (c *CompoundContext) setCurrent(p position) {
	putEntry(c.cur.entry)
	c.cur = p
}

// setSaved makes p the saved position, with the same ownership rules as
// setCurrent.
func (c *CompoundContext) setSaved(p position) {
	putEntry(c.saved.entry)
	c.saved = p
}

// refPosition returns a copy of p holding its own reference.
func refPosition(p position) position {
	if p.entry != nil {
		p.entry.Store().Ref(p.entry)
	}
	return p
}

// release drops the references held by the current and saved positions.
func (c *CompoundContext) release() {
	c.setCurrent(position{})
	c.setSaved(position{})
}

func putEntry(e *objstore.Entry) {
	if e != nil {
		e.Store().Put(e)
	}
}
