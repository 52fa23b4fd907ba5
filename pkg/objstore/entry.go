package objstore

import "sync/atomic"

// Entry is a reference-counted handle on a stored object.
//
// A Store hands out entries with one reference already taken. The holder
// gives it back with Store.Put, or takes another with Store.Ref. Entries with
// no references stay cached until evicted, so the same id resolves to the
// same *Entry for as long as anyone holds it.
type Entry struct {
	store Store
	id    uint64
	typ   FileType
	refs  atomic.Int32
}

// NewEntry builds an unreferenced entry owned by store.
func NewEntry(store Store, id uint64, typ FileType) *Entry {
	return &Entry{store: store, id: id, typ: typ}
}

// ID returns the object id.
func (e *Entry) ID() uint64 { return e.id }

// Type returns the object type.
func (e *Entry) Type() FileType { return e.typ }

// Store returns the store that owns the entry.
func (e *Entry) Store() Store { return e.store }

// Refs returns the current reference count.
func (e *Entry) Refs() int32 { return e.refs.Load() }

// IncRef takes a reference and returns the new count.
func (e *Entry) IncRef() int32 { return e.refs.Add(1) }

// DecRef drops a reference and returns the new count.
func (e *Entry) DecRef() int32 { return e.refs.Add(-1) }
