// Package objstore is the object layer behind an NFSv4 export.
//
// A Store resolves object ids and names to reference-counted entries and
// performs the handful of namespace mutations the COMPOUND engine supports.
// Every method is synchronous and reports failures as *StoreError.
//
// Cache is the Store implementation used by the server: it keeps referenced
// entries in a live table, parks unreferenced ones in an LRU, and persists
// nodes through a pluggable Backend (memory or badger).
package objstore

// Store is the object store collaborator of the COMPOUND engine.
//
// Methods returning *Entry hand over one reference; the caller must release
// it with Put.
type Store interface {
	// Root returns the export root directory.
	Root() (*Entry, error)

	// Get resolves an object id. A removed object yields ErrStaleHandle.
	Get(id uint64) (*Entry, error)

	// Lookup resolves name inside dir.
	Lookup(dir *Entry, name string) (*Entry, error)

	// LookupParent resolves the parent of dir. The root is its own parent.
	LookupParent(dir *Entry) (*Entry, error)

	// GetAttr returns an attribute snapshot of e.
	GetAttr(e *Entry) (Attr, error)

	// Readlink returns the target of a symlink.
	Readlink(e *Entry) (string, error)

	// Commit flushes cached data of a regular file to stable storage.
	Commit(e *Entry, offset uint64, count uint32) error

	// Remove unlinks name from dir.
	Remove(dir *Entry, name string) error

	// Link creates name in dir pointing at src.
	Link(src, dir *Entry, name string) error

	// Rename moves oldName in srcDir to newName in dstDir.
	Rename(srcDir *Entry, oldName string, dstDir *Entry, newName string) error

	// Ref takes an additional reference on e.
	Ref(e *Entry)

	// Put releases one reference on e.
	Put(e *Entry)
}

// Backend persists nodes for a Cache.
type Backend interface {
	// Load returns the node stored under id or ErrNodeNotFound.
	Load(id uint64) (*Node, error)

	// Update saves and deletes nodes in one atomic step.
	Update(save []*Node, remove []uint64) error

	// NextID allocates a fresh object id greater than RootID.
	NextID() (uint64, error)

	// Sync flushes pending writes to stable storage.
	Sync() error

	// Close releases backend resources.
	Close() error
}
