package objstore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of unreferenced entries kept for reuse.
const DefaultCacheSize = 4096

// CacheConfig configures a Cache.
type CacheConfig struct {
	// Size bounds the LRU of unreferenced entries. Zero selects DefaultCacheSize.
	Size int

	// ReadOnly rejects Remove, Link and Rename with ErrReadOnly.
	ReadOnly bool
}

// CacheStats is a point-in-time view of the entry tables.
type CacheStats struct {
	Live   int    `json:"live"`
	Idle   int    `json:"idle"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Cache implements Store over a Backend.
//
// Referenced entries live in a map keyed by id. When the last reference is
// released the entry moves to an LRU so a later lookup of the same id can
// reuse it without rebuilding.
type Cache struct {
	backend  Backend
	readOnly bool

	mu   sync.Mutex
	live map[uint64]*Entry
	idle *lru.Cache[uint64, *Entry]

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ Store = (*Cache)(nil)

// NewCache wraps backend and creates the root directory if it is missing.
func NewCache(backend Backend, cfg CacheConfig) (*Cache, error) {
	size := cfg.Size
	if size <= 0 {
		size = DefaultCacheSize
	}

	idle, err := lru.New[uint64, *Entry](size)
	if err != nil {
		return nil, fmt.Errorf("create entry cache: %w", err)
	}

	c := &Cache{
		backend:  backend,
		readOnly: cfg.ReadOnly,
		live:     make(map[uint64]*Entry),
		idle:     idle,
	}
	if err := c.ensureRoot(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) ensureRoot() error {
	_, err := c.backend.Load(RootID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNodeNotFound) {
		return fmt.Errorf("load root: %w", err)
	}

	root := &Node{
		ID:       RootID,
		Type:     TypeDirectory,
		Mode:     0o755,
		Nlink:    2,
		Change:   1,
		Mtime:    time.Now(),
		Parent:   RootID,
		Children: make(map[string]uint64),
	}
	if err := c.backend.Update([]*Node{root}, nil); err != nil {
		return fmt.Errorf("create root: %w", err)
	}
	return nil
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// Stats reports the size of the entry tables and the LRU hit ratio inputs.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Live:   len(c.live),
		Idle:   c.idle.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// ============================================================================
// Reference management
// ============================================================================

// acquire returns the entry for n with one more reference. c.mu must be held.
func (c *Cache) acquire(n *Node) *Entry {
	if e, ok := c.live[n.ID]; ok {
		e.IncRef()
		return e
	}

	e, ok := c.idle.Peek(n.ID)
	if ok {
		c.idle.Remove(n.ID)
		c.hits.Add(1)
	} else {
		e = NewEntry(c, n.ID, n.Type)
		c.misses.Add(1)
	}
	e.IncRef()
	c.live[n.ID] = e
	return e
}

// Ref takes an additional reference on e.
func (c *Cache) Ref(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.IncRef() == 1 {
		c.idle.Remove(e.id)
		c.live[e.id] = e
	}
}

// Put releases one reference on e.
func (c *Cache) Put(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch n := e.DecRef(); {
	case n == 0:
		delete(c.live, e.id)
		c.idle.Add(e.id, e)
	case n < 0:
		panic(fmt.Sprintf("objstore: entry %d released more often than acquired", e.id))
	}
}

// load reads a node, reporting a missing node as stale. c.mu must be held.
func (c *Cache) load(id uint64) (*Node, error) {
	n, err := c.backend.Load(id)
	if errors.Is(err, ErrNodeNotFound) {
		return nil, NewStaleError(id)
	}
	if err != nil {
		return nil, NewIOError(err)
	}
	return n, nil
}

func (c *Cache) loadDir(id uint64) (*Node, error) {
	n, err := c.load(id)
	if err != nil {
		return nil, err
	}
	if n.Type != TypeDirectory {
		return nil, NewNotDirError("")
	}
	return n, nil
}

func (c *Cache) update(save []*Node, remove []uint64) error {
	if err := c.backend.Update(save, remove); err != nil {
		return NewIOError(err)
	}
	for _, id := range remove {
		c.idle.Remove(id)
	}
	return nil
}

// ============================================================================
// Lookups
// ============================================================================

// Root returns the root directory.
func (c *Cache) Root() (*Entry, error) {
	return c.Get(RootID)
}

// Get resolves an object id.
func (c *Cache) Get(id uint64) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.load(id)
	if err != nil {
		return nil, err
	}
	return c.acquire(n), nil
}

// Lookup resolves name inside dir.
func (c *Cache) Lookup(dir *Entry, name string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.loadDir(dir.id)
	if err != nil {
		return nil, err
	}
	id, ok := d.Children[name]
	if !ok {
		return nil, NewNotFoundError(name)
	}
	n, err := c.load(id)
	if err != nil {
		return nil, err
	}
	return c.acquire(n), nil
}

// LookupParent resolves the parent of dir.
func (c *Cache) LookupParent(dir *Entry) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.loadDir(dir.id)
	if err != nil {
		return nil, err
	}
	p, err := c.load(d.Parent)
	if err != nil {
		return nil, err
	}
	return c.acquire(p), nil
}

// GetAttr returns an attribute snapshot of e.
func (c *Cache) GetAttr(e *Entry) (Attr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.load(e.id)
	if err != nil {
		return Attr{}, err
	}
	return n.attr(), nil
}

// Readlink returns the target of a symlink.
func (c *Cache) Readlink(e *Entry) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.load(e.id)
	if err != nil {
		return "", err
	}
	if n.Type != TypeSymlink {
		return "", NewInvalidError("not a symlink")
	}
	return n.Target, nil
}

// Commit syncs the backend. The range is validated but not used: nodes carry
// no file data.
func (c *Cache) Commit(e *Entry, offset uint64, count uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.load(e.id)
	if err != nil {
		return err
	}
	switch {
	case n.Type == TypeDirectory:
		return NewIsDirError("")
	case n.Type != TypeRegular:
		return NewInvalidError("commit on non-regular file")
	case count > 0 && offset+uint64(count) < offset:
		return NewInvalidError("commit range overflows")
	}
	if err := c.backend.Sync(); err != nil {
		return NewIOError(err)
	}
	return nil
}

// ============================================================================
// Mutations
// ============================================================================

// Remove unlinks name from dir. The object is deleted once its link count
// reaches zero; entries still referenced then report ErrStaleHandle.
func (c *Cache) Remove(dir *Entry, name string) error {
	if c.readOnly {
		return NewReadOnlyError()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.loadDir(dir.id)
	if err != nil {
		return err
	}
	id, ok := d.Children[name]
	if !ok {
		return NewNotFoundError(name)
	}
	child, err := c.load(id)
	if err != nil {
		return err
	}

	save, remove, err := unlink(d, name, child)
	if err != nil {
		return err
	}
	return c.update(save, remove)
}

// unlink detaches child from d under name and returns the nodes to persist.
func unlink(d *Node, name string, child *Node) (save []*Node, remove []uint64, err error) {
	if child.Type == TypeDirectory && len(child.Children) > 0 {
		return nil, nil, NewNotEmptyError(name)
	}

	delete(d.Children, name)
	d.touch()
	save = append(save, d)

	if child.Type == TypeDirectory {
		d.Nlink--
		return save, append(remove, child.ID), nil
	}

	child.Nlink--
	if child.Nlink == 0 {
		return save, append(remove, child.ID), nil
	}
	child.Change++
	return append(save, child), nil, nil
}

// Link adds name in dir as a new hard link to src.
func (c *Cache) Link(src, dir *Entry, name string) error {
	if c.readOnly {
		return NewReadOnlyError()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.load(src.id)
	if err != nil {
		return err
	}
	if s.Type == TypeDirectory {
		return NewIsDirError(name)
	}
	d, err := c.loadDir(dir.id)
	if err != nil {
		return err
	}
	if _, exists := d.Children[name]; exists {
		return NewExistsError(name)
	}

	d.Children[name] = s.ID
	d.touch()
	s.Nlink++
	s.Change++
	return c.update([]*Node{d, s}, nil)
}

// Rename moves oldName in srcDir to newName in dstDir, replacing a
// compatible target.
func (c *Cache) Rename(srcDir *Entry, oldName string, dstDir *Entry, newName string) error {
	if c.readOnly {
		return NewReadOnlyError()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sd, err := c.loadDir(srcDir.id)
	if err != nil {
		return err
	}
	dd := sd
	if dstDir.id != srcDir.id {
		if dd, err = c.loadDir(dstDir.id); err != nil {
			return err
		}
	}

	id, ok := sd.Children[oldName]
	if !ok {
		return NewNotFoundError(oldName)
	}
	moving, err := c.load(id)
	if err != nil {
		return err
	}

	if moving.Type == TypeDirectory && dd.ID != sd.ID {
		if err := c.checkNotAncestor(moving.ID, dd); err != nil {
			return err
		}
	}

	var save []*Node
	var remove []uint64

	if existing, ok := dd.Children[newName]; ok {
		if existing == id {
			return nil
		}
		target, err := c.load(existing)
		if err != nil {
			return err
		}
		if (target.Type == TypeDirectory) != (moving.Type == TypeDirectory) {
			return NewExistsError(newName)
		}
		save, remove, err = unlink(dd, newName, target)
		if err != nil {
			return err
		}
		save = save[1:]
	}

	delete(sd.Children, oldName)
	dd.Children[newName] = id
	sd.touch()
	if dd != sd {
		dd.touch()
		if moving.Type == TypeDirectory {
			moving.Parent = dd.ID
			sd.Nlink--
			dd.Nlink++
		}
		save = append(save, dd)
	}
	moving.Change++
	save = append(save, sd, moving)

	return c.update(save, remove)
}

// checkNotAncestor rejects moving directory id underneath itself.
func (c *Cache) checkNotAncestor(id uint64, dir *Node) error {
	for cur := dir; ; {
		if cur.ID == id {
			return NewInvalidError("cannot move a directory beneath itself")
		}
		if cur.ID == RootID {
			return nil
		}
		next, err := c.load(cur.Parent)
		if err != nil {
			return err
		}
		cur = next
	}
}
