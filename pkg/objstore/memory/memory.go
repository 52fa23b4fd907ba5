// Package memory implements an in-process objstore.Backend.
package memory

import (
	"sync"
	"sync/atomic"

	"github.com/marmos91/nfs4d/pkg/objstore"
)

// Backend keeps nodes in a map. Nodes are copied on the way in and out so
// callers can mutate what they load without touching stored state.
type Backend struct {
	mu     sync.RWMutex
	nodes  map[uint64]*objstore.Node
	nextID atomic.Uint64
}

var _ objstore.Backend = (*Backend)(nil)

// New returns an empty backend.
func New() *Backend {
	b := &Backend{nodes: make(map[uint64]*objstore.Node)}
	b.nextID.Store(objstore.RootID)
	return b
}

// Load returns a copy of the node stored under id.
func (b *Backend) Load(id uint64) (*objstore.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[id]
	if !ok {
		return nil, objstore.ErrNodeNotFound
	}
	return copyNode(n), nil
}

// Update applies saves and removals under one lock.
func (b *Backend) Update(save []*objstore.Node, remove []uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range save {
		b.nodes[n.ID] = copyNode(n)
	}
	for _, id := range remove {
		delete(b.nodes, id)
	}
	return nil
}

// NextID allocates the next object id.
func (b *Backend) NextID() (uint64, error) {
	return b.nextID.Add(1), nil
}

// Sync is a no-op.
func (b *Backend) Sync() error { return nil }

// Close is a no-op.
func (b *Backend) Close() error { return nil }

// Len returns the number of stored nodes.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

func copyNode(n *objstore.Node) *objstore.Node {
	c := *n
	if n.Children != nil {
		c.Children = make(map[string]uint64, len(n.Children))
		for k, v := range n.Children {
			c.Children[k] = v
		}
	}
	return &c
}
