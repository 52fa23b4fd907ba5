// Package pseudofs builds the read-only pseudo filesystem that joins all
// NFSv4 exports under a single root.
//
// Every directory on the path to an export is a pseudo node. The node at an
// export's path is a junction: LOOKUP of its name from the parent crosses
// into the export's root object, and LOOKUPP from the export root comes
// back out to the junction's parent.
//
// Node ids are derived from the node path so pseudo filehandles stay valid
// across restarts and reconfiguration.
package pseudofs

import (
	"crypto/sha256"
	"encoding/binary"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/nfs4d/pkg/export"
	"github.com/marmos91/nfs4d/pkg/filehandle"
)

// RootID is the id of the pseudo root.
const RootID uint64 = 1

// Node is a directory of the pseudo filesystem.
type Node struct {
	ID       uint64
	Name     string
	Path     string
	Parent   *Node
	Children map[string]*Node

	// Export is set on junction nodes.
	Export *export.Export

	// Change is bumped whenever the tree is rebuilt.
	Change uint64
}

// Handle returns the node's wire filehandle.
func (n *Node) Handle() []byte {
	return filehandle.Pseudo(n.ID).Encode()
}

// IsJunction reports whether an export is mounted on n.
func (n *Node) IsJunction() bool {
	return n.Export != nil
}

// ChildNames returns the names of n's children in sorted order.
func (n *Node) ChildNames() []string {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FS is the pseudo filesystem. It is safe for concurrent use; Rebuild swaps
// the whole tree under a write lock.
type FS struct {
	mu     sync.RWMutex
	root   *Node
	byID   map[uint64]*Node
	byExpt map[uint32]*Node
	change uint64
}

// New builds the tree for exps.
func New(exps []*export.Export) *FS {
	fs := &FS{}
	fs.Rebuild(exps)
	return fs
}

// nodeID hashes a path into a stable id. The root is always RootID.
func nodeID(p string) uint64 {
	if p == "/" {
		return RootID
	}
	sum := sha256.Sum256([]byte(p))
	id := binary.BigEndian.Uint64(sum[:8])
	if id <= RootID {
		id += RootID + 1
	}
	return id
}

// Rebuild replaces the tree with one describing exps. Exports without
// NFSv4 access are left out.
func (fs *FS) Rebuild(exps []*export.Export) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.change++
	root := &Node{ID: RootID, Path: "/", Children: make(map[string]*Node), Change: fs.change}
	root.Parent = root
	byID := map[uint64]*Node{RootID: root}
	byExpt := make(map[uint32]*Node)

	for _, e := range exps {
		if !e.NFSv4 {
			continue
		}

		cur := root
		parts := strings.Split(strings.TrimPrefix(path.Clean(e.Path), "/"), "/")
		for _, part := range parts {
			child, ok := cur.Children[part]
			if !ok {
				p := path.Join(cur.Path, part)
				id := nodeID(p)
				for byID[id] != nil {
					id++
				}
				child = &Node{
					ID:       id,
					Name:     part,
					Path:     p,
					Parent:   cur,
					Children: make(map[string]*Node),
					Change:   fs.change,
				}
				cur.Children[part] = child
				byID[id] = child
			}
			cur = child
		}
		cur.Export = e
		byExpt[e.ID] = cur
	}

	fs.root, fs.byID, fs.byExpt = root, byID, byExpt
}

// Root returns the pseudo root.
func (fs *FS) Root() *Node {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.root
}

// Node returns the node with the given id.
func (fs *FS) Node(id uint64) (*Node, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	n, ok := fs.byID[id]
	return n, ok
}

// Child returns the child called name of parent.
func (fs *FS) Child(parent *Node, name string) (*Node, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	n, ok := parent.Children[name]
	return n, ok
}

// Junction returns the node an export is mounted on.
func (fs *FS) Junction(exportID uint32) (*Node, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	n, ok := fs.byExpt[exportID]
	return n, ok
}

// Len returns the number of nodes including the root.
func (fs *FS) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.byID)
}
