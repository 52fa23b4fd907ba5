// Package export holds the table of exported object stores and resolves
// filehandles to the export that owns them.
package export

import (
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/marmos91/nfs4d/pkg/filehandle"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

// ErrUnknownExport is returned for handles naming an export that is not
// (or no longer) configured.
var ErrUnknownExport = errors.New("export: unknown export")

// Export is one exported object store mounted in the pseudo filesystem.
type Export struct {
	// ID is stamped into every filehandle of the export. Never zero.
	ID uint32

	// Path is the absolute pseudo-fs path the export is mounted on.
	Path string

	// NFSv4 reports whether the export may be accessed over NFSv4.
	NFSv4 bool

	// ReadOnly rejects namespace mutations.
	ReadOnly bool

	// Store serves the export's objects.
	Store objstore.Store
}

// Resolver maps a wire filehandle to the export that owns it.
type Resolver interface {
	Resolve(fh []byte) (exp *Export, isPseudo, isXattr bool, err error)
}

// Table is an immutable set of exports.
type Table struct {
	byID    map[uint32]*Export
	ordered []*Export
}

var _ Resolver = (*Table)(nil)

// NewTable validates exps and indexes them by id. Exports are kept sorted
// by path so the pseudo filesystem is built deterministically.
func NewTable(exps ...*Export) (*Table, error) {
	t := &Table{byID: make(map[uint32]*Export, len(exps))}
	paths := make(map[string]uint32, len(exps))

	for _, e := range exps {
		switch {
		case e.ID == 0:
			return nil, fmt.Errorf("export %q: id must be non-zero", e.Path)
		case !path.IsAbs(e.Path) || path.Clean(e.Path) != e.Path || e.Path == "/":
			return nil, fmt.Errorf("export %d: path %q must be a clean absolute path below /", e.ID, e.Path)
		case e.Store == nil:
			return nil, fmt.Errorf("export %d: no object store", e.ID)
		}
		if _, dup := t.byID[e.ID]; dup {
			return nil, fmt.Errorf("export %d: duplicate id", e.ID)
		}
		if other, dup := paths[e.Path]; dup {
			return nil, fmt.Errorf("export %d: path %q already used by export %d", e.ID, e.Path, other)
		}

		t.byID[e.ID] = e
		paths[e.Path] = e.ID
		t.ordered = append(t.ordered, e)
	}

	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].Path < t.ordered[j].Path })
	return t, nil
}

// ByID returns the export with the given id or nil.
func (t *Table) ByID(id uint32) *Export {
	return t.byID[id]
}

// All returns the exports ordered by path.
func (t *Table) All() []*Export {
	return t.ordered
}

// Resolve decodes fh and finds its export. Pseudo handles resolve to a nil
// export.
func (t *Table) Resolve(fh []byte) (*Export, bool, bool, error) {
	h, err := filehandle.Decode(fh)
	if err != nil {
		return nil, false, false, err
	}
	if h.Kind == filehandle.KindPseudo {
		return nil, true, false, nil
	}

	exp := t.byID[h.ExportID]
	if exp == nil {
		return nil, false, false, fmt.Errorf("%w: %d", ErrUnknownExport, h.ExportID)
	}
	return exp, false, h.Kind == filehandle.KindXattr, nil
}
