package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfs4d/pkg/filehandle"
	"github.com/marmos91/nfs4d/pkg/objstore"
	"github.com/marmos91/nfs4d/pkg/objstore/memory"
)

func newStore(t *testing.T) objstore.Store {
	t.Helper()
	c, err := objstore.NewCache(memory.New(), objstore.CacheConfig{})
	require.NoError(t, err)
	return c
}

func TestNewTableValidation(t *testing.T) {
	s := newStore(t)

	tests := []struct {
		name string
		exps []*Export
	}{
		{"ZeroID", []*Export{{ID: 0, Path: "/a", Store: s}}},
		{"RelativePath", []*Export{{ID: 1, Path: "a", Store: s}}},
		{"RootPath", []*Export{{ID: 1, Path: "/", Store: s}}},
		{"UncleanPath", []*Export{{ID: 1, Path: "/a/../b", Store: s}}},
		{"NoStore", []*Export{{ID: 1, Path: "/a"}}},
		{"DuplicateID", []*Export{{ID: 1, Path: "/a", Store: s}, {ID: 1, Path: "/b", Store: s}}},
		{"DuplicatePath", []*Export{{ID: 1, Path: "/a", Store: s}, {ID: 2, Path: "/a", Store: s}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.exps...)
			assert.Error(t, err)
		})
	}
}

func TestResolve(t *testing.T) {
	s := newStore(t)
	table, err := NewTable(
		&Export{ID: 2, Path: "/z", NFSv4: true, Store: s},
		&Export{ID: 1, Path: "/a", NFSv4: true, Store: s},
	)
	require.NoError(t, err)

	assert.Equal(t, "/a", table.All()[0].Path)

	t.Run("Pseudo", func(t *testing.T) {
		exp, pseudo, xattr, err := table.Resolve(filehandle.Pseudo(1).Encode())
		require.NoError(t, err)
		assert.Nil(t, exp)
		assert.True(t, pseudo)
		assert.False(t, xattr)
	})

	t.Run("Regular", func(t *testing.T) {
		exp, pseudo, xattr, err := table.Resolve(filehandle.Regular(2, 5).Encode())
		require.NoError(t, err)
		assert.Equal(t, uint32(2), exp.ID)
		assert.False(t, pseudo)
		assert.False(t, xattr)
	})

	t.Run("Xattr", func(t *testing.T) {
		h := filehandle.Handle{Kind: filehandle.KindXattr, ExportID: 1, ObjectID: 3}
		exp, _, xattr, err := table.Resolve(h.Encode())
		require.NoError(t, err)
		assert.Equal(t, uint32(1), exp.ID)
		assert.True(t, xattr)
	})

	t.Run("UnknownExport", func(t *testing.T) {
		_, _, _, err := table.Resolve(filehandle.Regular(9, 1).Encode())
		assert.ErrorIs(t, err, ErrUnknownExport)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, _, _, err := table.Resolve([]byte{1, 2, 3})
		assert.ErrorIs(t, err, filehandle.ErrBadHandle)
	})
}
