package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfs4d/pkg/objstore"
)

func TestBackendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	c, err := objstore.NewCache(b, objstore.CacheConfig{})
	require.NoError(t, err)

	id, err := c.CreatePath("docs/readme", objstore.TypeRegular, 0o644, "")
	require.NoError(t, err)
	assert.Greater(t, id, objstore.RootID)
	require.NoError(t, c.Close())

	b, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	c, err = objstore.NewCache(b, objstore.CacheConfig{})
	require.NoError(t, err)
	defer c.Close()

	e, err := c.Get(id)
	require.NoError(t, err)
	defer c.Put(e)
	assert.Equal(t, objstore.TypeRegular, e.Type())

	next, err := b.NextID()
	require.NoError(t, err)
	assert.Greater(t, next, id, "ids must not be reused after reopen")
}

func TestBackendUpdateAndDelete(t *testing.T) {
	b, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	defer b.Close()

	n := &objstore.Node{ID: 42, Type: objstore.TypeSymlink, Target: "x"}
	require.NoError(t, b.Update([]*objstore.Node{n}, nil))

	got, err := b.Load(42)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Target)

	require.NoError(t, b.Update(nil, []uint64{42}))
	_, err = b.Load(42)
	assert.ErrorIs(t, err, objstore.ErrNodeNotFound)
	assert.NoError(t, b.Sync())
}

func TestBackendWritesIntoEmptyDirectories(t *testing.T) {
	b, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	c, err := objstore.NewCache(b, objstore.CacheConfig{})
	require.NoError(t, err)
	defer c.Close()

	root, err := b.Load(objstore.RootID)
	require.NoError(t, err)
	assert.NotNil(t, root.Children, "empty directory must load with a children map")

	fileID, err := c.Create(objstore.RootID, "f", objstore.TypeRegular, 0o644, "")
	require.NoError(t, err)
	srcID, err := c.Create(objstore.RootID, "src", objstore.TypeDirectory, 0o755, "")
	require.NoError(t, err)
	dstID, err := c.Create(objstore.RootID, "dst", objstore.TypeDirectory, 0o755, "")
	require.NoError(t, err)

	file, err := c.Get(fileID)
	require.NoError(t, err)
	defer c.Put(file)
	src, err := c.Get(srcID)
	require.NoError(t, err)
	defer c.Put(src)
	dst, err := c.Get(dstID)
	require.NoError(t, err)
	defer c.Put(dst)

	t.Run("Link", func(t *testing.T) {
		require.NoError(t, c.Link(file, src, "hard"))
	})

	t.Run("Rename", func(t *testing.T) {
		require.NoError(t, c.Rename(src, "hard", dst, "moved"))

		e, err := c.Lookup(dst, "moved")
		require.NoError(t, err)
		defer c.Put(e)
		assert.Equal(t, fileID, e.ID())

		_, err = c.Lookup(src, "hard")
		assert.True(t, objstore.IsNotFound(err))
	})
}
