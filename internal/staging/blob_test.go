package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStore_PutGetDelete(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("fake image bytes")
	require.NoError(t, store.Put("cafetera-123.jpg", data))

	got, err := store.Get("cafetera-123.jpg")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete("cafetera-123.jpg"))
	_, err = store.Get("cafetera-123.jpg")
	assert.Error(t, err)
}

func TestBlobStore_DeleteAbsent(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete("no-such-blob.jpg"))
}

func TestBlobStore_Clear(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBlobStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put("a.jpg", []byte("a")))
	require.NoError(t, store.Put("b.png", []byte("b")))

	require.NoError(t, store.Clear())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBlobStore_NameConfinedToBaseDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBlobStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put("../escape.jpg", []byte("x")))

	// The traversal component is flattened away.
	_, err = os.Stat(filepath.Join(dir, "escape.jpg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.jpg"))
	assert.True(t, os.IsNotExist(err))
}
