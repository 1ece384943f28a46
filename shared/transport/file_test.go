package transport

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorageCreateOpenList(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	storage, err := NewFileStorage(root)
	require.NoError(t, err)
	defer storage.Close()

	w, err := storage.Create(ctx, "volumes/001.bar")
	require.NoError(t, err)
	_, err = w.Write([]byte("volume bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := storage.Open(ctx, "volumes/001.bar")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, "volume bytes", string(data))

	entries, err := storage.List(ctx, "volumes")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "001.bar", entries[0].Name)
}

func TestFileStorageRenameAndRemove(t *testing.T) {
	ctx := context.Background()
	storage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	w, err := storage.Create(ctx, "tmp/staging.part")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, storage.Rename(ctx, "tmp/staging.part", "final/001.bar"))

	_, err = storage.Open(ctx, "tmp/staging.part")
	assert.ErrorIs(t, err, ErrNotFound)

	r, err := storage.Open(ctx, "final/001.bar")
	require.NoError(t, err)
	r.Close()

	require.NoError(t, storage.Remove(ctx, "final/001.bar"))
	_, err = storage.Open(ctx, "final/001.bar")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStorageOpenMissingDirReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	storage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = storage.List(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}
