package transport

import (
	"context"
	"io"
	"testing"

	"github.com/arkeep-io/arkeep/shared/bandwidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapedStorageUnlimitedPassesThroughUnchanged(t *testing.T) {
	ctx := context.Background()
	inner, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	storage := NewShapedStorage(inner, nil)

	w, err := storage.Create(ctx, "vol.bar")
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := storage.Open(ctx, "vol.bar")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestShapedStorageDelegatesList(t *testing.T) {
	ctx := context.Background()
	inner, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	storage := NewShapedStorage(inner, bandwidth.NewList(bandwidth.Node{BytesPerSecond: 1 << 30}))

	w, err := storage.Create(ctx, "a.bar")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	objects, err := storage.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "a.bar", objects[0].Name)
}
