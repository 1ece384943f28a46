package archive

import (
	"context"
	"crypto/sha256"
	"io"
	"math/rand"
	"testing"

	"github.com/arkeep-io/arkeep/shared/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namer(prefix string) VolumeNamer {
	return func(index int) string {
		return prefix + "-" + itoa(index) + ".bar"
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestVolumeSetSingleVolumeNoSplit(t *testing.T) {
	ctx := context.Background()
	storage, err := transport.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	vs, err := OpenVolumeSet(ctx, storage, namer("job"), 0)
	require.NoError(t, err)

	data := []byte("hello, archive")
	fragments, err := vs.WriteFragmentedData(data, 0)
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, uint32(0), fragments[0].FragmentIndex)
	assert.Equal(t, uint64(0), fragments[0].Offset)
	assert.Equal(t, uint64(len(data)), fragments[0].Size)

	require.NoError(t, vs.Close())
	assert.Equal(t, 1, vs.VolumeCount())

	entries, err := storage.List(ctx, ".")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestVolumeSetSplitsAcrossVolumes(t *testing.T) {
	ctx := context.Background()
	storage, err := transport.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	const partSize = 4096
	vs, err := OpenVolumeSet(ctx, storage, namer("job"), partSize)
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(42))
	data := make([]byte, partSize*3)
	_, err = rnd.Read(data)
	require.NoError(t, err)

	fragments, err := vs.WriteFragmentedData(data, 0)
	require.NoError(t, err)
	require.NoError(t, vs.Close())

	assert.GreaterOrEqual(t, len(fragments), 3, "large payload should split across multiple fragments")
	assert.Equal(t, uint32(0), fragments[0].FragmentIndex)
	assert.Equal(t, uint64(0), fragments[0].Offset)

	for i := 1; i < len(fragments); i++ {
		assert.Equal(t, fragments[i-1].Offset+fragments[i-1].Size, fragments[i].Offset,
			"fragment offsets must be contiguous across the entry's logical byte stream")
		assert.LessOrEqual(t, fragments[i-1].FragmentIndex, fragments[i].FragmentIndex)
	}

	assert.GreaterOrEqual(t, vs.VolumeCount(), 3)

	entries, err := storage.List(ctx, ".")
	require.NoError(t, err)
	assert.Equal(t, vs.VolumeCount(), len(entries))

	// Reassemble and verify byte-identity with the original content.
	var reassembled []byte
	for i := 0; i < vs.VolumeCount(); i++ {
		r, err := storage.Open(ctx, namer("job")(i))
		require.NoError(t, err)
		cr := NewReader(r)
		chunks, err := cr.ReadAll()
		require.NoError(t, err)
		r.Close()
		for _, c := range chunks {
			if c.Tag == TagFDA0 {
				reassembled = append(reassembled, c.Payload...)
			}
		}
	}
	assert.Equal(t, sha256.Sum256(data), sha256.Sum256(reassembled))
}

func TestVolumeSetCleanArchiveHasBAR0Header(t *testing.T) {
	ctx := context.Background()
	storage, err := transport.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	vs, err := OpenVolumeSet(ctx, storage, namer("empty"), 0)
	require.NoError(t, err)
	require.NoError(t, vs.Close())

	r, err := storage.Open(ctx, "empty-0.bar")
	require.NoError(t, err)
	defer r.Close()

	cr := NewReader(r)
	chunk, err := cr.ReadChunk()
	require.NoError(t, err)
	assert.Equal(t, TagBAR0, chunk.Tag)

	_, err = cr.ReadChunk()
	assert.ErrorIs(t, err, io.EOF)
}
