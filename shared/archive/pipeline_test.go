package archive

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/arkeep-io/arkeep/shared/codec"
	"github.com/arkeep-io/arkeep/shared/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEntryThenReadEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, err := transport.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	vs, err := OpenVolumeSet(ctx, storage, namer("job"), 0)
	require.NoError(t, err)

	key := bytes.Repeat([]byte{7}, 32)
	cipher, err := codec.NewAESGCMCipher(key)
	require.NoError(t, err)

	content := []byte("Hello\n")
	written, err := WriteEntry(vs, "hello.txt", EntryFile, EntryMetadata{
		TimeLastChanged: time.Unix(1700000000, 0),
		Permission:      0o644,
	}, bytes.NewReader(content), WriteOptions{Cipher: cipher})
	require.NoError(t, err)
	require.NotNil(t, written)
	assert.Equal(t, uint64(len(content)), written.Header.Size)

	require.NoError(t, vs.Close())

	r, err := storage.Open(ctx, "job-0.bar")
	require.NoError(t, err)
	defer r.Close()
	chunks, err := NewReader(r).ReadAll()
	require.NoError(t, err)

	var header *EntryHeader
	var fragmentData [][]byte
	for _, c := range chunks {
		if c.Tag == TagFIL0 {
			header, err = DecodeEntryHeader(EntryFile, c.Payload)
			require.NoError(t, err)
		}
		if c.Tag == TagFDA0 {
			fragmentData = append(fragmentData, c.Payload)
		}
	}
	require.NotNil(t, header)

	restored, err := ReadEntry(header, fragmentData, ReadOptions{Cipher: cipher})
	require.NoError(t, err)
	assert.Equal(t, content, restored)
}

func TestReadEntryDetectsTamperedContent(t *testing.T) {
	header := &EntryHeader{
		HashAlgorithm: string(codec.HashSHA256),
		ContentHash:   mustSum(t, []byte("original")),
		CompressAlgo:  "none",
		CryptAlgo:     "none",
	}
	_, err := ReadEntry(header, [][]byte{[]byte("tampered")}, ReadOptions{})
	assert.Error(t, err)
}

func mustSum(t *testing.T, data []byte) []byte {
	t.Helper()
	sum, err := codec.Sum(codec.HashSHA256, data)
	require.NoError(t, err)
	return sum
}
