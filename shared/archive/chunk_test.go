package archive

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	_, err := w.WriteChunk(TagBAR0, []byte{1})
	require.NoError(t, err)
	_, err = w.WriteChunk(TagFDA0, bytes.Repeat([]byte("x"), 500))
	require.NoError(t, err)
	_, err = w.WriteChunk(TagMETA, nil)
	require.NoError(t, err)

	r := NewReader(&buf)
	chunks, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, TagBAR0, chunks[0].Tag)
	assert.Equal(t, TagFDA0, chunks[1].Tag)
	assert.Len(t, chunks[1].Payload, 500)
	assert.Equal(t, TagMETA, chunks[2].Tag)
	assert.Empty(t, chunks[2].Payload)
}

func TestChunkReadTruncatedPayloadIsMalformed(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(TagFDA0[:])
	buf.WriteByte(100) // declares 100-byte payload
	buf.WriteString("short")

	r := NewReader(&buf)
	_, err := r.ReadChunk()
	assert.ErrorIs(t, err, ErrMalformedChunk)
}

func TestChunkReadTruncatedHeaderIsMalformed(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{'B', 'A'}))
	_, err := r.ReadChunk()
	assert.ErrorIs(t, err, ErrMalformedChunk)
}

func TestChunkReadCleanEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.ReadChunk()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEntryHeaderRoundTrip(t *testing.T) {
	h := &EntryHeader{
		Type:          EntryFile,
		Name:          "hello.txt",
		Size:          6,
		UserID:        1000,
		GroupID:       1000,
		Permission:    0o644,
		ContentHash:   []byte{1, 2, 3, 4},
		HashAlgorithm: "sha256",
		CompressAlgo:  "none",
		CryptAlgo:     "none",
		FragmentCount: 1,
	}
	encoded, err := h.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEntryHeader(EntryFile, encoded)
	require.NoError(t, err)
	assert.Equal(t, h.Name, decoded.Name)
	assert.Equal(t, h.Size, decoded.Size)
	assert.Equal(t, h.ContentHash, decoded.ContentHash)
	assert.Equal(t, h.FragmentCount, decoded.FragmentCount)
}

func TestFragmentHeaderRoundTrip(t *testing.T) {
	fh := &FragmentHeader{FragmentIndex: 1, Offset: 4194304, Size: 2048}
	decoded, err := DecodeFragmentHeader(fh.Encode())
	require.NoError(t, err)
	assert.Equal(t, *fh, *decoded)
}
