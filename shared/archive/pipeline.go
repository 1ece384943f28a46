package archive

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/arkeep-io/arkeep/shared/codec"
	"github.com/arkeep-io/arkeep/shared/pattern"
)

// WriteOptions configures the per-entry pipeline: hashing, optional
// compression, optional encryption, and entry/compress-exclude
// pattern selection.
type WriteOptions struct {
	HashAlgorithm   codec.HashAlgorithm
	Compressor      codec.Compressor // nil or an nop compressor = no compression
	CompressAlgoName string          // recorded on the entry header, e.g. "zstd6"
	CompressExclude *pattern.List    // paths matching this list skip compression
	Cipher          codec.Cipher     // nil = no symmetric encryption
	Selection       *pattern.EntryList
}

// WrittenEntry summarizes the result of writing one entry: the header
// chunk that was appended and the fragments that carry its data.
type WrittenEntry struct {
	Header    *EntryHeader
	Fragments []FragmentHeader
}

// WriteEntry reads all of content, applies the configured hash/
// compress/crypt pipeline, writes the resulting bytes as one or more
// fragments (rolling volumes as needed via vs), and finally writes the
// entry's header chunk. It returns the catalog-facing summary.
//
// content is read fully into memory: entries in this implementation
// are bounded by available memory, in exchange for the simplicity of
// treating compression and authenticated encryption as whole-payload
// operations rather than a streaming cipher/compressor chain.
func WriteEntry(vs *VolumeSet, path string, entryType EntryType, meta EntryMetadata, content io.Reader, opts WriteOptions) (*WrittenEntry, error) {
	if opts.Selection != nil && !opts.Selection.Selected(path) {
		return nil, nil
	}

	raw, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("archive: read entry content %s: %w", path, err)
	}

	hashAlgo := opts.HashAlgorithm
	if hashAlgo == "" {
		hashAlgo = codec.HashSHA256
	}
	contentHash, err := codec.Sum(hashAlgo, raw)
	if err != nil {
		return nil, fmt.Errorf("archive: hash entry %s: %w", path, err)
	}

	payload := raw
	compressAlgo := "none"
	skipCompress := opts.CompressExclude != nil && opts.CompressExclude.MatchAny(path)
	if opts.Compressor != nil && !skipCompress {
		compressed, err := opts.Compressor.Compress(payload)
		if err != nil {
			return nil, fmt.Errorf("archive: compress entry %s: %w", path, err)
		}
		payload = compressed
		compressAlgo = opts.CompressAlgoName
		if compressAlgo == "" {
			compressAlgo = "unknown"
		}
	}

	cryptAlgo := "none"
	if opts.Cipher != nil {
		encrypted, err := opts.Cipher.Encrypt(payload)
		if err != nil {
			return nil, fmt.Errorf("archive: encrypt entry %s: %w", path, err)
		}
		payload = encrypted
		cryptAlgo = "symmetric"
	}

	fragments, err := vs.WriteFragmentedData(payload, 0)
	if err != nil {
		return nil, fmt.Errorf("archive: write fragments for %s: %w", path, err)
	}

	header := &EntryHeader{
		Type:            entryType,
		Name:            path,
		Size:            uint64(len(raw)),
		TimeLastChanged: meta.TimeLastChanged,
		UserID:          meta.UserID,
		GroupID:         meta.GroupID,
		Permission:      meta.Permission,
		ContentHash:     contentHash,
		HashAlgorithm:   string(hashAlgo),
		CompressAlgo:    compressAlgo,
		CryptAlgo:       cryptAlgo,
		FragmentCount:   uint32(len(fragments)),
		LinkTarget:      meta.LinkTarget,
	}

	tag, err := TagForEntryType(entryType)
	if err != nil {
		return nil, err
	}
	encoded, err := header.Encode()
	if err != nil {
		return nil, fmt.Errorf("archive: encode header for %s: %w", path, err)
	}
	if err := vs.WriteHeaderChunk(tag, encoded); err != nil {
		return nil, fmt.Errorf("archive: write header for %s: %w", path, err)
	}

	return &WrittenEntry{Header: header, Fragments: fragments}, nil
}

// EntryMetadata carries the filesystem attributes recorded on an
// entry header, independent of its content.
type EntryMetadata struct {
	TimeLastChanged time.Time
	UserID          uint32
	GroupID         uint32
	Permission      uint32
	LinkTarget      string
}

// ReadOptions configures the reverse pipeline.
type ReadOptions struct {
	Cipher   codec.Cipher // must match the cipher used at write time
	Decompress func(algo string, data []byte) ([]byte, error)
}

// ReadEntry reassembles one entry's content from its fragments
// (already-collected in fragment order) and reverses encryption/
// compression, returning the original bytes and verifying the content
// hash recorded in header.
func ReadEntry(header *EntryHeader, fragmentData [][]byte, opts ReadOptions) ([]byte, error) {
	var buf bytes.Buffer
	for _, f := range fragmentData {
		buf.Write(f)
	}
	payload := buf.Bytes()

	if header.CryptAlgo == "symmetric" {
		if opts.Cipher == nil {
			return nil, fmt.Errorf("archive: entry %s is encrypted but no cipher was supplied", header.Name)
		}
		decrypted, err := opts.Cipher.Decrypt(payload)
		if err != nil {
			return nil, fmt.Errorf("archive: decrypt entry %s: %w", header.Name, err)
		}
		payload = decrypted
	}

	if header.CompressAlgo != "" && header.CompressAlgo != "none" && opts.Decompress != nil {
		decompressed, err := opts.Decompress(header.CompressAlgo, payload)
		if err != nil {
			return nil, fmt.Errorf("archive: decompress entry %s: %w", header.Name, err)
		}
		payload = decompressed
	}

	if header.HashAlgorithm != "" {
		sum, err := codec.Sum(codec.HashAlgorithm(header.HashAlgorithm), payload)
		if err != nil {
			return nil, fmt.Errorf("archive: verify entry %s: %w", header.Name, err)
		}
		if !bytes.Equal(sum, header.ContentHash) {
			return nil, fmt.Errorf("archive: entry %s failed content hash verification", header.Name)
		}
	}

	return payload, nil
}
