package codec

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressAlgorithm identifies a compression family and, where the
// family supports it, a numeric level.
type CompressAlgorithm struct {
	Family string
	Level  int
}

// ParseCompressAlgorithm parses strings like "zstd6", "lz4-9", "gzip",
// "none", matching the archive config file's compress-algorithm value.
func ParseCompressAlgorithm(s string) (CompressAlgorithm, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return CompressAlgorithm{Family: "none"}, nil
	}
	family := strings.TrimRight(strings.TrimRight(s, "0123456789"), "-")
	if strings.HasPrefix(s, "lz4") {
		// The lz4 family name itself ends in a digit; its level follows a hyphen.
		family = "lz4"
	}
	levelStr := strings.TrimPrefix(s[len(family):], "-")
	level := 0
	if levelStr != "" {
		n, err := strconv.Atoi(levelStr)
		if err != nil {
			return CompressAlgorithm{}, fmt.Errorf("codec: invalid compress level in %q: %w", s, err)
		}
		level = n
	}
	return CompressAlgorithm{Family: family, Level: level}, nil
}

// Compressor compresses and decompresses whole byte payloads (the
// archive engine compresses per-chunk, not as a streaming filter, so
// this operates on buffers rather than io.Reader/Writer).
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// NewCompressor returns the Compressor for the given algorithm, or
// ErrUnsupportedAlgorithm for families named by the format but not
// implemented in this build (bzip, lzma, lzo — see DESIGN.md).
func NewCompressor(alg CompressAlgorithm) (Compressor, error) {
	switch alg.Family {
	case "none", "":
		return noneCompressor{}, nil
	case "gzip", "zip":
		return gzipCompressor{level: clampGzipLevel(alg.Level)}, nil
	case "zstd":
		return zstdCompressor{level: clampZstdLevel(alg.Level)}, nil
	case "lz4":
		return lz4Compressor{level: alg.Level}, nil
	case "bzip", "lzma", "lzo":
		return nil, fmt.Errorf("codec: %s: %w", alg.Family, ErrUnsupportedAlgorithm)
	default:
		return nil, fmt.Errorf("codec: %s: %w", alg.Family, ErrUnsupportedAlgorithm)
	}
}

type noneCompressor struct{}

func (noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

type gzipCompressor struct{ level int }

func (c gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("codec: gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("codec: gzip compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("codec: gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("codec: gzip decompress: %w", err)
	}
	return out, nil
}

func clampGzipLevel(level int) int {
	if level <= 0 {
		return gzip.DefaultCompression
	}
	if level > gzip.BestCompression {
		return gzip.BestCompression
	}
	return level
}

type zstdCompressor struct{ level int }

func (c zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdEncoderLevel(c.level)))
	if err != nil {
		return nil, fmt.Errorf("codec: zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// zstdEncoderLevel maps the archive format's 1-19 numeric compression
// level onto klauspost/compress/zstd's four-tier EncoderLevel.
func zstdEncoderLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 7:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func (zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decompress: %w", err)
	}
	return out, nil
}

func clampZstdLevel(level int) int {
	if level <= 0 {
		return 3
	}
	if level > 19 {
		return 19
	}
	return level
}

type lz4Compressor struct{ level int }

func (c lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	opts := []lz4.Option{lz4.CompressionLevelOption(lz4CompressionLevel(c.level))}
	if err := w.Apply(opts...); err != nil {
		return nil, fmt.Errorf("codec: lz4 options: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 decompress: %w", err)
	}
	return out, nil
}

func lz4CompressionLevel(level int) lz4.CompressionLevel {
	switch {
	case level <= 0:
		return lz4.Fast
	case level >= 9:
		return lz4.Level9
	default:
		return lz4.CompressionLevel(level)
	}
}
