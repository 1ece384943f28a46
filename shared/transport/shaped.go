package transport

import (
	"context"
	"io"

	"github.com/arkeep-io/arkeep/shared/bandwidth"
)

// ShapedStorage wraps a Storage, rate-limiting every Create/Open
// stream through a bandwidth.Shaper. It is transparent when list is
// nil or carries no limiting node: bandwidth.NewShaper(nil) is
// always-unlimited, so wrapping costs nothing beyond the Wait check.
type ShapedStorage struct {
	Storage
	shaper *bandwidth.Shaper
}

// NewShapedStorage wraps storage with throughput shaping governed by
// list (see bandwidth.List for how overlapping time-of-day nodes are
// evaluated).
func NewShapedStorage(storage Storage, list *bandwidth.List) *ShapedStorage {
	return &ShapedStorage{Storage: storage, shaper: bandwidth.NewShaper(list)}
}

func (s *ShapedStorage) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	w, err := s.Storage.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return shapedWriteCloser{Writer: s.shaper.Writer(ctx, w), Closer: w}, nil
}

func (s *ShapedStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.Storage.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return shapedReadCloser{Reader: s.shaper.Reader(ctx, r), Closer: r}, nil
}

// shapedWriteCloser pairs a shaped io.Writer with the underlying
// stream's Close, since bandwidth.Shaper.Writer returns a bare
// io.Writer.
type shapedWriteCloser struct {
	io.Writer
	io.Closer
}

// shapedReadCloser mirrors shapedWriteCloser for the read path.
type shapedReadCloser struct {
	io.Reader
	io.Closer
}
