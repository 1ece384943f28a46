package codec

import "fmt"

// DeltaAlgorithm names a binary-diff algorithm for incremental
// archive entries. No delta library exists anywhere in the example
// corpus this implementation is grounded on (see DESIGN.md), so every
// named algorithm resolves to ErrUnsupportedAlgorithm; the registry
// exists so callers can detect "delta requested but unavailable" and
// fall back to a full copy rather than failing to compile a config.
type DeltaAlgorithm string

const (
	DeltaXDelta1 DeltaAlgorithm = "xdelta1"
	DeltaXDelta9 DeltaAlgorithm = "xdelta9"
)

// Differ produces and applies binary deltas between two versions of
// an entry's content.
type Differ interface {
	Diff(base, target []byte) ([]byte, error)
	Patch(base, delta []byte) (target []byte, err error)
}

// NewDiffer always returns ErrUnsupportedAlgorithm; see the DeltaAlgorithm doc.
func NewDiffer(alg DeltaAlgorithm) (Differ, error) {
	return nil, fmt.Errorf("codec: %s: %w", alg, ErrUnsupportedAlgorithm)
}
