// Package codec provides the pluggable algorithm registries used by
// the archive engine's entry pipeline: compression, symmetric/
// asymmetric encryption, hashing, digital signatures, and (named only)
// delta compression. Every algorithm is looked up by name so new
// entries can be added without touching the archive format.
package codec

import "errors"

// ErrUnsupportedAlgorithm is returned by a registry lookup for an
// algorithm name that is recognized (it appears in the archive
// format's tag vocabulary) but has no implementation in this build —
// see DESIGN.md for which algorithms fall into this category and why.
var ErrUnsupportedAlgorithm = errors.New("codec: unsupported algorithm")
