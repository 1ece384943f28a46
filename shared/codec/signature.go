package codec

import (
	"github.com/arkeep-io/arkeep/shared/secret"
)

// Signer signs and verifies archive manifest digests. It is a thin
// indirection over secret.Certificate so the archive engine can treat
// signing as just another named codec capability.
type Signer interface {
	Sign(digest []byte) ([]byte, error)
	Verify(digest, sig []byte) bool
}

type ed25519Signer struct {
	cert *secret.Certificate
}

// NewEd25519Signer wraps a certificate as a Signer.
func NewEd25519Signer(cert *secret.Certificate) Signer {
	return ed25519Signer{cert: cert}
}

func (s ed25519Signer) Sign(digest []byte) ([]byte, error) {
	return s.cert.Sign(digest)
}

func (s ed25519Signer) Verify(digest, sig []byte) bool {
	return s.cert.Verify(digest, sig)
}
