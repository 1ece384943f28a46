package secret

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Certificate pairs an Ed25519 public/private keypair used for
// signing archive manifests (the archive engine's SGN0 chunks) and
// verifying them on restore.
type Certificate struct {
	PublicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

// GenerateCertificate creates a new Ed25519 signing keypair.
func GenerateCertificate() (*Certificate, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("secret: generate certificate: %w", err)
	}
	return &Certificate{PublicKey: pub, privateKey: priv}, nil
}

// Sign produces a detached signature over data using the private key.
// Returns an error if this Certificate holds no private key (e.g. it
// was loaded from a public-key-only PEM block for verification).
func (c *Certificate) Sign(data []byte) ([]byte, error) {
	if len(c.privateKey) == 0 {
		return nil, fmt.Errorf("secret: certificate has no private key")
	}
	return ed25519.Sign(c.privateKey, data), nil
}

// Verify checks a detached signature against data using the public key.
func (c *Certificate) Verify(data, sig []byte) bool {
	return ed25519.Verify(c.PublicKey, data, sig)
}

// MarshalPrivatePEM encodes the private key as a PKCS#8 PEM block, the
// format ParseCertificatePEM reads back.
func (c *Certificate) MarshalPrivatePEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("secret: marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// MarshalPublicPEM encodes the public key as a PKIX PEM block.
func (c *Certificate) MarshalPublicPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(c.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("secret: marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ParseCertificatePEM loads a Certificate from PEM-encoded public and
// (optional) private key blocks. Pass nil privatePEM to load a
// verify-only certificate.
func ParseCertificatePEM(publicPEM, privatePEM []byte) (*Certificate, error) {
	pubBlock, _ := pem.Decode(publicPEM)
	if pubBlock == nil {
		return nil, fmt.Errorf("secret: no PEM block found in public key")
	}
	pubAny, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("secret: parse public key: %w", err)
	}
	pub, ok := pubAny.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("secret: public key is not Ed25519")
	}

	cert := &Certificate{PublicKey: pub}
	if privatePEM != nil {
		privBlock, _ := pem.Decode(privatePEM)
		if privBlock == nil {
			return nil, fmt.Errorf("secret: no PEM block found in private key")
		}
		privAny, err := x509.ParsePKCS8PrivateKey(privBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("secret: parse private key: %w", err)
		}
		priv, ok := privAny.(ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("secret: private key is not Ed25519")
		}
		cert.privateKey = priv
	}
	return cert, nil
}
