package secret

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

// KeyLength is the size, in bytes, of a derived archive encryption key
// (AES-256).
const KeyLength = 32

// pbkdf2Iterations is the iteration count DeriveKey uses; a different
// count can be given via DeriveKeyWithIterations.
const pbkdf2Iterations = 200_000

// Key is a symmetric encryption key held in memory only as long as
// needed. The zero value is not usable; build with GenerateKey or
// DeriveKey.
type Key struct {
	data []byte
}

// GenerateKey returns a new random Key of KeyLength bytes.
func GenerateKey() (*Key, error) {
	data := make([]byte, KeyLength)
	if _, err := rand.Read(data); err != nil {
		return nil, fmt.Errorf("secret: generate key: %w", err)
	}
	return &Key{data: data}, nil
}

// DeriveKey derives a Key from a password and salt using PBKDF2-HMAC-SHA3-256,
// the scheme the archive format uses to turn a user-supplied passphrase
// into an AES-256 key for a KEY0 chunk.
func DeriveKey(password *Password, salt []byte) (*Key, error) {
	return DeriveKeyWithIterations(password, salt, pbkdf2Iterations)
}

// DeriveKeyWithIterations is DeriveKey with an explicit iteration count.
func DeriveKeyWithIterations(password *Password, salt []byte, iterations int) (*Key, error) {
	var key *Key
	err := password.Deploy(func(plain []byte) error {
		key = &Key{data: pbkdf2.Key(plain, salt, iterations, KeyLength, sha3.New256)}
		return nil
	})
	return key, err
}

// Deploy invokes fn with the raw key bytes, then zeroes the buffer.
func (k *Key) Deploy(fn func(raw []byte) error) error {
	if k == nil {
		return fn(nil)
	}
	defer k.wipe()
	return fn(k.data)
}

// Bytes returns a copy of the key bytes. Prefer Deploy where possible
// so the key's lifetime in memory stays bounded.
func (k *Key) Bytes() []byte {
	if k == nil {
		return nil
	}
	out := make([]byte, len(k.data))
	copy(out, k.data)
	return out
}

func (k *Key) wipe() {
	for i := range k.data {
		k.data[i] = 0
	}
}

func (k *Key) String() string {
	return "secret.Key(REDACTED)"
}
