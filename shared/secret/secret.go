// Package secret provides secure in-memory containers for passwords,
// symmetric keys, and certificates: values that must be wiped from
// memory as soon as they are no longer needed, and whose contents
// should never leak into logs or error messages via fmt's default
// formatting.
package secret

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Password holds a plaintext password only long enough to derive a
// hash or to compare against one; Deploy wipes the buffer when the
// callback returns.
type Password struct {
	data []byte
}

// NewPassword copies plain into a Password container.
func NewPassword(plain string) *Password {
	return &Password{data: []byte(plain)}
}

// Deploy invokes fn with the password bytes, then zeroes the buffer.
func (p *Password) Deploy(fn func(plain []byte) error) error {
	if p == nil {
		return fn(nil)
	}
	defer p.wipe()
	return fn(p.data)
}

// Hash returns a bcrypt hash of the password. The server's local-auth
// accounts do not use it; they are hashed with Argon2id in auth/local.go.
func (p *Password) Hash() (string, error) {
	var hash string
	err := p.Deploy(func(plain []byte) error {
		h, err := bcrypt.GenerateFromPassword(plain, bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("secret: hash password: %w", err)
		}
		hash = string(h)
		return nil
	})
	return hash, err
}

// Equal constant-time compares the password against raw bytes,
// without requiring the caller to Deploy it manually.
func (p *Password) Equal(other []byte) bool {
	if p == nil {
		return len(other) == 0
	}
	return subtle.ConstantTimeCompare(p.data, other) == 1
}

func (p *Password) wipe() {
	for i := range p.data {
		p.data[i] = 0
	}
}

// String never reveals the password contents.
func (p *Password) String() string {
	return "secret.Password(REDACTED)"
}

// GoString never reveals the password contents, guarding against %#v.
func (p *Password) GoString() string {
	return p.String()
}
