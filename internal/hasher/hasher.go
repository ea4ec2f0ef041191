// Package hasher turns plaintext passwords into salted one-way hashes and
// verifies plaintext against a stored hash with the scheme's own check.
package hasher

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// SchemePBKDF2SHA256 produces passlib-compatible pbkdf2_sha256 hashes.
	SchemePBKDF2SHA256 = "pbkdf2-sha256"
	// SchemeBcrypt produces bcrypt hashes at bcrypt.DefaultCost.
	SchemeBcrypt = "bcrypt"
)

// ErrUnknownScheme is returned by New for an unsupported scheme name.
var ErrUnknownScheme = errors.New("unknown password hash scheme")

// Hasher hashes new passwords with the configured scheme and verifies
// stored hashes of any supported scheme.
type Hasher struct {
	scheme string
	rounds int
}

// Opt configures a Hasher.
type Opt func(*Hasher)

// WithPBKDF2Rounds overrides the PBKDF2 iteration count for new hashes.
func WithPBKDF2Rounds(rounds int) Opt {
	return func(h *Hasher) {
		if rounds > 0 {
			h.rounds = rounds
		}
	}
}

// New creates a Hasher for the given scheme.
func New(scheme string, opts ...Opt) (*Hasher, error) {
	switch scheme {
	case SchemePBKDF2SHA256, SchemeBcrypt:
	default:
		return nil, ErrUnknownScheme
	}

	h := &Hasher{scheme: scheme, rounds: defaultPBKDF2Rounds}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Hash returns a freshly salted hash of password. Two calls with the same
// password return different strings.
func (h *Hasher) Hash(password string) (string, error) {
	if h.scheme == SchemeBcrypt {
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		return string(b), err
	}
	return hashPBKDF2(password, h.rounds)
}

// Verify reports whether password matches the stored hash. The scheme is
// taken from the hash itself, not from the Hasher's configuration.
func (h *Hasher) Verify(password, hash string) bool {
	switch {
	case strings.HasPrefix(hash, pbkdf2Prefix):
		return verifyPBKDF2(password, hash)
	case strings.HasPrefix(hash, "$2a$"),
		strings.HasPrefix(hash, "$2b$"),
		strings.HasPrefix(hash, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	default:
		return false
	}
}
