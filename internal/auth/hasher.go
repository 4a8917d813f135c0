// Package auth holds the credential primitives of the service: the password
// hasher and the session token codec.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// argon2id parameters for newly created hashes. Verification always uses the
// parameters embedded in the stored hash.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // KiB
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32

	// Upper bounds accepted from a stored hash.
	maxArgon2Time   = 4 * argon2Time
	maxArgon2Memory = 4 * argon2Memory
)

var (
	ErrEmptyPassword = errors.New("password cannot be empty")
	ErrHashing       = errors.New("password hashing failed")
	ErrInvalidHash   = errors.New("invalid password hash")
)

// PasswordHasher turns a cleartext secret into a storable one-way hash and
// checks secrets against such hashes.
type PasswordHasher interface {
	// Hash returns an encoded hash with a fresh random salt.
	Hash(secret []byte) (string, error)

	// Verify reports whether secret matches hash. A mismatch is (false, nil);
	// an error means the hash itself could not be parsed.
	Verify(secret []byte, hash string) (bool, error)

	// NeedsUpgrade reports whether hash was produced by an older algorithm.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher with argon2id PHC strings and
// accepts legacy bcrypt hashes on verification.
type Argon2idHasher struct {
	time    uint32
	memory  uint32
	threads uint8
}

func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{
		time:    argon2Time,
		memory:  argon2Memory,
		threads: argon2Threads,
	}
}

// Hash produces $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
func (h *Argon2idHasher) Hash(secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(fmt.Errorf("%w: %w", ErrHashing, err))
	}

	key := argon2.IDKey(secret, salt, h.time, h.memory, h.threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.time,
		h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2idHasher) Verify(secret []byte, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return verifyBcrypt(secret, encoded)
	}

	params, salt, expected, err := decodeArgon2id(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(secret, salt, params.time, params.memory, params.threads, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func (h *Argon2idHasher) NeedsUpgrade(encoded string) bool {
	return !strings.HasPrefix(encoded, "$argon2id$")
}

type argon2Params struct {
	time    uint32
	memory  uint32
	threads uint8
}

func invalidHash(format string, args ...any) error {
	return oops.Code("AUTH_INVALID_HASH").Wrap(fmt.Errorf("%w: "+format, append([]any{ErrInvalidHash}, args...)...))
}

func decodeArgon2id(encoded string) (argon2Params, []byte, []byte, error) {
	var p argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, nil, nil, invalidHash("expected 6 fields")
	}
	if parts[1] != "argon2id" {
		return p, nil, nil, invalidHash("unsupported algorithm %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, invalidHash("version: %v", err)
	}
	if version != argon2.Version {
		return p, nil, nil, invalidHash("unsupported version %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return p, nil, nil, invalidHash("parameters: %v", err)
	}
	if threads == 0 || threads > 255 || iterations == 0 || memory == 0 {
		return p, nil, nil, invalidHash("parameters out of range")
	}
	if iterations > maxArgon2Time || memory > maxArgon2Memory {
		return p, nil, nil, invalidHash("cost m=%d,t=%d above limit", memory, iterations)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, invalidHash("salt encoding")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > 1024 {
		return p, nil, nil, invalidHash("digest encoding")
	}

	p = argon2Params{time: iterations, memory: memory, threads: uint8(threads)}
	return p, salt, key, nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func verifyBcrypt(secret []byte, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), secret)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, invalidHash("bcrypt: %v", err)
	}
}
