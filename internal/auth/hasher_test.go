package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dom/bookshelf-api/internal/auth"
)

func TestArgon2idHasher_Hash(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("produces PHC encoded argon2id hash", func(t *testing.T) {
		hash, err := hasher.Hash([]byte("password123"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
		assert.Len(t, strings.Split(hash, "$"), 6)
	})

	t.Run("hash never contains the secret", func(t *testing.T) {
		hash, err := hasher.Hash([]byte("hunter2-visible"))
		require.NoError(t, err)
		assert.NotContains(t, hash, "hunter2-visible")
	})

	t.Run("same secret produces different hashes", func(t *testing.T) {
		hash1, err := hasher.Hash([]byte("samepassword"))
		require.NoError(t, err)
		hash2, err := hasher.Hash([]byte("samepassword"))
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)

		salt1 := strings.Split(hash1, "$")[4]
		salt2 := strings.Split(hash2, "$")[4]
		assert.NotEqual(t, salt1, salt2)
	})

	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := hasher.Hash(nil)
		assert.ErrorIs(t, err, auth.ErrEmptyPassword)
	})
}

func TestArgon2idHasher_Verify(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	hash, err := hasher.Hash([]byte("correctpassword"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		want   bool
	}{
		{name: "correct secret", secret: "correctpassword", want: true},
		{name: "wrong secret", secret: "wrongpassword", want: false},
		{name: "prefix of secret", secret: "correct", want: false},
		{name: "secret with suffix", secret: "correctpassword!", want: false},
		{name: "empty secret", secret: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := hasher.Verify([]byte(tt.secret), hash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestArgon2idHasher_VerifyUsesEmbeddedParameters(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	hash, err := hasher.Hash([]byte("pw"))
	require.NoError(t, err)

	parts := strings.Split(hash, "$")
	// Same salt and digest, different cost parameters.
	parts[3] = "m=16384,t=2,p=1"
	altered := strings.Join(parts, "$")

	ok, err := hasher.Verify([]byte("pw"), altered)
	require.NoError(t, err)
	assert.False(t, ok, "parameters are part of the derivation")
}

func TestArgon2idHasher_VerifyMalformed(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	tests := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "plaintext", hash: "password"},
		{name: "wrong field count", hash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA"},
		{name: "unsupported algorithm", hash: "$argon2i$v=19$m=65536,t=1,p=4$c2FsdHNhbHQ$ZGlnZXN0"},
		{name: "bad version", hash: "$argon2id$v=x$m=65536,t=1,p=4$c2FsdHNhbHQ$ZGlnZXN0"},
		{name: "bad params", hash: "$argon2id$v=19$m=abc$c2FsdHNhbHQ$ZGlnZXN0"},
		{name: "threads overflow", hash: "$argon2id$v=19$m=65536,t=1,p=300$c2FsdHNhbHQ$ZGlnZXN0"},
		{name: "memory above limit", hash: "$argon2id$v=19$m=4294967295,t=1,p=4$c2FsdHNhbHQ$ZGlnZXN0"},
		{name: "memory just above limit", hash: "$argon2id$v=19$m=262145,t=1,p=4$c2FsdHNhbHQ$ZGlnZXN0"},
		{name: "iterations above limit", hash: "$argon2id$v=19$m=65536,t=5,p=4$c2FsdHNhbHQ$ZGlnZXN0"},
		{name: "bad salt", hash: "$argon2id$v=19$m=65536,t=1,p=4$!!!$ZGlnZXN0"},
		{name: "bad digest", hash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHQ$!!!"},
		{name: "truncated bcrypt", hash: "$2a$10$short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := hasher.Verify([]byte("password"), tt.hash)
			assert.False(t, ok)
			assert.ErrorIs(t, err, auth.ErrInvalidHash)
		})
	}
}

func TestArgon2idHasher_LegacyBcrypt(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	legacy, err := bcrypt.GenerateFromPassword([]byte("oldpassword"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := hasher.Verify([]byte("oldpassword"), string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify([]byte("other"), string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, hasher.NeedsUpgrade(string(legacy)))

	current, err := hasher.Hash([]byte("newpassword"))
	require.NoError(t, err)
	assert.False(t, hasher.NeedsUpgrade(current))
}
