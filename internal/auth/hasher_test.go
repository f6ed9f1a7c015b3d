// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzo-online/lorenzo/internal/auth"
	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

// cheapParams keeps argon2 fast in tests.
var cheapParams = auth.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1}

func newHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	h, err := auth.NewArgon2idHasher(cheapParams)
	require.NoError(t, err)
	return h
}

func TestNewArgon2idHasher_InvalidParams(t *testing.T) {
	_, err := auth.NewArgon2idHasher(auth.Argon2Params{Time: 1, MemoryKiB: 0, Threads: 1})
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH_PARAMS")
}

func TestHashPassword(t *testing.T) {
	hasher := newHasher(t)

	t.Run("produces valid hash", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")
	})
}

func TestVerifyPassword(t *testing.T) {
	hasher := newHasher(t)

	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("hash from other parameters still verifies", func(t *testing.T) {
		other, err := auth.NewArgon2idHasher(auth.Argon2Params{Time: 2, MemoryKiB: 2048, Threads: 2})
		require.NoError(t, err)
		hash, err := other.Hash("pw")
		require.NoError(t, err)

		ok, err := hasher.Verify("pw", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	malformed := []struct {
		name     string
		hash     string
		contains string
	}{
		{"invalid format", "not-a-valid-hash", "invalid hash format"},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", "unsupported hash algorithm"},
		{"invalid version", "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA", ""},
		{"unknown version", "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA", "unsupported argon2 version"},
		{"invalid parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA", ""},
		{"invalid salt", "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA", ""},
		{"invalid key", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!", ""},
		{"threads overflow", "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA", "threads value"},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hasher.Verify("password", tt.hash)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestNeedsUpgrade(t *testing.T) {
	hasher := newHasher(t)

	t.Run("bcrypt hash needs upgrade", func(t *testing.T) {
		assert.True(t, hasher.NeedsUpgrade("$2a$10$N9qo8uLOickgx2ZMRZoMyeIvNq.Uf3hE9tQALNP1Qn9sNp5x5x5x5"))
	})

	t.Run("current parameters do not need upgrade", func(t *testing.T) {
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.False(t, hasher.NeedsUpgrade(hash))
	})

	t.Run("older parameters need upgrade", func(t *testing.T) {
		old, err := auth.NewArgon2idHasher(auth.Argon2Params{Time: 1, MemoryKiB: 512, Threads: 1})
		require.NoError(t, err)
		hash, err := old.Hash("password")
		require.NoError(t, err)
		assert.True(t, hasher.NeedsUpgrade(hash))
	})
}
